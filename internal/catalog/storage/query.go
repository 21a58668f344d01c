package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"wbcatalog/internal/catalog/models"
)

const (
	DefaultLimit    = 20
	MaxLimit        = 100
	DefaultOrdering = "-created_at"
)

// orderable - поля, по которым разрешена сортировка.
var orderable = map[string]string{
	"price":          "price",
	"original_price": "original_price",
	"rating":         "rating",
	"review_count":   "review_count",
	"created_at":     "created_at",
	"updated_at":     "updated_at",
	"name":           "name",
}

// Filter - условия выборки для read API. Нулевые поля не фильтруют.
type Filter struct {
	MinPrice         decimal.NullDecimal
	MaxPrice         decimal.NullDecimal
	MinOriginalPrice decimal.NullDecimal
	MaxOriginalPrice decimal.NullDecimal
	MinRating        decimal.NullDecimal
	MaxRating        decimal.NullDecimal
	MinReviews       *int
	MaxReviews       *int
	HasDiscount      *bool
	Search           string // name или search_query
	Name             string
	SearchQuery      string
	Category         string
	Ordering         string
	Limit            int
	Offset           int
}

type Stats struct {
	Count        int64               `json:"count"`
	WithDiscount int64               `json:"with_discount"`
	AvgPrice     decimal.NullDecimal `json:"avg_price"`
	AvgRating    decimal.NullDecimal `json:"avg_rating"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (w *whereBuilder) arg(v interface{}) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *whereBuilder) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) decimalRange(column string, min, max decimal.NullDecimal) {
	if min.Valid {
		w.add(column + " >= " + w.arg(min.Decimal))
	}
	if max.Valid {
		w.add(column + " <= " + w.arg(max.Decimal))
	}
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(term) + "%"
}

func (r *ProductRepository) where(f Filter) *whereBuilder {
	w := &whereBuilder{}
	w.decimalRange("price", f.MinPrice, f.MaxPrice)
	w.decimalRange("original_price", f.MinOriginalPrice, f.MaxOriginalPrice)
	w.decimalRange("rating", f.MinRating, f.MaxRating)
	if f.MinReviews != nil {
		w.add("review_count >= " + w.arg(*f.MinReviews))
	}
	if f.MaxReviews != nil {
		w.add("review_count <= " + w.arg(*f.MaxReviews))
	}
	if f.HasDiscount != nil {
		if *f.HasDiscount {
			w.add("original_price > price")
		} else {
			w.add("original_price <= price")
		}
	}

	like := r.dialect.LikeOperator
	if term := strings.TrimSpace(f.Search); term != "" {
		p := w.arg(likePattern(term))
		w.add(fmt.Sprintf(`(name %[1]s %[2]s ESCAPE '\' OR search_query %[1]s %[2]s ESCAPE '\')`, like, p))
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		w.add(fmt.Sprintf(`name %s %s ESCAPE '\'`, like, w.arg(likePattern(name))))
	}
	if q := strings.TrimSpace(f.SearchQuery); q != "" {
		w.add(fmt.Sprintf(`search_query %s %s ESCAPE '\'`, like, w.arg(likePattern(q))))
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		w.add("category = " + w.arg(c))
	}
	return w
}

// orderBy разбирает "-price" / "rating"; неизвестное поле - ErrInvalidFilter.
func orderBy(ordering string) (string, error) {
	if ordering == "" {
		ordering = DefaultOrdering
	}
	direction := "ASC"
	field := ordering
	if strings.HasPrefix(field, "-") {
		direction = "DESC"
		field = field[1:]
	}
	column, ok := orderable[field]
	if !ok {
		return "", fmt.Errorf("%w: cannot order by %q", ErrInvalidFilter, ordering)
	}
	return fmt.Sprintf(" ORDER BY %s %s NULLS LAST, id %s", column, direction, direction), nil
}

func (r *ProductRepository) Find(ctx context.Context, f Filter) ([]models.Product, error) {
	order, err := orderBy(f.Ordering)
	if err != nil {
		return nil, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if f.Offset < 0 {
		return nil, fmt.Errorf("%w: negative offset", ErrInvalidFilter)
	}

	w := r.where(f)
	query := "SELECT " + productColumns + " FROM products" + w.sql() + order +
		" LIMIT " + w.arg(limit) + " OFFSET " + w.arg(f.Offset)

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]models.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) Count(ctx context.Context, f Filter) (int64, error) {
	w := r.where(f)
	var count int64
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT COUNT(*) FROM products"+w.sql()), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

func (r *ProductRepository) Stats(ctx context.Context, f Filter) (Stats, error) {
	w := r.where(f)
	query := `SELECT COUNT(*), AVG(price), AVG(rating),
		SUM(CASE WHEN original_price > price THEN 1 ELSE 0 END)
		FROM products` + w.sql()

	var stats Stats
	var withDiscount sql.NullInt64
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), w.args...).
		Scan(&stats.Count, &stats.AvgPrice, &stats.AvgRating, &withDiscount)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	stats.WithDiscount = withDiscount.Int64
	if stats.AvgPrice.Valid {
		stats.AvgPrice.Decimal = stats.AvgPrice.Decimal.Round(2)
	}
	if stats.AvgRating.Valid {
		stats.AvgRating.Decimal = stats.AvgRating.Decimal.Round(2)
	}
	return stats, nil
}

// Queries - поисковые запросы, по которым есть товары, с количеством.
func (r *ProductRepository) Queries(ctx context.Context) ([]QueryCount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT search_query, COUNT(*) FROM products GROUP BY search_query ORDER BY search_query`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var result []QueryCount
	for rows.Next() {
		var qc QueryCount
		if err := rows.Scan(&qc.Query, &qc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		result = append(result, qc)
	}
	return result, rows.Err()
}

func (r *ProductRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
