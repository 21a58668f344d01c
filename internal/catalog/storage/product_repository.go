package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wbcatalog/config"
	"wbcatalog/internal/catalog/models"
	"wbcatalog/pkg/dbconnect/dialect"
	"wbcatalog/pkg/logger"
)

const productColumns = `id, external_id, name, price, original_price, rating, review_count,
	search_query, category, canonical_url, created_at, updated_at`

type outcome int

const (
	outcomeInserted outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// PersistResult - итог записи одного пакета.
type PersistResult struct {
	Inserted  int
	Updated   int
	Skipped   int
	Rejected  int
	Conflicts int
	Failed    int
	Errors    []error
}

func (r PersistResult) Saved() int {
	return r.Inserted + r.Updated
}

func (r *PersistResult) Add(other PersistResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Rejected += other.Rejected
	r.Conflicts += other.Conflicts
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}

type ProductRepository struct {
	db           *sql.DB
	dialect      dialect.Dialect
	writeTimeout time.Duration
	now          func() time.Time
	log          logger.Logger
}

func NewProductRepository(db *sql.DB, d dialect.Dialect, writeTimeout time.Duration, log logger.Logger) *ProductRepository {
	return &ProductRepository{
		db:           db,
		dialect:      d,
		writeTimeout: writeTimeout,
		now:          time.Now,
		log:          log.WithPrefix("[ProductRepository]"),
	}
}

// SetClock подменяет источник времени для created_at/updated_at.
func (r *ProductRepository) SetClock(now func() time.Time) {
	r.now = now
}

// Persist пишет пакет в одной транзакции. Каждая запись обёрнута в savepoint:
// конфликт или отказ базы по одной записи откатывает только её. Ошибки
// savepoint, begin/commit и отмена ctx откатывают весь пакет.
func (r *ProductRepository) Persist(ctx context.Context, products []models.Product, policy string) (PersistResult, error) {
	var result PersistResult
	if !config.IsDedupPolicy(policy) {
		return result, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	if len(products) == 0 {
		return result, nil
	}

	if r.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.writeTimeout)
		defer cancel()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, product := range products {
		if !product.HasIdentity() {
			result.Rejected++
			result.Errors = append(result.Errors, fmt.Errorf("%w: %q", ErrMissingKey, product.Name))
			continue
		}

		res, err := r.persistOne(ctx, tx, product, policy)
		var conflict *PersistenceConflict
		var recordErr *RecordError
		switch {
		case err != nil && ctx.Err() != nil:
			return PersistResult{}, fmt.Errorf("batch interrupted: %w", ctx.Err())
		case errors.As(err, &conflict):
			r.log.Warn("%v", conflict)
			result.Conflicts++
			result.Errors = append(result.Errors, err)
			continue
		case errors.As(err, &recordErr):
			r.log.Warn("%v", recordErr)
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		case err != nil:
			return PersistResult{}, err
		}

		switch res {
		case outcomeInserted:
			result.Inserted++
		case outcomeUpdated:
			result.Updated++
		case outcomeSkipped:
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return PersistResult{}, fmt.Errorf("failed to commit batch: %w", err)
	}
	return result, nil
}

func (r *ProductRepository) persistOne(ctx context.Context, tx *sql.Tx, p models.Product, policy string) (outcome, error) {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT product_record"); err != nil {
		return 0, fmt.Errorf("failed to create savepoint: %w", err)
	}

	res, err := r.writeRecord(ctx, tx, p, policy)
	if err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT product_record"); rbErr != nil {
			return 0, fmt.Errorf("failed to roll back savepoint after %v: %w", err, rbErr)
		}
		if r.dialect.IsUniqueViolation(err) {
			return 0, &PersistenceConflict{ExternalID: p.ExternalID, CanonicalURL: p.CanonicalURL, Err: err}
		}
		return 0, &RecordError{ExternalID: p.ExternalID, Err: err}
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT product_record"); err != nil {
		return 0, fmt.Errorf("failed to release savepoint: %w", err)
	}
	return res, nil
}

func (r *ProductRepository) writeRecord(ctx context.Context, tx *sql.Tx, p models.Product, policy string) (outcome, error) {
	now := r.now().UTC()

	var id int64
	err := tx.QueryRowContext(ctx, r.dialect.Rebind("SELECT id FROM products WHERE external_id = $1"), p.ExternalID).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, r.dialect.Rebind(`
			INSERT INTO products (external_id, name, price, original_price, rating, review_count,
				search_query, category, canonical_url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`),
			p.ExternalID, p.Name, p.Price, p.OriginalPrice, p.Rating, p.ReviewCount,
			p.SearchQuery, p.Category, p.CanonicalURL, now)
		return outcomeInserted, err
	case err != nil:
		return 0, err
	case policy == config.PolicySkip:
		return outcomeSkipped, nil
	}

	// overwrite: ключ и created_at не трогаем
	_, err = tx.ExecContext(ctx, r.dialect.Rebind(`
		UPDATE products SET name = $1, price = $2, original_price = $3, rating = $4, review_count = $5,
			search_query = $6, category = $7, canonical_url = $8, updated_at = $9
		WHERE id = $10`),
		p.Name, p.Price, p.OriginalPrice, p.Rating, p.ReviewCount,
		p.SearchQuery, p.Category, p.CanonicalURL, now, id)
	return outcomeUpdated, err
}

// FindByExternalID: не найдено - (zero, false, nil).
func (r *ProductRepository) FindByExternalID(ctx context.Context, externalID int64) (models.Product, bool, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT "+productColumns+" FROM products WHERE external_id = $1"), externalID)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, false, nil
	}
	if err != nil {
		return models.Product{}, false, fmt.Errorf("failed to load product %d: %w", externalID, err)
	}
	return product, true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.ExternalID, &p.Name, &p.Price, &p.OriginalPrice, &p.Rating, &p.ReviewCount,
		&p.SearchQuery, &p.Category, &p.CanonicalURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
