package normalize

import (
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"wbcatalog/internal/catalog/models"
	wbmodels "wbcatalog/internal/wildberries/models"
	"wbcatalog/pkg/business/service"
)

const (
	maxSearchQueryLength = 200
	maxCategoryLength    = 255
	maxRating            = 5
	maxReviewCount       = math.MaxInt32
	maxExternalID        = 1 << 53 // дальше float64 теряет целые
)

var hundred = decimal.NewFromInt(100)

// rawText - текстовые поля записи. WB иногда отдаёт их числами, поэтому
// декодируем слабо типизированно.
type rawText struct {
	Name        string `mapstructure:"name"`
	ImtName     string `mapstructure:"imt_name"`
	Category    string `mapstructure:"category"`
	Entity      string `mapstructure:"entity"`
	SubjectName string `mapstructure:"subjectName"`
}

type Normalizer struct {
	text        service.ITextService
	urlTemplate string
}

// NewNormalizer: urlTemplate содержит один %d под id товара.
func NewNormalizer(text service.ITextService, urlTemplate string) *Normalizer {
	return &Normalizer{text: text, urlTemplate: urlTemplate}
}

// Normalize превращает сырую запись в карточку. Отсутствие id не ошибка:
// карточка вернётся с ExternalID == 0, и хранилище её не примет.
func (n *Normalizer) Normalize(raw wbmodels.RawRecord, searchQuery, category string) (models.Product, error) {
	var product models.Product

	id, err := n.externalID(raw)
	if err != nil {
		return product, err
	}
	product.ExternalID = id
	if id > 0 {
		product.CanonicalURL = fmt.Sprintf(n.urlTemplate, id)
	}

	var text rawText
	if err := mapstructure.WeakDecode(map[string]interface{}(raw), &text); err != nil {
		return product, &NormalizationError{Field: "name", Raw: raw["name"], Reason: err.Error()}
	}
	name := text.Name
	if strings.TrimSpace(name) == "" {
		name = text.ImtName
	}
	product.Name = n.text.CleanName(name, models.MaxNameLength)
	product.Category = n.category(category, text)
	product.SearchQuery = n.text.ReduceToLength(n.text.CollapseSpaces(searchQuery), maxSearchQueryLength)

	if err := n.prices(raw, &product); err != nil {
		return product, err
	}
	if product.ReviewCount, err = n.reviewCount(raw); err != nil {
		return product, err
	}
	if product.Rating, err = n.rating(raw); err != nil {
		return product, err
	}
	return product, nil
}

func (n *Normalizer) externalID(raw wbmodels.RawRecord) (int64, error) {
	a, v, ok := FirstPresent(raw, IDFields)
	if !ok {
		return 0, nil
	}
	f, err := number(a.Name, v)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, &NormalizationError{Field: a.Name, Raw: v, Reason: "id must be a non-negative integer"}
	}
	if f > maxExternalID {
		return 0, &NormalizationError{Field: a.Name, Raw: v, Reason: "id is out of range"}
	}
	return int64(f), nil
}

// prices: если есть обе цены и pre_sale > sale > 0, основная цена - pre_sale,
// текущая - sale. Иначе единственная (или положительная) цена считается
// текущей и скидки нет.
func (n *Normalizer) prices(raw wbmodels.RawRecord, product *models.Product) error {
	sale, saleOK, err := minorUnits(raw, SalePriceFields)
	if err != nil {
		return err
	}
	preSale, preSaleOK, err := minorUnits(raw, PreSalePriceFields)
	if err != nil {
		return err
	}

	switch {
	case saleOK && preSaleOK && preSale.GreaterThan(sale) && sale.IsPositive():
		product.Price = sale
		product.OriginalPrice = preSale
	case saleOK && (sale.IsPositive() || !preSaleOK):
		product.Price = sale
		product.OriginalPrice = sale
	case preSaleOK:
		product.Price = preSale
		product.OriginalPrice = preSale
	default:
		return &NormalizationError{Field: "price", Reason: "no price field present"}
	}
	return nil
}

func (n *Normalizer) reviewCount(raw wbmodels.RawRecord) (int, error) {
	a, v, ok := FirstPresent(raw, ReviewCountFields)
	if !ok {
		return 0, nil
	}
	f, err := number(a.Name, v)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, &NormalizationError{Field: a.Name, Raw: v, Reason: "review count must not be negative"}
	}
	if f > maxReviewCount {
		return 0, &NormalizationError{Field: a.Name, Raw: v, Reason: "review count is out of range"}
	}
	return int(f), nil
}

// rating: ноль в источнике неотличим от "оценок нет" и хранится как NULL.
func (n *Normalizer) rating(raw wbmodels.RawRecord) (decimal.NullDecimal, error) {
	a, v, ok := FirstPresent(raw, RatingFields)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	f, err := number(a.Name, v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if f == 0 {
		return decimal.NullDecimal{}, nil
	}
	if f < 0 || f > maxRating {
		return decimal.NullDecimal{}, &NormalizationError{Field: a.Name, Raw: v, Reason: "rating must be within [0, 5]"}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(f).Round(2)), nil
}

func (n *Normalizer) category(explicit string, text rawText) string {
	for _, candidate := range []string{explicit, text.Category, text.Entity, text.SubjectName} {
		cleaned := n.text.CleanName(candidate, maxCategoryLength)
		if cleaned != "" {
			return cleaned
		}
	}
	return models.DefaultCategory
}

// minorUnits - цена в копейках из первого присутствующего поля, в рублях.
func minorUnits(raw wbmodels.RawRecord, accessors []Accessor) (decimal.Decimal, bool, error) {
	a, v, ok := FirstPresent(raw, accessors)
	if !ok {
		return decimal.Zero, false, nil
	}
	f, err := number(a.Name, v)
	if err != nil {
		return decimal.Zero, false, err
	}
	if f < 0 {
		return decimal.Zero, false, &NormalizationError{Field: a.Name, Raw: v, Reason: "price must not be negative"}
	}
	return decimal.NewFromFloat(f).Div(hundred).Round(2), true, nil
}

func number(fieldName string, v interface{}) (float64, error) {
	if _, isBool := v.(bool); isBool {
		return 0, &NormalizationError{Field: fieldName, Raw: v, Reason: "boolean is not a number"}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, &NormalizationError{Field: fieldName, Raw: v, Reason: "not a number"}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &NormalizationError{Field: fieldName, Raw: v, Reason: "not a finite number"}
	}
	return f, nil
}
