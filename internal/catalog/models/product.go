package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxNameLength   = 500
	DefaultCategory = "Unknown"
)

// Product - нормализованная карточка товара в том виде, в каком она хранится
// в таблице products. Естественный ключ - ExternalID (он же CanonicalURL).
type Product struct {
	ID            int64               `json:"id"`
	ExternalID    int64               `json:"external_id"`
	Name          string              `json:"name"`
	Price         decimal.Decimal     `json:"price"`
	OriginalPrice decimal.Decimal     `json:"original_price"`
	Rating        decimal.NullDecimal `json:"rating"`
	ReviewCount   int                 `json:"review_count"`
	SearchQuery   string              `json:"search_query"`
	Category      string              `json:"category"`
	CanonicalURL  string              `json:"canonical_url"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// HasIdentity - у записи есть естественный ключ и её можно сохранять.
func (p Product) HasIdentity() bool {
	return p.ExternalID > 0
}

func (p Product) HasDiscount() bool {
	return p.OriginalPrice.GreaterThan(p.Price)
}

// DiscountPercentage - размер скидки в процентах, округлён до десятых.
func (p Product) DiscountPercentage() decimal.Decimal {
	if !p.HasDiscount() || p.OriginalPrice.IsZero() {
		return decimal.Zero
	}
	return p.OriginalPrice.Sub(p.Price).
		Div(p.OriginalPrice).
		Mul(decimal.NewFromInt(100)).
		Round(1)
}

// ProductView - представление для read API с вычисляемыми полями.
type ProductView struct {
	Product
	HasDiscount        bool            `json:"has_discount"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
}

func (p Product) View() ProductView {
	return ProductView{
		Product:            p,
		HasDiscount:        p.HasDiscount(),
		DiscountPercentage: p.DiscountPercentage(),
	}
}
