package normalize

import (
	"strings"

	"wbcatalog/internal/wildberries/models"
)

// Accessor - одно из имён, под которыми WB отдаёт поле.
type Accessor struct {
	Name string
	Path []string
}

func field(path ...string) Accessor {
	return Accessor{Name: strings.Join(path, "."), Path: path}
}

func (a Accessor) Get(raw models.RawRecord) (interface{}, bool) {
	return raw.Present(a.Path...)
}

// Порядок в списках - приоритет: берётся первое присутствующее и не-null поле.
var (
	IDFields = []Accessor{
		field("id"),
		field("nmId"),
	}
	SalePriceFields = []Accessor{
		field("salePriceU"),
		field("sizes", "0", "price", "product"),
	}
	PreSalePriceFields = []Accessor{
		field("priceU"),
		field("sizes", "0", "price", "basic"),
	}
	ReviewCountFields = []Accessor{
		field("reviewCount"),
		field("feedbacks"),
		field("nmFeedbacks"),
	}
	RatingFields = []Accessor{
		field("rating"),
		field("reviewRating"),
	}
)

// FirstPresent перебирает accessors по порядку.
func FirstPresent(raw models.RawRecord, accessors []Accessor) (Accessor, interface{}, bool) {
	for _, a := range accessors {
		if v, ok := a.Get(raw); ok {
			return a, v, true
		}
	}
	return Accessor{}, nil, false
}
