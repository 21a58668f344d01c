package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wbcatalog/config"
	"wbcatalog/internal/catalog/models"
)

func seed(t *testing.T, repo *ProductRepository) {
	t.Helper()
	items := []models.Product{
		product(1, "100"),
		product(2, "250"),
		product(3, "50"),
		product(4, "400"),
	}
	items[1].OriginalPrice = decimal.RequireFromString("300")
	items[1].Rating = decimal.NewNullDecimal(decimal.RequireFromString("4.8"))
	items[1].ReviewCount = 120
	items[2].Rating = decimal.NewNullDecimal(decimal.RequireFromString("3.2"))
	items[3].Name = "Mouse wireless"
	items[3].SearchQuery = "mouse"

	_, err := repo.Persist(context.Background(), items, config.PolicySkip)
	require.NoError(t, err)
}

func ids(products []models.Product) []int64 {
	out := make([]int64, 0, len(products))
	for _, p := range products {
		out = append(out, p.ExternalID)
	}
	return out
}

func TestFindPriceRangeAndOrdering(t *testing.T) {
	repo := newTestRepository(t)
	seed(t, repo)

	found, err := repo.Find(context.Background(), Filter{
		MinPrice: decimal.NewNullDecimal(decimal.NewFromInt(60)),
		MaxPrice: decimal.NewNullDecimal(decimal.NewFromInt(300)),
		Ordering: "-price",
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids(found))
}

func TestFindHasDiscountAndRating(t *testing.T) {
	repo := newTestRepository(t)
	seed(t, repo)

	yes := true
	found, err := repo.Find(context.Background(), Filter{HasDiscount: &yes})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(found))

	found, err = repo.Find(context.Background(), Filter{
		MinRating: decimal.NewNullDecimal(decimal.RequireFromString("3")),
		Ordering:  "rating",
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, ids(found))
}

func TestFindFreeTextAndPaging(t *testing.T) {
	repo := newTestRepository(t)
	seed(t, repo)

	found, err := repo.Find(context.Background(), Filter{Search: "mouse"})
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(found))

	found, err = repo.Find(context.Background(), Filter{Ordering: "price", Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(found))

	minReviews := 100
	count, err := repo.Count(context.Background(), Filter{MinReviews: &minReviews})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFindRejectsUnknownOrdering(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Find(context.Background(), Filter{Ordering: "-canonical_url; DROP TABLE products"})
	assert.True(t, errors.Is(err, ErrInvalidFilter))
}

func TestStatsAndQueries(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	empty, err := repo.Stats(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Count)
	assert.False(t, empty.AvgPrice.Valid)

	seed(t, repo)
	stats, err := repo.Stats(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Count)
	assert.Equal(t, int64(1), stats.WithDiscount)
	require.True(t, stats.AvgPrice.Valid)
	assert.True(t, decimal.RequireFromString("200").Equal(stats.AvgPrice.Decimal), stats.AvgPrice.Decimal.String())
	require.True(t, stats.AvgRating.Valid)
	assert.True(t, decimal.RequireFromString("4").Equal(stats.AvgRating.Decimal), stats.AvgRating.Decimal.String())

	queries, err := repo.Queries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []QueryCount{{Query: "mouse", Count: 1}, {Query: "ноутбук", Count: 3}}, queries)
}
