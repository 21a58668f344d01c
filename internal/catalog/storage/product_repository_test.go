package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wbcatalog/config"
	"wbcatalog/internal/catalog/models"
	catalogmigrations "wbcatalog/migrations/catalog"
	"wbcatalog/pkg/dbconnect/dialect"
	"wbcatalog/pkg/logger"
)

func newTestRepository(t *testing.T) *ProductRepository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, catalogmigrations.Apply(db, dialect.SQLite, logger.NewNop()))
	return NewProductRepository(db, dialect.SQLite, 5*time.Second, logger.NewNop())
}

func product(id int64, price string) models.Product {
	p := decimal.RequireFromString(price)
	return models.Product{
		ExternalID:    id,
		Name:          fmt.Sprintf("Ноутбук %d", id),
		Price:         p,
		OriginalPrice: p,
		SearchQuery:   "ноутбук",
		Category:      models.DefaultCategory,
		CanonicalURL:  fmt.Sprintf("https://www.wildberries.by/catalog/%d/detail.aspx", id),
	}
}

func batch(n int) []models.Product {
	products := make([]models.Product, 0, n)
	for i := 1; i <= n; i++ {
		products = append(products, product(int64(i), "100.50"))
	}
	return products
}

func TestPersistSkipIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.Persist(ctx, batch(5), config.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Inserted)
	assert.Equal(t, 5, first.Saved())

	second, err := repo.Persist(ctx, batch(5), config.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Saved())
	assert.Equal(t, 5, second.Skipped)

	count, err := repo.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestPersistOverwriteUpdatesAndKeepsCreatedAt(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	repo.SetClock(func() time.Time { return t1 })
	_, err := repo.Persist(ctx, batch(3), config.PolicyOverwrite)
	require.NoError(t, err)

	changed := batch(3)
	for i := range changed {
		changed[i].Price = decimal.RequireFromString("90")
		changed[i].ReviewCount = 12
		changed[i].Rating = decimal.NewNullDecimal(decimal.RequireFromString("4.5"))
	}
	repo.SetClock(func() time.Time { return t2 })
	res, err := repo.Persist(ctx, changed, config.PolicyOverwrite)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Updated)
	assert.Equal(t, 3, res.Saved())
	assert.Equal(t, 0, res.Inserted)

	stored, ok, err := repo.FindByExternalID(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(90).Equal(stored.Price), stored.Price.String())
	assert.Equal(t, 12, stored.ReviewCount)
	require.True(t, stored.Rating.Valid)
	assert.True(t, stored.CreatedAt.Equal(t1), "created_at changed: %v", stored.CreatedAt)
	assert.True(t, stored.UpdatedAt.Equal(t2), "updated_at not bumped: %v", stored.UpdatedAt)

	count, err := repo.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestPersistDuplicateKeyWithinBatch(t *testing.T) {
	repo := newTestRepository(t)

	res, err := repo.Persist(context.Background(), []models.Product{product(7, "10"), product(7, "20")}, config.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Skipped)

	stored, ok, err := repo.FindByExternalID(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(10).Equal(stored.Price))
}

func TestPersistRejectsMissingKey(t *testing.T) {
	repo := newTestRepository(t)

	noKey := product(0, "10")
	noKey.CanonicalURL = ""
	res, err := repo.Persist(context.Background(), []models.Product{noKey, product(1, "10")}, config.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.Inserted)
	require.Len(t, res.Errors, 1)
	assert.True(t, errors.Is(res.Errors[0], ErrMissingKey))
}

func TestPersistConflictIsIsolated(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Persist(ctx, []models.Product{product(1, "10")}, config.PolicySkip)
	require.NoError(t, err)

	// другой external_id, но тот же canonical_url
	clash := product(2, "10")
	clash.CanonicalURL = product(1, "10").CanonicalURL
	res, err := repo.Persist(ctx, []models.Product{clash, product(3, "10")}, config.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicts)
	assert.Equal(t, 1, res.Inserted)

	var conflict *PersistenceConflict
	require.True(t, errors.As(res.Errors[0], &conflict))
	assert.Equal(t, int64(2), conflict.ExternalID)

	_, ok, err := repo.FindByExternalID(ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPersistRecordFailureIsIsolated(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// нарушает CHECK products_review_count_positive
	bad := product(2, "10")
	bad.ReviewCount = -1
	res, err := repo.Persist(ctx, []models.Product{product(1, "10"), bad, product(3, "10")}, config.PolicySkip)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Conflicts)

	require.Len(t, res.Errors, 1)
	var recordErr *RecordError
	require.True(t, errors.As(res.Errors[0], &recordErr))
	assert.Equal(t, int64(2), recordErr.ExternalID)

	for id, stored := range map[int64]bool{1: true, 2: false, 3: true} {
		_, ok, err := repo.FindByExternalID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, stored, ok, "external_id=%d", id)
	}
}

func TestPersistCancelledContextFailsBatch(t *testing.T) {
	repo := newTestRepository(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Persist(ctx, batch(2), config.PolicySkip)
	require.Error(t, err)

	n, err := repo.Count(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPersistUnknownPolicy(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Persist(context.Background(), batch(1), "merge")
	assert.True(t, errors.Is(err, ErrUnknownPolicy))
}
