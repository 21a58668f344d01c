package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wbcatalog/config"
	"wbcatalog/internal/catalog/models"
	wbmodels "wbcatalog/internal/wildberries/models"
	"wbcatalog/pkg/logger"
)

// ErrNotFound - карточки с таким id нет в WB.
var ErrNotFound = errors.New("product not found upstream")

type DetailFetcher interface {
	FetchDetail(ctx context.Context, id int64) (wbmodels.RawRecord, bool, error)
}

type RefreshStore interface {
	ProductStore
	FindByExternalID(ctx context.Context, externalID int64) (models.Product, bool, error)
}

// RefreshResult - карточка после обновления.
type RefreshResult struct {
	Product  models.ProductView `json:"product"`
	Inserted bool               `json:"inserted"`
}

// Refresher перечитывает одну карточку из card.wb.ru и пишет её с политикой
// overwrite. search_query и category существующей строки сохраняются.
type Refresher struct {
	fetcher    DetailFetcher
	normalizer RecordNormalizer
	store      RefreshStore
	timeout    time.Duration
	log        logger.Logger
}

func NewRefresher(fetcher DetailFetcher, normalizer RecordNormalizer, store RefreshStore, timeout time.Duration, log logger.Logger) *Refresher {
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}
	return &Refresher{
		fetcher:    fetcher,
		normalizer: normalizer,
		store:      store,
		timeout:    timeout,
		log:        log.WithPrefix("[Refresh]"),
	}
}

// Refresh: searchQuery и category используются только для новой строки.
func (r *Refresher) Refresh(ctx context.Context, id int64, searchQuery, category string) (RefreshResult, error) {
	if id <= 0 {
		return RefreshResult{}, fmt.Errorf("%w: external id must be positive, got %d", ErrInvalidRequest, id)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	existing, found, err := r.store.FindByExternalID(ctx, id)
	if err != nil {
		return RefreshResult{}, err
	}
	if found {
		searchQuery = existing.SearchQuery
		if category == "" {
			category = existing.Category
		}
	}

	raw, ok, err := r.fetcher.FetchDetail(ctx, id)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("fetch detail: %w", err)
	}
	if !ok {
		return RefreshResult{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	product, err := r.normalizer.Normalize(raw, searchQuery, category)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("normalize: %w", err)
	}
	if product.ExternalID != id {
		return RefreshResult{}, fmt.Errorf("detail for %d returned external_id=%d", id, product.ExternalID)
	}

	persisted, err := r.store.Persist(ctx, []models.Product{product}, config.PolicyOverwrite)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("persist: %w", err)
	}
	if len(persisted.Errors) > 0 {
		return RefreshResult{}, persisted.Errors[0]
	}

	stored, _, err := r.store.FindByExternalID(ctx, id)
	if err != nil {
		return RefreshResult{}, err
	}
	r.log.Log("Refreshed external_id=%d (inserted=%t)", id, persisted.Inserted > 0)
	return RefreshResult{Product: stored.View(), Inserted: persisted.Inserted > 0}, nil
}
