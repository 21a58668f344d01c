package ingest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"wbcatalog/config"
	"wbcatalog/internal/catalog/models"
	"wbcatalog/internal/catalog/storage"
	wbmodels "wbcatalog/internal/wildberries/models"
	"wbcatalog/metrics"
	"wbcatalog/pkg/logger"
)

const defaultPageTimeout = 2 * time.Minute

var (
	ErrInvalidRequest = errors.New("invalid ingest request")
	// ErrRecordAborted - запуск остановлен на ошибке нормализации (on_record_error: abort).
	ErrRecordAborted = errors.New("ingestion aborted on record error")
)

type PageFetcher interface {
	FetchPage(ctx context.Context, params wbmodels.SearchParams) ([]wbmodels.RawRecord, error)
}

type RecordNormalizer interface {
	Normalize(raw wbmodels.RawRecord, searchQuery, category string) (models.Product, error)
}

type ProductStore interface {
	Persist(ctx context.Context, products []models.Product, policy string) (storage.PersistResult, error)
}

// Options - политики и темп одного пайплайна.
type Options struct {
	DedupPolicy   string
	OnPageError   string
	OnRecordError string
	MinDelay      time.Duration
	MaxDelay      time.Duration
	// PageTimeout ограничивает fetch и persist одной страницы.
	PageTimeout time.Duration
}

func OptionsFromConfig(cfg config.IngestConfig, pageTimeout time.Duration) Options {
	return Options{
		DedupPolicy:   cfg.DedupPolicy,
		OnPageError:   cfg.OnPageError,
		OnRecordError: cfg.OnRecordError,
		MinDelay:      cfg.MinDelay,
		MaxDelay:      cfg.MaxDelay,
		PageTimeout:   pageTimeout,
	}
}

type Pipeline struct {
	fetcher    PageFetcher
	normalizer RecordNormalizer
	store      ProductStore
	opts       Options
	log        logger.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewPipeline(fetcher PageFetcher, normalizer RecordNormalizer, store ProductStore, opts Options, log logger.Logger) *Pipeline {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = defaultPageTimeout
	}
	return &Pipeline{
		fetcher:    fetcher,
		normalizer: normalizer,
		store:      store,
		opts:       opts,
		log:        log.WithPrefix("[Pipeline]"),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithPolicy - тот же пайплайн с другой политикой дедупликации.
func (p *Pipeline) WithPolicy(policy string) *Pipeline {
	opts := p.opts
	opts.DedupPolicy = policy
	return &Pipeline{
		fetcher:    p.fetcher,
		normalizer: p.normalizer,
		store:      p.store,
		opts:       opts,
		log:        p.log,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Pipeline) Policy() string {
	return p.opts.DedupPolicy
}

// Run обходит страницы 1..pages строго последовательно. Отмена ctx
// учитывается только между страницами: начатые fetch и persist доводятся до
// конца на отвязанном контексте со своим таймаутом.
func (p *Pipeline) Run(ctx context.Context, query string, pages int, category string) (Result, error) {
	start := time.Now()
	result := Result{Query: query, Pages: pages, Policy: p.opts.DedupPolicy}
	finish := func(err error) (Result, error) {
		result.Duration = time.Since(start)
		return result, err
	}

	if strings.TrimSpace(query) == "" {
		return finish(fmt.Errorf("%w: empty query", ErrInvalidRequest))
	}
	if pages < 1 {
		return finish(fmt.Errorf("%w: pages must be >= 1, got %d", ErrInvalidRequest, pages))
	}

	p.log.Log("Starting ingestion: query=%q pages=%d category=%q policy=%s", query, pages, category, p.opts.DedupPolicy)

	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("cancelled before page %d", page))
			return finish(err)
		}

		err := p.runPage(ctx, query, page, category, &result)
		switch {
		case errors.Is(err, ErrRecordAborted):
			metrics.RecordPage("aborted")
			result.PagesFailed++
			result.Warnings = append(result.Warnings, fmt.Sprintf("page %d: %v", page, err))
			return finish(err)
		case err != nil:
			metrics.RecordPage("failed")
			result.PagesFailed++
			result.Warnings = append(result.Warnings, fmt.Sprintf("page %d failed: %v", page, err))
			p.log.Error("Page %d failed: %v", page, err)
			if p.opts.OnPageError == config.PolicyAbort {
				return finish(fmt.Errorf("page %d: %w", page, err))
			}
		default:
			metrics.RecordPage("ok")
		}

		if page < pages {
			if err := p.pause(ctx); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("cancelled after page %d", page))
				return finish(err)
			}
		}
	}

	p.log.Log("Ingestion finished: query=%q fetched=%d saved=%d skipped=%d normalization_errors=%d pages_failed=%d",
		query, result.Fetched, result.Saved, result.Skipped, result.NormalizationErrors, result.PagesFailed)
	return finish(nil)
}

func (p *Pipeline) runPage(ctx context.Context, query string, page int, category string, result *Result) error {
	pageCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.PageTimeout)
	defer cancel()

	records, err := p.fetcher.FetchPage(pageCtx, wbmodels.SearchParams{Query: query, Page: page, Category: category})
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	result.Fetched += len(records)
	metrics.RecordFetched(len(records))

	products := make([]models.Product, 0, len(records))
	for i, raw := range records {
		product, err := p.normalizer.Normalize(raw, query, category)
		if err != nil {
			result.NormalizationErrors++
			metrics.RecordNormalizationError()
			p.log.Warn("Page %d record %d skipped: %v", page, i, err)
			if p.opts.OnRecordError == config.PolicyAbort {
				return fmt.Errorf("%w: record %d: %w", ErrRecordAborted, i, err)
			}
			continue
		}
		products = append(products, product)
	}

	persisted, err := p.store.Persist(pageCtx, products, p.opts.DedupPolicy)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	result.addPersisted(persisted)
	metrics.RecordPersisted("inserted", persisted.Inserted)
	metrics.RecordPersisted("updated", persisted.Updated)
	metrics.RecordPersisted("skipped", persisted.Skipped)
	metrics.RecordPersisted("rejected", persisted.Rejected)
	metrics.RecordPersisted("conflict", persisted.Conflicts)
	metrics.RecordPersisted("failed", persisted.Failed)

	p.log.Log("Page %d: fetched %d, saved %d", page, len(records), persisted.Saved())
	return nil
}

// pause - случайная задержка в [MinDelay, MaxDelay]; прерывается отменой ctx.
func (p *Pipeline) pause(ctx context.Context) error {
	delay := p.delay()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pipeline) delay() time.Duration {
	spread := p.opts.MaxDelay - p.opts.MinDelay
	if spread <= 0 {
		return p.opts.MinDelay
	}
	p.rndMu.Lock()
	defer p.rndMu.Unlock()
	return p.opts.MinDelay + time.Duration(p.rnd.Int63n(int64(spread)+1))
}
