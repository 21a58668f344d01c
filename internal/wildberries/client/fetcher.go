package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"wbcatalog/config"
	"wbcatalog/internal/wildberries/models"
	"wbcatalog/metrics"
	"wbcatalog/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const snippetLength = 200

// Fetcher - постраничный поиск и карточка товара WB.
type Fetcher struct {
	session *Session
	cfg     config.WildberriesConfig
	log     logger.Logger
}

func NewFetcher(session *Session, cfg config.WildberriesConfig, log logger.Logger) *Fetcher {
	return &Fetcher{session: session, cfg: cfg, log: log.WithPrefix("[WB Fetcher]")}
}

// FetchPage возвращает сырые записи одной страницы поиска.
func (f *Fetcher) FetchPage(ctx context.Context, params models.SearchParams) ([]models.RawRecord, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidParams)
	}
	if params.Page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidParams, params.Page)
	}

	body, err := f.getJSON(ctx, "search", f.cfg.SearchURL, f.searchValues(params))
	if err != nil {
		return nil, err
	}
	records, err := f.extractProducts(f.cfg.SearchURL, body)
	if err != nil {
		return nil, err
	}
	f.log.Log("query=%q page=%d: got %d products", params.Query, params.Page, len(records))
	return records, nil
}

// FetchDetail возвращает карточку по nm id. Товар не найден - (nil, false, nil).
func (f *Fetcher) FetchDetail(ctx context.Context, id int64) (models.RawRecord, bool, error) {
	if id <= 0 {
		return nil, false, fmt.Errorf("%w: product id must be positive, got %d", ErrInvalidParams, id)
	}

	values := url.Values{}
	values.Set("appType", "1")
	values.Set("curr", f.cfg.Region.Currency)
	values.Set("dest", f.cfg.Region.Dest)
	values.Set("spp", f.cfg.Region.Spp)
	values.Set("nm", strconv.FormatInt(id, 10))

	body, err := f.getJSON(ctx, "detail", f.cfg.DetailURL, values)
	if err != nil {
		return nil, false, err
	}
	records, err := f.extractProducts(f.cfg.DetailURL, body)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0], true, nil
}

// searchValues - закреплённый набор параметров, при котором WB отдаёт выдачу
// "catalog" стабильной формы.
func (f *Fetcher) searchValues(params models.SearchParams) url.Values {
	region := f.cfg.Region
	values := url.Values{}
	values.Set("appType", "1")
	values.Set("curr", region.Currency)
	values.Set("dest", region.Dest)
	values.Set("lang", region.Lang)
	values.Set("page", strconv.Itoa(params.Page))
	values.Set("query", params.Query)
	values.Set("reg", "0")
	values.Set("regions", region.Regions)
	values.Set("resultset", "catalog")
	values.Set("sort", "popular")
	values.Set("spp", region.Spp)
	values.Set("suppressSpellcheck", "false")
	if params.Category != "" {
		values.Set("cat", params.Category)
	}
	return values
}

// getJSON повторяет запрос только при TransportError.
func (f *Fetcher) getJSON(ctx context.Context, endpointName, endpoint string, values url.Values) (interface{}, error) {
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.log.Warn("retrying %s after transport error (attempt %d/%d): %v", endpointName, attempt, f.cfg.MaxRetries, lastErr)
			select {
			case <-ctx.Done():
				return nil, &TransportError{URL: endpoint, Err: ctx.Err()}
			case <-time.After(f.cfg.RetryInterval):
			}
		}

		start := time.Now()
		body, err := f.doGet(ctx, endpoint, values)
		metrics.RecordUpstream(endpointName, Kind(err), time.Since(start))
		if err == nil {
			return body, nil
		}

		var transportErr *TransportError
		if !errors.As(err, &transportErr) || !transportErr.Retryable() {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *Fetcher) doGet(ctx context.Context, endpoint string, values url.Values) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	resp, err := f.session.Get(ctx, endpoint, values)
	if err != nil {
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: endpoint, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var body interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &DecodeError{URL: endpoint, Snippet: snippet(raw), Err: err}
	}
	return body, nil
}

func (f *Fetcher) extractProducts(endpoint string, body interface{}) ([]models.RawRecord, error) {
	root, ok := body.(map[string]interface{})
	if !ok {
		return nil, &SchemaError{URL: endpoint, Reason: fmt.Sprintf("top-level value is %T, not an object", body)}
	}
	envelope := models.RawRecord(root)

	schemaErr := func(reason string) *SchemaError {
		e := &SchemaError{URL: endpoint, Reason: reason, Keys: envelope.Keys()}
		e.UpstreamError, _ = envelope.Present("error")
		e.UpstreamCode, _ = envelope.Present("code")
		return e
	}

	if v, ok := envelope.Present("error"); ok && isSet(v) {
		return nil, schemaErr("upstream reported an error")
	}
	if v, ok := envelope.Present("code"); ok && isSet(v) {
		return nil, schemaErr("upstream reported a non-zero code")
	}

	data, ok := root["data"].(map[string]interface{})
	if !ok {
		return nil, schemaErr("missing data object")
	}
	items, ok := data["products"].([]interface{})
	if !ok {
		return nil, schemaErr("missing data.products array")
	}

	records := make([]models.RawRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			f.log.Warn("skipping data.products[%d]: %T is not an object", i, item)
			continue
		}
		records = append(records, models.RawRecord(obj))
	}
	return records, nil
}

// isSet - значение поля error/code означает отказ: не false, не 0, не пусто.
func isSet(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0"
	case map[string]interface{}:
		return len(t) > 0
	case []interface{}:
		return len(t) > 0
	default:
		return v != nil
	}
}

func snippet(raw []byte) string {
	if len(raw) > snippetLength {
		return string(raw[:snippetLength])
	}
	return string(raw)
}
