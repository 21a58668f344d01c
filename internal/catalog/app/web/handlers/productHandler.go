package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"wbcatalog/internal/catalog/export"
	"wbcatalog/internal/catalog/ingest"
	"wbcatalog/internal/catalog/models"
	"wbcatalog/internal/catalog/storage"
)

type ProductReader interface {
	FindByExternalID(ctx context.Context, externalID int64) (models.Product, bool, error)
	Find(ctx context.Context, f storage.Filter) ([]models.Product, error)
	Count(ctx context.Context, f storage.Filter) (int64, error)
	Stats(ctx context.Context, f storage.Filter) (storage.Stats, error)
	Queries(ctx context.Context) ([]storage.QueryCount, error)
}

type Refresher interface {
	Refresh(ctx context.Context, id int64, searchQuery, category string) (ingest.RefreshResult, error)
}

type ProductHandler struct {
	products  ProductReader
	refresher Refresher
}

func NewProductHandler(products ProductReader) *ProductHandler {
	return &ProductHandler{products: products}
}

// WithRefresher включает POST /api/products/:external_id/refresh.
func (h *ProductHandler) WithRefresher(r Refresher) *ProductHandler {
	h.refresher = r
	return h
}

const maxExportRows = 10000

type listResponse struct {
	Count   int64                `json:"count"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
	Results []models.ProductView `json:"results"`
}

func (h *ProductHandler) List(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILTER", "Invalid query parameters", err.Error())
	}
	ctx := c.Request().Context()

	products, err := h.products.Find(ctx, filter)
	if errors.Is(err, storage.ErrInvalidFilter) {
		return fail(c, http.StatusBadRequest, "INVALID_FILTER", "Invalid query parameters", err.Error())
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}
	total, err := h.products.Count(ctx, filter)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count products", err.Error())
	}

	views := make([]models.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, p.View())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = storage.DefaultLimit
	}
	if limit > storage.MaxLimit {
		limit = storage.MaxLimit
	}
	return c.JSON(http.StatusOK, listResponse{Count: total, Limit: limit, Offset: filter.Offset, Results: views})
}

func (h *ProductHandler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("external_id"), 10, 64)
	if err != nil || id <= 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid external id", nil)
	}
	product, ok, err := h.products.FindByExternalID(c.Request().Context(), id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load product", err.Error())
	}
	if !ok {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	return c.JSON(http.StatusOK, product.View())
}

// Refresh перечитывает карточку из WB и перезаписывает её. Тело не обязательно:
// {"search_query","category"} нужны только для новой карточки.
func (h *ProductHandler) Refresh(c echo.Context) error {
	if h.refresher == nil {
		return fail(c, http.StatusNotImplemented, "NOT_CONFIGURED", "Refresh is not configured", nil)
	}
	id, err := strconv.ParseInt(c.Param("external_id"), 10, 64)
	if err != nil || id <= 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid external id", nil)
	}
	var body struct {
		SearchQuery string `json:"search_query"`
		Category    string `json:"category"`
	}
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&body); err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_BODY", "Failed to decode request body", err.Error())
		}
	}

	result, err := h.refresher.Refresh(c.Request().Context(), id, strings.TrimSpace(body.SearchQuery), strings.TrimSpace(body.Category))
	switch {
	case errors.Is(err, ingest.ErrInvalidRequest):
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid refresh request", err.Error())
	case errors.Is(err, ingest.ErrNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found upstream", nil)
	case err != nil:
		return fail(c, http.StatusBadGateway, "REFRESH_FAILED", "Failed to refresh product", err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *ProductHandler) Stats(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILTER", "Invalid query parameters", err.Error())
	}
	stats, err := h.products.Stats(c.Request().Context(), filter)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute stats", err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *ProductHandler) Queries(c echo.Context) error {
	queries, err := h.products.Queries(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list queries", err.Error())
	}
	if queries == nil {
		queries = []storage.QueryCount{}
	}
	return c.JSON(http.StatusOK, queries)
}

// Export - GET /api/products/export?charset=cp1251 и те же фильтры, что у List.
// limit игнорируется, выгрузка идёт страницами до maxExportRows.
func (h *ProductHandler) Export(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILTER", "Invalid query parameters", err.Error())
	}
	charset, err := export.Charset(c.QueryParam("charset"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_CHARSET", "Unsupported charset", err.Error())
	}
	ctx := c.Request().Context()

	filter.Limit = storage.MaxLimit
	page, err := h.products.Find(ctx, filter)
	if errors.Is(err, storage.ErrInvalidFilter) {
		return fail(c, http.StatusBadRequest, "INVALID_FILTER", "Invalid query parameters", err.Error())
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/csv; charset="+charset)
	resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="products.csv"`)
	resp.WriteHeader(http.StatusOK)

	w, err := export.NewWriter(resp, charset)
	if err != nil {
		return err
	}
	for {
		for _, p := range page {
			if w.Rows() >= maxExportRows {
				return w.Close()
			}
			if err := w.Write(p); err != nil {
				return err
			}
		}
		if len(page) < storage.MaxLimit {
			break
		}
		filter.Offset += storage.MaxLimit
		// заголовки уже отправлены, ошибку остаётся только залогировать
		if page, err = h.products.Find(ctx, filter); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func parseFilter(c echo.Context) (storage.Filter, error) {
	f := storage.Filter{
		Search:      c.QueryParam("search"),
		Name:        c.QueryParam("name"),
		SearchQuery: c.QueryParam("search_query"),
		Category:    c.QueryParam("category"),
		Ordering:    c.QueryParam("ordering"),
	}

	err := echo.QueryParamsBinder(c).
		Int("limit", &f.Limit).
		Int("offset", &f.Offset).
		BindError()
	if err != nil {
		return f, err
	}

	decimals := []struct {
		param string
		dest  *decimal.NullDecimal
	}{
		{"min_price", &f.MinPrice},
		{"max_price", &f.MaxPrice},
		{"min_original_price", &f.MinOriginalPrice},
		{"max_original_price", &f.MaxOriginalPrice},
		{"min_rating", &f.MinRating},
		{"max_rating", &f.MaxRating},
	}
	for _, d := range decimals {
		raw := strings.TrimSpace(c.QueryParam(d.param))
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return f, errors.New(d.param + ": not a number")
		}
		*d.dest = decimal.NewNullDecimal(v)
	}

	if f.MinReviews, err = optionalInt(c, "min_reviews"); err != nil {
		return f, err
	}
	if f.MaxReviews, err = optionalInt(c, "max_reviews"); err != nil {
		return f, err
	}
	if raw := c.QueryParam("has_discount"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, errors.New("has_discount: not a boolean")
		}
		f.HasDiscount = &v
	}
	if f.Offset < 0 {
		return f, errors.New("offset: must not be negative")
	}
	return f, nil
}

func optionalInt(c echo.Context, param string) (*int, error) {
	raw := strings.TrimSpace(c.QueryParam(param))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New(param + ": not an integer")
	}
	return &v, nil
}
