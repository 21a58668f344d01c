package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"wbcatalog/internal/catalog/ingest"
	"wbcatalog/internal/catalog/storage"
)

type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

type RunLister interface {
	Recent(ctx context.Context, limit int) ([]storage.RunRecord, error)
}

type IngestHandler struct {
	ingester Ingester
	runs     RunLister
}

func NewIngestHandler(ingester Ingester, runs RunLister) *IngestHandler {
	return &IngestHandler{ingester: ingester, runs: runs}
}

type ingestResponse struct {
	ingest.Result
	Error string `json:"error,omitempty"`
}

// Run - POST /api/ingest. Ошибки отдельных страниц и записей не делают ответ
// неуспешным: они в warnings и счётчиках результата.
func (h *IngestHandler) Run(c echo.Context) error {
	var req ingest.Request
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_BODY", "Failed to decode request body", err.Error())
	}

	result, err := h.ingester.Ingest(c.Request().Context(), req)
	switch {
	case errors.Is(err, ingest.ErrInvalidRequest):
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid ingest request", err.Error())
	case errors.Is(err, ingest.ErrBusy):
		return fail(c, http.StatusConflict, "BUSY", "Another ingestion is running", nil)
	case err != nil:
		return c.JSON(http.StatusOK, ingestResponse{Result: result, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, ingestResponse{Result: result})
}

// Runs - GET /api/ingest/runs?limit=N
func (h *IngestHandler) Runs(c echo.Context) error {
	limit := storage.DefaultLimit
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_PARAMS", "Invalid query parameter", err.Error())
	}
	runs, err := h.runs.Recent(c.Request().Context(), limit)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list ingest runs", err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}
