package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrInvalidParams = errors.New("invalid search params")

// TransportError - запрос не дошёл до ответа: соединение, таймаут, не-2xx статус.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error: %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transport error: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable - повтор имеет смысл только для сетевых сбоев, 429 и 5xx.
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// DecodeError - тело ответа не является корректным JSON.
type DecodeError struct {
	URL     string
	Snippet string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %s: %v (body: %q)", e.URL, e.Err, e.Snippet)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SchemaError - JSON корректен, но это не ожидаемый {"data":{"products":[...]}}.
// Keys - ключи верхнего уровня, которые реально пришли.
type SchemaError struct {
	URL           string
	Reason        string
	Keys          []string
	UpstreamError interface{}
	UpstreamCode  interface{}
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema error: %s: %s; observed keys [%s]", e.URL, e.Reason, strings.Join(e.Keys, ", "))
	if e.UpstreamError != nil {
		fmt.Fprintf(&b, "; upstream error: %v", e.UpstreamError)
	}
	if e.UpstreamCode != nil {
		fmt.Fprintf(&b, "; upstream code: %v", e.UpstreamCode)
	}
	return b.String()
}

// Kind - короткое имя класса ошибки для логов и метрик.
func Kind(err error) string {
	var (
		transportErr *TransportError
		decodeErr    *DecodeError
		schemaErr    *SchemaError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &schemaErr):
		return "schema"
	default:
		return "unknown"
	}
}
