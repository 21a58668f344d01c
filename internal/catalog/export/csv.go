package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"wbcatalog/internal/catalog/models"
)

const (
	CharsetUTF8   = "utf-8"
	CharsetCP1251 = "windows-1251"
)

var ErrUnknownCharset = errors.New("unknown charset")

// Columns - порядок колонок выгрузки.
var Columns = []string{
	"external_id",
	"name",
	"price",
	"original_price",
	"discount_percentage",
	"rating",
	"review_count",
	"category",
	"search_query",
	"canonical_url",
	"updated_at",
}

// Charset приводит имя кодировки к каноничному. Пустое имя - utf-8.
func Charset(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return CharsetUTF8, nil
	case "windows-1251", "cp1251":
		return CharsetCP1251, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCharset, name)
}

// Writer пишет карточки в CSV с разделителем ';', как его открывает Excel.
type Writer struct {
	csv    *csv.Writer
	closer io.Closer
	rows   int
}

func NewWriter(w io.Writer, charset string) (*Writer, error) {
	charset, err := Charset(charset)
	if err != nil {
		return nil, err
	}
	out := &Writer{}
	if charset == CharsetCP1251 {
		// символы вне cp1251 (эмодзи и т.п.) заменяются, а не ломают выгрузку
		tw := transform.NewWriter(w, encoding.ReplaceUnsupported(charmap.Windows1251.NewEncoder()))
		out.closer = tw
		w = tw
	}
	out.csv = csv.NewWriter(w)
	out.csv.Comma = ';'
	if err := out.csv.Write(Columns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	return out, nil
}

func (w *Writer) Write(p models.Product) error {
	rating := ""
	if p.Rating.Valid {
		rating = p.Rating.Decimal.String()
	}
	updatedAt := ""
	if !p.UpdatedAt.IsZero() {
		updatedAt = p.UpdatedAt.UTC().Format(time.RFC3339)
	}
	err := w.csv.Write([]string{
		strconv.FormatInt(p.ExternalID, 10),
		p.Name,
		p.Price.StringFixed(2),
		p.OriginalPrice.StringFixed(2),
		p.DiscountPercentage().String(),
		rating,
		strconv.Itoa(p.ReviewCount),
		p.Category,
		p.SearchQuery,
		p.CanonicalURL,
		updatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to write product %d: %w", p.ExternalID, err)
	}
	w.rows++
	return nil
}

// Rows - сколько карточек записано.
func (w *Writer) Rows() int {
	return w.rows
}

func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("csv flush error: %w", err)
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
