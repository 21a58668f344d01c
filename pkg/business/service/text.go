package service

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type ITextService interface {
	RemoveTags(input string) string
	NormalizeUnicode(input string) string
	CollapseSpaces(input string) string
	ReduceToLength(input string, length int) string
	CleanName(input string, length int) string
}

var tagsRe = regexp.MustCompile(`<[^>]*>`)

type TextService struct{}

func NewTextService() *TextService {
	return &TextService{}
}

func (ts *TextService) RemoveTags(input string) string {
	return tagsRe.ReplaceAllString(html.UnescapeString(input), "")
}

// NormalizeUnicode приводит строку к NFC: WB отдаёт названия то в составной,
// то в разложенной форме ("й" как и + знак краткости).
func (ts *TextService) NormalizeUnicode(input string) string {
	return norm.NFC.String(input)
}

// CollapseSpaces убирает управляющие символы и схлопывает пробелы.
func (ts *TextService) CollapseSpaces(input string) string {
	var builder strings.Builder
	builder.Grow(len(input))
	space := false
	for _, r := range input {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			space = true
			continue
		}
		if space && builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		space = false
		builder.WriteRune(r)
	}
	return builder.String()
}

// ReduceToLength обрезает по границе слова до length рун; слово длиннее
// лимита обрезается посимвольно.
func (ts *TextService) ReduceToLength(input string, length int) string {
	if utf8.RuneCountInString(input) <= length {
		return input
	}
	runes := []rune(input)[:length]
	if idx := lastSpace(runes); idx > 0 {
		runes = runes[:idx]
	}
	return strings.TrimSpace(string(runes))
}

func (ts *TextService) CleanName(input string, length int) string {
	cleaned := ts.RemoveTags(input)
	cleaned = ts.NormalizeUnicode(cleaned)
	cleaned = ts.CollapseSpaces(cleaned)
	return ts.ReduceToLength(cleaned, length)
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}
