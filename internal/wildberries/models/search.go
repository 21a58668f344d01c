package models

// SearchParams - одна страница поисковой выдачи.
type SearchParams struct {
	Query    string
	Page     int
	Category string
}
