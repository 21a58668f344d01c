package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey - у записи нет external_id, сохранять её нельзя.
	ErrMissingKey    = errors.New("record has no external id")
	ErrUnknownPolicy = errors.New("unknown dedup policy")
	ErrInvalidFilter = errors.New("invalid filter")
)

// PersistenceConflict - запись нарушила уникальный индекс (гонка на
// external_id или совпавший canonical_url). Пакет при этом продолжается.
type PersistenceConflict struct {
	ExternalID   int64
	CanonicalURL string
	Err          error
}

func (e *PersistenceConflict) Error() string {
	return fmt.Sprintf("persistence conflict for external_id=%d (%s): %v", e.ExternalID, e.CanonicalURL, e.Err)
}

func (e *PersistenceConflict) Unwrap() error {
	return e.Err
}

// RecordError - запись отклонена базой (CHECK, переполнение NUMERIC и т.п.).
// Её savepoint уже откачен, остальной пакет продолжается.
type RecordError struct {
	ExternalID int64
	Err        error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("failed to persist external_id=%d: %v", e.ExternalID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
