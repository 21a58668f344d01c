package normalize

import "fmt"

// NormalizationError - поле сырой записи нельзя привести к типу карточки.
type NormalizationError struct {
	Field  string
	Raw    interface{}
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error: field %q = %#v: %s", e.Field, e.Raw, e.Reason)
}
