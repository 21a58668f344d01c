package models

import (
	"sort"
	"strconv"
)

// RawRecord - товар в том виде, в каком его вернул поиск WB: открытая карта
// ключ-значение без гарантий по типам и наличию полей. Типизированный
// models.Product получается из неё только через normalize.
type RawRecord map[string]interface{}

// Lookup проходит по вложенным объектам и массивам. Сегмент пути для массива -
// индекс в десятичной записи: Lookup("sizes", "0", "price", "basic").
func (r RawRecord) Lookup(path ...string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(r)
	for _, key := range path {
		switch node := current.(type) {
		case map[string]interface{}:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			current = v
		case RawRecord:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			current = v
		case []interface{}:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Present - поле есть и не равно null.
func (r RawRecord) Present(path ...string) (interface{}, bool) {
	v, ok := r.Lookup(path...)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (r RawRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
