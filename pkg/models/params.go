package models

import (
	"strings"

	"github.com/spf13/cast"
)

// Params is an opaque policy or source configuration. Lookups ignore case,
// '_' and '-' because viper lowercases nested keys.
type Params map[string]any

func normalizeKey(key string) string {
	return strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(key))
}

// lookup prefers an exact key. Among spellings that only normalize to key,
// the lexically smallest wins so the result does not depend on map order.
func (p Params) lookup(key string) (any, bool) {
	if v, ok := p[key]; ok {
		return v, true
	}

	want := normalizeKey(key)
	match, found := "", false
	for k := range p {
		if normalizeKey(k) == want && (!found || k < match) {
			match, found = k, true
		}
	}
	if !found {
		return nil, false
	}
	return p[match], true
}

func (p Params) Has(key string) bool {
	_, ok := p.lookup(key)
	return ok
}

func (p Params) String(key, def string) (string, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	return cast.ToStringE(v)
}

func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	return cast.ToFloat64E(v)
}

func (p Params) Int(key string, def int) (int, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	return cast.ToIntE(v)
}
