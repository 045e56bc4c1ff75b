package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RawRecord is one fetched object's field payload. Values are whatever the
// source decoded: strings, json.Number, float64, integers, nested maps.
type RawRecord map[string]any

// Amount looks up key and parses it as an Amount. It reports whether the
// field was present and whether it parsed.
func (r RawRecord) Amount(key string) (v Amount, present, ok bool) {
	raw, present := r[key]
	if !present {
		return Amount{}, false, false
	}
	v, ok = amountFromValue(raw)
	return v, true, ok
}

// Uint64 is Amount for fields bounded to 64 bits.
func (r RawRecord) Uint64(key string) (v uint64, present, ok bool) {
	raw, present := r[key]
	if !present {
		return 0, false, false
	}
	s, ok := integerText(raw)
	if !ok {
		return 0, true, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, true, false
	}
	return v, true, true
}

func amountFromValue(raw any) (Amount, bool) {
	s, ok := integerText(raw)
	if !ok {
		return Amount{}, false
	}
	return ParseAmount(s)
}

// integerText renders a decoded scalar as base-10 integer text, or reports
// that it is not an unsigned integer.
func integerText(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), true
	case json.Number:
		return v.String(), true
	case float64:
		if v < 0 || v != math.Trunc(v) || v > 1<<53 {
			return "", false
		}
		return strconv.FormatUint(uint64(v), 10), true
	case int:
		if v < 0 {
			return "", false
		}
		return strconv.Itoa(v), true
	case int64:
		if v < 0 {
			return "", false
		}
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	default:
		return "", false
	}
}
