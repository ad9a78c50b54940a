// Package jsonx decodes record JSON into plain Go values without losing
// numeric precision.
package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
)

// Decode parses a single JSON value. Numbers become float64 when that keeps
// their exact value through a re-encode; otherwise (integers beyond 2^53, very
// long decimals) they stay json.Number, which encodes back to the same digits.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return convert(v), nil
}

// DecodeObject parses a JSON object. A JSON null yields a nil map.
func DecodeObject(data []byte) (map[string]any, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	}
	return nil, fmt.Errorf("expected a JSON object, got %T", v)
}

func convert(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = convert(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = convert(e)
		}
		return t
	case json.Number:
		if f, ok := exactFloat(t); ok {
			return f
		}
		return t
	}
	return v
}

// exactFloat reports whether n survives float64 encoding unchanged.
func exactFloat(n json.Number) (float64, bool) {
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	want, ok := new(big.Rat).SetString(n.String())
	if !ok {
		return 0, false
	}
	got, ok := new(big.Rat).SetString(strconv.FormatFloat(f, 'g', -1, 64))
	if !ok {
		return 0, false
	}
	return f, want.Cmp(got) == 0
}
