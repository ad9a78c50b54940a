package jsonx

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Numbers(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"5000", float64(5000)},
		{"0.1", 0.1},
		{"-12.75", -12.75},
		{"1e3", float64(1000)},
		{"9007199254740992", float64(9007199254740992)},
		{"9007199254740993", json.Number("9007199254740993")},
		{"-9223372036854775807", json.Number("-9223372036854775807")},
		{"0.10000000000000000001", json.Number("0.10000000000000000001")},
		{"1e400", json.Number("1e400")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_NestedRoundTrip(t *testing.T) {
	in := `{"id":"g1","targetAmount":9007199254740993,"tags":["a",1.5,{"n":12345678901234567890}],"ok":true,"x":null}`

	v, err := DecodeObject([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), v["targetAmount"])
	assert.Equal(t, 1.5, v["tags"].([]any)[1])

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Contains(t, string(out), "9007199254740993")
	assert.Contains(t, string(out), "12345678901234567890")
}

func TestDecodeObject_Errors(t *testing.T) {
	m, err := DecodeObject([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = DecodeObject([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = DecodeObject([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	_, err = DecodeObject([]byte(`{"a":`))
	assert.Error(t, err)
}
