package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{"string value", json.RawMessage(`"hello"`), "hello"},
		{"integer value", json.RawMessage(`42`), "42"},
		{"float value", json.RawMessage(`3.14`), "3.14"},
		{"integral float", json.RawMessage(`10.0`), "10"},
		{"boolean true", json.RawMessage(`true`), "true"},
		{"boolean false", json.RawMessage(`false`), "false"},
		{"null value", json.RawMessage(`null`), ""},
		{"empty input", nil, ""},
		{"object falls back to raw", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"table name with padding", json.RawMessage(` "todos" `), "todos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlexibleStringValue(tt.input))
		})
	}
}

func TestFlexibleValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  any
	}{
		{"string", json.RawMessage(`"2024-03-01"`), "2024-03-01"},
		{"numeric string stays string", json.RawMessage(`"10"`), "10"},
		{"integer", json.RawMessage(`10`), int64(10)},
		{"negative integer", json.RawMessage(`-3`), int64(-3)},
		{"float", json.RawMessage(`12.5`), 12.5},
		{"exponent", json.RawMessage(`1e3`), 1000.0},
		{"bool", json.RawMessage(`true`), true},
		{"null", json.RawMessage(`null`), nil},
		{"array", json.RawMessage(`[1,2]`), "[1,2]"},
		{"garbage", json.RawMessage(`NaN`), "NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlexibleValue(tt.input))
		})
	}
}
