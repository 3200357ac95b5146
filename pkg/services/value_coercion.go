package services

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/homebrew-hq/homebrew-engine/pkg/schema"
)

var (
	uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Coerce converts a caller-supplied filter value to the form the store
// expects for the declared column type. uuid and date values are validated
// and returned unchanged; numeric types are parsed to float64. Every other
// type is passed through without validation.
func Coerce(value any, columnType schema.ColumnType) (any, error) {
	switch columnType {
	case schema.TypeUUID:
		s, ok := value.(string)
		if !ok || !uuidPattern.MatchString(s) {
			return nil, fmt.Errorf("expected a UUID, got %v", value)
		}
		return s, nil

	case schema.TypeNumeric, schema.TypeDoublePrecision:
		f, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) {
			return nil, fmt.Errorf("expected a number, got NaN")
		}
		return f, nil

	case schema.TypeDate:
		s, ok := value.(string)
		if !ok || !datePattern.MatchString(s) {
			return nil, fmt.Errorf("expected a date in YYYY-MM-DD format, got %v", value)
		}
		return s, nil

	default:
		return value, nil
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected a number, got %v", value)
	}
}
