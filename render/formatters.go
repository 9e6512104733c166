package render

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/BaSui01/dumpflow/plugin"
)

// Formatter renders one cell value into its indexable form.
type Formatter func(v any) (any, error)

// DefaultFormatters returns the formatter for every known column type.
func DefaultFormatters() map[plugin.ColumnType]Formatter {
	return map[plugin.ColumnType]Formatter{
		plugin.TypeString:   formatString,
		plugin.TypeInt:      formatInt,
		plugin.TypeHex:      formatHex,
		plugin.TypeBool:     formatBool,
		plugin.TypeFloat:    formatFloat,
		plugin.TypeDateTime: formatDateTime,
		plugin.TypeBytes:    formatBytes,
	}
}

// FormatDefault is used for column types without a registered formatter.
func FormatDefault(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64, uint64, float64:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return fmt.Sprintf("%v", x), nil
	}
}

func formatString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	case []byte:
		return string(x), nil
	default:
		return nil, typeMismatch("string", v)
	}
}

func formatInt(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		return uintValue(uint64(x)), nil
	case uint64:
		return uintValue(x), nil
	case plugin.Hex:
		return uintValue(uint64(x)), nil
	default:
		return nil, typeMismatch("int", v)
	}
}

func uintValue(u uint64) any {
	if u > math.MaxInt64 {
		return u
	}
	return int64(u)
}

func formatHex(v any) (any, error) {
	switch x := v.(type) {
	case plugin.Hex:
		return fmt.Sprintf("0x%x", uint64(x)), nil
	case int64:
		if x < 0 {
			return fmt.Sprintf("-0x%x", uint64(-x)), nil
		}
		return fmt.Sprintf("0x%x", x), nil
	case int:
		return formatHex(int64(x))
	case uint64:
		return fmt.Sprintf("0x%x", x), nil
	case uint32:
		return fmt.Sprintf("0x%x", x), nil
	default:
		return nil, typeMismatch("hex", v)
	}
}

func formatBool(v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, typeMismatch("bool", v)
}

func formatFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	default:
		return nil, typeMismatch("float", v)
	}
}

func formatDateTime(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.UTC().Format(time.RFC3339Nano), nil
	default:
		return nil, typeMismatch("datetime", v)
	}
}

func formatBytes(v any) (any, error) {
	if b, ok := v.([]byte); ok {
		return hex.EncodeToString(b), nil
	}
	return nil, typeMismatch("bytes", v)
}

func typeMismatch(want string, got any) error {
	return fmt.Errorf("expected %s value, got %T", want, got)
}
