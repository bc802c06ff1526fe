package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// toColumnValue converts a cleaned string to the value bound for a column.
// Text columns keep the sentinel; numeric columns treat it as NULL.
func toColumnValue(spec core.FieldSpec, s string) any {
	switch spec.Type {
	case core.FieldInteger:
		if isSentinel(s) {
			return pgtype.Int4{}
		}
		return core.ToPgInt4(s)
	case core.FieldNumeric:
		if isSentinel(s) {
			return pgtype.Numeric{}
		}
		return core.ToPgNumeric(s)
	default:
		return core.ToPgText(s)
	}
}

func isSentinel(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), core.Sentinel)
}

// normalizeValue folds driver values into the small set of result types.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	case bool:
		return t
	case string:
		return t
	case []byte:
		return string(t)
	case pgtype.Numeric:
		f, err := t.Float64Value()
		if err != nil || !f.Valid || t.NaN {
			return nil
		}
		return f.Float64
	case time.Time:
		return t.Format(core.TimestampLayout)
	default:
		return fmt.Sprint(t)
	}
}
