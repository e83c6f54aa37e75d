package helpers

import (
	"math"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
)

// CastResultToInteger reads a single scalar out of a query result and converts it to an integer.
// The result must have exactly one row with exactly one column.
func CastResultToInteger(res [][]interface{}) (int64, error) {
	if len(res) != 1 || len(res[0]) != 1 {
		return 0, errors.Errorf("multiple results are returned from query, please make sure your query just expects one value - value: %v", res)
	}

	switch v := res[0][0].(type) {
	case nil:
		return 0, errors.Errorf("unexpected result from query, result is nil")
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, errors.Errorf("unexpected result from query, %d overflows an integer", v)
		}
		return int64(v), nil
	case pgtype.Numeric:
		return castNumeric(v)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		atoi, err := strconv.Atoi(v)
		if err == nil {
			return int64(atoi), nil
		}

		floatValue, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return int64(floatValue), nil
		}

		boolValue, err := strconv.ParseBool(v)
		if err == nil {
			if boolValue {
				return 1, nil
			}

			return 0, nil
		}

		return 0, errors.Errorf("unexpected result from query, cannot cast result string to integer: %v", res)
	}

	return 0, errors.Errorf("unexpected result from query, cannot cast result to integer: %v", res)
}

// castNumeric converts NUMERIC/DECIMAL results, truncating fractional values the same way floats are.
func castNumeric(n pgtype.Numeric) (int64, error) {
	if !n.Valid {
		return 0, errors.Errorf("unexpected result from query, result is nil")
	}

	if n.Int != nil && !n.NaN && n.InfinityModifier == pgtype.Finite {
		if i, err := n.Int64Value(); err == nil {
			return i.Int64, nil
		}
	}

	f, err := n.Float64Value()
	if err != nil {
		return 0, errors.Wrap(err, "unexpected result from query, cannot read numeric result")
	}

	if math.IsNaN(f.Float64) || math.IsInf(f.Float64, 0) || f.Float64 > math.MaxInt64 || f.Float64 < math.MinInt64 {
		return 0, errors.Errorf("unexpected result from query, numeric result %v does not fit an integer", f.Float64)
	}

	return int64(f.Float64), nil
}
