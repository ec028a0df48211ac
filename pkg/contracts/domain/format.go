package domain

import (
	"fmt"
	"strconv"
	"time"
)

// MonthLayout is the calendar-month bucket format used by the monthly
// analyses ("YYYY-MM").
const MonthLayout = "2006-01"

// DateLayout is the ISO date format used for date literals.
const DateLayout = "2006-01-02"

// formatValue renders a result value as a string for CSV output.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.Format(DateLayout)
	default:
		return fmt.Sprintf("%v", val)
	}
}
