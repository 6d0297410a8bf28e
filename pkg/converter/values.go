// pkg/converter/values.go
package converter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/citylab/incident-report/pkg/model"
)

// SecondsPerDay bounds a canonical time-of-day value
const SecondsPerDay = 24 * 60 * 60

// ParseDate parses a date string into a canonical calendar date
// (midnight UTC). Layouts are tried in configuration order.
func (p *ValueParser) ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	for _, layout := range p.config.DateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse %q with any accepted date layout", value)
}

// ParseTimeOfDay parses a time-of-day string into seconds since
// midnight. Values with out-of-range components (hour > 23,
// minute/second > 59) fail to parse.
func (p *ValueParser) ParseTimeOfDay(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty time string")
	}

	for _, layout := range p.config.TimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Hour()*3600 + parsed.Minute()*60 + parsed.Second(), nil
		}
	}

	return 0, fmt.Errorf("cannot parse %q with any accepted time layout", value)
}

// HourOfDay extracts the integer hour (0-23) from a seconds-since-midnight value
func HourOfDay(secondsSinceMidnight int) (int, error) {
	if secondsSinceMidnight < 0 || secondsSinceMidnight >= SecondsPerDay {
		return 0, fmt.Errorf("time-of-day value %d out of range", secondsSinceMidnight)
	}
	return secondsSinceMidnight / 3600, nil
}

// ToString converts a raw cell to its string representation
func (p *ValueParser) ToString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return fmt.Sprintf("%v", v), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", value)
	}
}

// ToInt converts a raw cell to an int64
func (p *ValueParser) ToInt(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, fmt.Errorf("cannot convert empty string to int")
		}
		if intVal, err := strconv.ParseInt(v, 10, 64); err == nil {
			return intVal, nil
		}
		// Some sources emit integer columns as "12.0"
		if floatVal, err := strconv.ParseFloat(v, 64); err == nil {
			return int64(floatVal), nil
		}
		return 0, fmt.Errorf("cannot convert string %q to int", v)
	case nil:
		return 0, fmt.Errorf("cannot convert nil to int")
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

// ToFloat converts a raw cell to a float64
func (p *ValueParser) ToFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, fmt.Errorf("cannot convert empty string to float")
		}
		if floatVal, err := strconv.ParseFloat(v, 64); err == nil {
			return floatVal, nil
		}
		return 0, fmt.Errorf("cannot convert string %q to float", v)
	case nil:
		return 0, fmt.Errorf("cannot convert nil to float")
	default:
		return 0, fmt.Errorf("cannot convert %T to float", value)
	}
}

// ParseCell parses a raw cell according to a declared column type.
// A missing value parses to nil without error.
func (p *ValueParser) ParseCell(value interface{}, columnType model.ColumnType) (interface{}, error) {
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		if p.config.EmptyStringAsNull {
			return nil, nil
		}
	} else if model.IsMissing(value) {
		return nil, nil
	}

	switch columnType {
	case model.TypeString:
		return p.ToString(value)

	case model.TypeDate:
		// Database sources deliver dates as time.Time already
		if t, ok := value.(time.Time); ok {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		str, err := p.ToString(value)
		if err != nil {
			return nil, err
		}
		return p.ParseDate(str)

	case model.TypeTime:
		if t, ok := value.(time.Time); ok {
			return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
		}
		str, err := p.ToString(value)
		if err != nil {
			return nil, err
		}
		return p.ParseTimeOfDay(str)

	case model.TypeInt:
		return p.ToInt(value)

	case model.TypeFloat:
		return p.ToFloat(value)

	default:
		return nil, fmt.Errorf("unknown column type %v", columnType)
	}
}
