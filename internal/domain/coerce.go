package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const unknownLocation = "Unknown"

// textValue renders a JSON value as record text. Strings are unquoted; numbers,
// booleans, and containers keep their source representation.
func textValue(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	return strings.TrimSpace(v.Raw)
}

// optionalText returns nil for missing, null, or empty-string values.
func optionalText(v gjson.Result) *string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := textValue(v)
	if s == "" {
		return nil
	}
	return &s
}

// optionalFloat coerces a JSON number or numeric string to float64. Anything
// else, including NaN and infinities, yields nil.
func optionalFloat(v gjson.Result) *float64 {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// locationText applies the non-empty default for station names.
func locationText(v gjson.Result, ok bool) string {
	if !ok {
		return unknownLocation
	}
	if s := textValue(v); s != "" {
		return s
	}
	return unknownLocation
}

// dateText applies the non-empty default for timestamps: the current UTC time.
func dateText(v gjson.Result, ok bool) string {
	if ok {
		if s := textValue(v); s != "" {
			return s
		}
	}
	return fallbackDate()
}

// emitObservation builds the final observation record and its status.
func emitObservation(location, date string, minTemp, maxTemp, description gjson.Result) (ObservationRecord, Status) {
	rec := ObservationRecord{
		Location:    location,
		Date:        date,
		MinTemp:     optionalFloat(minTemp),
		MaxTemp:     optionalFloat(maxTemp),
		Description: optionalText(description),
	}
	status := StatusComplete
	if rec.MinTemp == nil || rec.MaxTemp == nil || rec.Description == nil {
		status = StatusPartial
	}
	return rec, status
}

// emitPrecipitation builds one precipitation record.
func emitPrecipitation(location, date, period string, value gjson.Result) PrecipitationRecord {
	return PrecipitationRecord{
		Location:      location,
		Date:          date,
		Period:        period,
		Precipitation: optionalFloat(value),
	}
}
