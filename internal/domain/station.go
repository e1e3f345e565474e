package domain

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrNotObject is reported for station list entries that are not JSON objects.
	ErrNotObject = errors.New("station record is not an object")
	// ErrExtractionPanic wraps a recovered panic from one station record.
	ErrExtractionPanic = errors.New("extraction panicked")
)

var locationKeys = []string{"locationName", "location", "name", "area", "county", "city"}

// stationName resolves the station label: StationName (station format) first,
// then the generic name keys.
func stationName(rec gjson.Result) string {
	if v := field(rec, "StationName"); truthy(v) {
		return locationText(v, true)
	}
	v, ok := resolveTruthy(rec, locationKeys...)
	return locationText(v, ok)
}

// dateSource tries to find a timestamp in one place of a station record.
type dateSource func(rec gjson.Result) (gjson.Result, bool)

// Forecast documents carry the timestamp on the time list; station documents
// carry it on ObsTime. Each extractor checks its own format first.
var (
	observationDateSources   = []dateSource{timeListDate, obsTimeDate, elementTimeDate, flatDate}
	precipitationDateSources = []dateSource{obsTimeDate, timeListDate, elementTimeDate, flatDate}
)

// stationDate returns the first timestamp found by sources, falling back to
// the current UTC time.
func stationDate(rec gjson.Result, sources []dateSource) string {
	for _, src := range sources {
		if v, ok := src(rec); ok {
			return dateText(v, true)
		}
	}
	return dateText(gjson.Result{}, false)
}

func timeListDate(rec gjson.Result) (gjson.Result, bool) {
	t0, ok := firstElement(field(rec, "time"))
	if !ok {
		return gjson.Result{}, false
	}
	return resolveTruthy(t0, "startTime", "dataTime", "time")
}

func obsTimeDate(rec gjson.Result) (gjson.Result, bool) {
	obs := field(rec, "ObsTime")
	if !obs.IsObject() {
		return gjson.Result{}, false
	}
	dt := field(obs, "DateTime")
	return dt, truthy(dt)
}

func elementTimeDate(rec gjson.Result) (gjson.Result, bool) {
	elements := field(rec, "weatherElement")
	if !elements.IsArray() {
		return gjson.Result{}, false
	}
	var found gjson.Result
	ok := false
	elements.ForEach(func(_, e gjson.Result) bool {
		t0, has := firstElement(field(e, "time"))
		if !has {
			return true
		}
		found, ok = resolveTruthy(t0, "startTime", "dataTime")
		return !ok
	})
	return found, ok
}

func flatDate(rec gjson.Result) (gjson.Result, bool) {
	return resolveTruthy(rec, "date", "forecastDate", "dataTime")
}

// guard converts a panic during one record's extraction into an error so the
// rest of the batch keeps going.
func guard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrExtractionPanic, r)
	}
}

// skipReason maps an extraction error to its result reason.
func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrNotObject):
		return ReasonNotObject
	case errors.Is(err, ErrExtractionPanic):
		return ReasonPanic
	default:
		return err.Error()
	}
}
