package domain

import (
	"github.com/tidwall/gjson"
)

var (
	rainfallMapKeys = []string{"RainfallElement", "Rainfall", "rainfall"}
	rainfallValKeys = []string{"Precipitation", "Precip", "Value", "precipitation", "value"}
)

// PrecipitationExtractor flattens station rainfall maps into one record per
// period bucket.
type PrecipitationExtractor struct{}

// NewPrecipitationExtractor creates a PrecipitationExtractor.
func NewPrecipitationExtractor() *PrecipitationExtractor {
	return &PrecipitationExtractor{}
}

// Extract processes every record independently; a failing station only loses
// its own rows.
func (e *PrecipitationExtractor) Extract(records []gjson.Result) []PrecipitationResult {
	out := make([]PrecipitationResult, 0, len(records))
	for i, rec := range records {
		out = append(out, e.ExtractOne(i, rec))
	}
	return out
}

// ExtractOne processes the station record at position index.
func (e *PrecipitationExtractor) ExtractOne(index int, rec gjson.Result) PrecipitationResult {
	records, status, reason, err := e.extract(rec)
	if err != nil {
		return PrecipitationResult{Index: index, Status: StatusSkipped, Reason: skipReason(err)}
	}
	return PrecipitationResult{Index: index, Status: status, Reason: reason, Records: records}
}

func (e *PrecipitationExtractor) extract(rec gjson.Result) (records []PrecipitationRecord, status Status, reason string, err error) {
	defer guard(&err)

	if !rec.IsObject() {
		return nil, StatusSkipped, "", ErrNotObject
	}

	rainfall, ok := Resolve(rec, rainfallMapKeys...)
	if !ok || !rainfall.IsObject() {
		return nil, StatusEmpty, ReasonNoRainfallMap, nil
	}

	location := stationName(rec)
	date := stationDate(rec, precipitationDateSources)

	status = StatusComplete
	// ForEach walks the object in source order, which keeps period buckets in
	// the order the provider listed them.
	rainfall.ForEach(func(period, sub gjson.Result) bool {
		val := sub
		if sub.IsObject() {
			val, _ = Resolve(sub, rainfallValKeys...)
		}
		r := emitPrecipitation(location, date, period.Str, val)
		if r.Precipitation == nil {
			status = StatusPartial
		}
		records = append(records, r)
		return true
	})

	if len(records) == 0 {
		return nil, StatusEmpty, ReasonNoRainfallMap, nil
	}
	return records, status, "", nil
}
