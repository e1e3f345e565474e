package domain

import "time"

// RawDocument is one undecoded provider response as handed over by the fetcher.
type RawDocument struct {
	Body      []byte
	Source    string // URL or file path the body was read from
	FetchedAt time.Time
}

// ObservationRecord is one normalized station observation. Location and Date
// are never empty; the optional fields are nil when the source did not carry a
// usable value.
type ObservationRecord struct {
	Location    string   `json:"location"`
	Date        string   `json:"date"`
	MinTemp     *float64 `json:"min_temp"`
	MaxTemp     *float64 `json:"max_temp"`
	Description *string  `json:"description"`
}

// PrecipitationRecord is one (station, period bucket) rainfall reading.
// Period is the raw rainfall-map key, e.g. "Past24hr".
type PrecipitationRecord struct {
	Location      string   `json:"location"`
	Date          string   `json:"date"`
	Period        string   `json:"period"`
	Precipitation *float64 `json:"precipitation"`
}

// Status describes how much of a station record could be extracted.
type Status int

const (
	// StatusComplete means every optional field was resolved.
	StatusComplete Status = iota
	// StatusPartial means the record was emitted with some fields absent.
	StatusPartial
	// StatusEmpty means the station was readable but carried nothing for
	// this stream (e.g. no rainfall map).
	StatusEmpty
	// StatusSkipped means nothing was emitted for the station.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusPartial:
		return "partial"
	case StatusEmpty:
		return "empty"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Skip and absence reasons attached to extraction results.
const (
	ReasonNotObject     = "not_object"
	ReasonPanic         = "panic"
	ReasonNoRainfallMap = "no_rainfall_map"
)

// ObservationResult is the outcome of extracting one station record.
// Record is only meaningful when Status is not StatusSkipped.
type ObservationResult struct {
	Index  int
	Status Status
	Reason string
	Record ObservationRecord
}

// PrecipitationResult is the outcome of flattening one station's rainfall map.
type PrecipitationResult struct {
	Index   int
	Status  Status
	Reason  string
	Records []PrecipitationRecord
}

// Batch holds both record streams derived from a single document.
type Batch struct {
	Shape         string
	Stations      int
	Observations  []ObservationResult
	Precipitation []PrecipitationResult
}

// ObservationRecords returns the emitted observation records in station order.
func (b Batch) ObservationRecords() []ObservationRecord {
	out := make([]ObservationRecord, 0, len(b.Observations))
	for _, r := range b.Observations {
		if r.Status == StatusSkipped {
			continue
		}
		out = append(out, r.Record)
	}
	return out
}

// PrecipitationRecords returns the emitted precipitation records in station
// order, preserving rainfall-map order within each station.
func (b Batch) PrecipitationRecords() []PrecipitationRecord {
	var out []PrecipitationRecord
	for _, r := range b.Precipitation {
		out = append(out, r.Records...)
	}
	return out
}

// SkipCounts tallies skipped results per stream and reason.
func (b Batch) SkipCounts() map[string]map[string]int {
	counts := map[string]map[string]int{}
	add := func(stream, reason string) {
		if counts[stream] == nil {
			counts[stream] = map[string]int{}
		}
		counts[stream][reason]++
	}
	for _, r := range b.Observations {
		if r.Status == StatusSkipped {
			add("observation", r.Reason)
		}
	}
	for _, r := range b.Precipitation {
		if r.Status == StatusSkipped {
			add("precipitation", r.Reason)
		}
	}
	return counts
}
