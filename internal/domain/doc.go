// Package domain normalizes Central Weather Administration (CWA) open-data
// JSON feeds into flat observation and precipitation records.
//
// # Data Source
//
// Documents come from the CWA open-data file API (e.g. dataset O-A0002-001,
// automatic rain gauge observations). The provider has shipped several JSON
// layouts for the same data over the years and the fetcher is never told which
// one it received, so everything in this package works on untyped
// gjson.Result values rather than fixed structs.
//
// # Known Document Shapes
//
// Legacy wrapper (station format):
//
//	{"cwaopendata": {"dataset": {"Station": [ {...}, ... ]}}}
//
// Records envelope (forecast format):
//
//	{"records": {"location": [ {...}, ... ]}}   or   {"records": [ ... ]}
//
// Bare location list:
//
//	{"location": [ ... ]}   or   {"locations": [ ... ]}
//
// GeoJSON:
//
//	{"features": [ {"properties": {...}}, ... ]}
//
// A top-level array is used as-is, and any other object is treated as a single
// station record. See [Locator] for the matching order.
//
// # Station Record Conventions
//
// Station name:
//
//	"StationName" in station format, otherwise one of locationName, location,
//	name, area, county, city. Missing names become "Unknown".
//
// Timestamp:
//
//	time[0].startTime (forecast), ObsTime.DateTime (station), the first
//	weatherElement[].time[0].startTime, or a flat date key. Values are passed
//	through verbatim; no timezone normalization is done.
//
// Weather elements:
//
//	weatherElement is a list of {elementName, time: [{parameter: {...}}]} or
//	{elementName, elementValue: ...} entries. Elements are classified by
//	keyword on their lowercased name (see [DefaultClassifier]).
//
// Rainfall:
//
//	RainfallElement maps a period bucket to {"Precipitation": value}, e.g.
//	{"Now": {"Precipitation": 0.0}, "Past24hr": {"Precipitation": 3.5}}.
//	Period keys are kept verbatim and in source order.
//
// # Failure Model
//
// Extraction never fails for malformed input. A station record that cannot be
// processed becomes a skipped [ObservationResult] or [PrecipitationResult]
// carrying a reason; a value that cannot be coerced to a number becomes nil.
package domain
