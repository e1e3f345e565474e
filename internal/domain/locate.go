package domain

import (
	"github.com/tidwall/gjson"
)

// ShapeMatcher recognizes one provider document layout and returns the list of
// station records inside it. ok is false when the document does not have this
// shape or the list it points at is empty.
type ShapeMatcher interface {
	Name() string
	Match(doc gjson.Result) (records []gjson.Result, ok bool)
}

// MatcherFunc adapts a plain function to a ShapeMatcher.
type MatcherFunc struct {
	ShapeName string
	Fn        func(doc gjson.Result) ([]gjson.Result, bool)
}

func (m MatcherFunc) Name() string { return m.ShapeName }

func (m MatcherFunc) Match(doc gjson.Result) ([]gjson.Result, bool) { return m.Fn(doc) }

// Shape names reported by the default matchers.
const (
	ShapeStationWrapper = "station_wrapper"
	ShapeRecords        = "records"
	ShapeLocationList   = "location_list"
	ShapeGeoJSON        = "geojson"
	ShapeBareList       = "bare_list"
	ShapeSingleObject   = "single_object"
	ShapeNone           = "none"
)

// Locator runs shape matchers in priority order; the first match wins.
type Locator struct {
	matchers []ShapeMatcher
}

// NewLocator creates a Locator over the given matchers, tried in order.
func NewLocator(matchers ...ShapeMatcher) *Locator {
	return &Locator{matchers: matchers}
}

// DefaultLocator returns a Locator with the known provider shapes. Wrapper
// formats come before the generic object heuristics so a document that has
// both a wrapper and a stray top-level "location" list resolves to the wrapper.
func DefaultLocator() *Locator {
	return NewLocator(
		MatcherFunc{ShapeStationWrapper, matchStationWrapper},
		MatcherFunc{ShapeRecords, matchRecords},
		MatcherFunc{ShapeLocationList, matchLocationList},
		MatcherFunc{ShapeGeoJSON, matchGeoJSON},
		MatcherFunc{ShapeBareList, matchBareList},
		MatcherFunc{ShapeSingleObject, matchSingleObject},
	)
}

// Locate returns the station records of doc and the name of the shape that
// produced them. Unknown shapes yield ShapeNone and no records.
func (l *Locator) Locate(doc gjson.Result) (string, []gjson.Result) {
	for _, m := range l.matchers {
		if records, ok := m.Match(doc); ok {
			return m.Name(), records
		}
	}
	return ShapeNone, nil
}

// Locate finds station records in doc using the default shapes.
func Locate(doc gjson.Result) []gjson.Result {
	_, records := DefaultLocator().Locate(doc)
	return records
}

func matchStationWrapper(doc gjson.Result) ([]gjson.Result, bool) {
	return nonEmptyList(field(field(field(doc, "cwaopendata"), "dataset"), "Station"))
}

func matchRecords(doc gjson.Result) ([]gjson.Result, bool) {
	rec := field(doc, "records")
	if rec.IsObject() {
		return nonEmptyList(field(rec, "location"))
	}
	return nonEmptyList(rec)
}

func matchLocationList(doc gjson.Result) ([]gjson.Result, bool) {
	if records, ok := nonEmptyList(field(doc, "location")); ok {
		return records, true
	}
	return nonEmptyList(field(doc, "locations"))
}

// matchGeoJSON maps each feature to its properties object. Features without
// properties still count as (empty) station records.
func matchGeoJSON(doc gjson.Result) ([]gjson.Result, bool) {
	features, ok := nonEmptyList(field(doc, "features"))
	if !ok {
		return nil, false
	}
	out := make([]gjson.Result, 0, len(features))
	for _, f := range features {
		props := field(f, "properties")
		if !props.Exists() || props.Type == gjson.Null {
			props = gjson.Parse("{}")
		}
		out = append(out, props)
	}
	return out, true
}

func matchBareList(doc gjson.Result) ([]gjson.Result, bool) {
	return nonEmptyList(doc)
}

func matchSingleObject(doc gjson.Result) ([]gjson.Result, bool) {
	if !doc.IsObject() {
		return nil, false
	}
	return []gjson.Result{doc}, true
}

func nonEmptyList(v gjson.Result) ([]gjson.Result, bool) {
	if !v.IsArray() {
		return nil, false
	}
	items := v.Array()
	if len(items) == 0 {
		return nil, false
	}
	return items, true
}
