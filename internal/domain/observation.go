package domain

import (
	"github.com/tidwall/gjson"
)

var (
	elementNameKeys     = []string{"elementName", "element", "parameterName", "name"}
	elementValueKeys    = []string{"parameter", "value", "elementValue", "forecast", "parameterName"}
	recordDescriptionKs = []string{"description", "weather", "wx", "parameterName"}
)

// ObservationExtractor turns station records into observation records.
type ObservationExtractor struct {
	classifier Classifier
}

// NewObservationExtractor creates an extractor using the given element keyword
// table. A nil table falls back to DefaultClassifier.
func NewObservationExtractor(c Classifier) *ObservationExtractor {
	if c == nil {
		c = DefaultClassifier()
	}
	return &ObservationExtractor{classifier: c}
}

// Extract processes every record independently. A record that fails is
// reported as skipped; it never stops the others.
func (e *ObservationExtractor) Extract(records []gjson.Result) []ObservationResult {
	out := make([]ObservationResult, 0, len(records))
	for i, rec := range records {
		out = append(out, e.ExtractOne(i, rec))
	}
	return out
}

// ExtractOne processes the station record at position index.
func (e *ObservationExtractor) ExtractOne(index int, rec gjson.Result) ObservationResult {
	record, status, err := e.extract(rec)
	if err != nil {
		return ObservationResult{Index: index, Status: StatusSkipped, Reason: skipReason(err)}
	}
	return ObservationResult{Index: index, Status: status, Record: record}
}

func (e *ObservationExtractor) extract(rec gjson.Result) (record ObservationRecord, status Status, err error) {
	defer guard(&err)

	if !rec.IsObject() {
		return ObservationRecord{}, StatusSkipped, ErrNotObject
	}

	location := stationName(rec)
	date := stationDate(rec, observationDateSources)

	var minTemp, maxTemp, description gjson.Result
	elements := field(rec, "weatherElement")
	if !elements.IsArray() {
		elements = gjson.Result{}
	}
	elements.ForEach(func(_, el gjson.Result) bool {
		if !el.IsObject() {
			return true
		}
		name, _ := Resolve(el, elementNameKeys...)
		category, ok := e.classifier.Classify(textValue(name))
		if !ok {
			return true
		}
		// Last matching element wins within a category, including one that
		// carries no value.
		val := elementValue(el)
		switch category {
		case CategoryMinTemp:
			minTemp = val
		case CategoryMaxTemp:
			maxTemp = val
		case CategoryDescription:
			description = val
		}
		return true
	})

	if !truthy(description) {
		if v, ok := resolveTruthy(rec, recordDescriptionKs...); ok {
			description = v
		}
	}

	record, status = emitObservation(location, date, minTemp, maxTemp, description)
	return record, status, nil
}

// elementValue finds an element's reading: time[0].parameter (name, then
// value), time[0].elementValue.value, or a direct value key on the element.
func elementValue(el gjson.Result) gjson.Result {
	if t0, ok := firstElement(field(el, "time")); ok && t0.IsObject() {
		var v gjson.Result
		if param := field(t0, "parameter"); param.IsObject() {
			v = field(param, "parameterName")
			if !truthy(v) {
				v = field(param, "parameterValue")
			}
		} else if ev := field(t0, "elementValue"); ev.IsObject() {
			v = field(ev, "value")
		}
		if v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	v, _ := resolveTruthy(el, elementValueKeys...)
	return v
}
