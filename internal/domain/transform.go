package domain

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrInvalidDocument is returned when a fetched body is not JSON at all.
var ErrInvalidDocument = errors.New("document is not valid JSON")

// ParseDocument validates a raw body and returns its root value.
// Any JSON value is accepted, including scalars.
func ParseDocument(raw RawDocument) (gjson.Result, error) {
	if !gjson.ValidBytes(raw.Body) {
		return gjson.Result{}, fmt.Errorf("parse document %q: %w", raw.Source, ErrInvalidDocument)
	}
	return gjson.ParseBytes(raw.Body), nil
}

// Normalizer locates station records once per document and feeds them to both
// extractors.
type Normalizer struct {
	locator       *Locator
	observations  *ObservationExtractor
	precipitation *PrecipitationExtractor
}

// NewNormalizer wires a locator and an element classifier. Nil arguments
// select the defaults.
func NewNormalizer(locator *Locator, classifier Classifier) *Normalizer {
	if locator == nil {
		locator = DefaultLocator()
	}
	return &Normalizer{
		locator:       locator,
		observations:  NewObservationExtractor(classifier),
		precipitation: NewPrecipitationExtractor(),
	}
}

// Normalize extracts both record streams from doc. It never fails: unknown
// shapes produce an empty batch and bad station records are reported as
// skipped results.
func (n *Normalizer) Normalize(doc gjson.Result) Batch {
	shape, records := n.locator.Locate(doc)
	return Batch{
		Shape:         shape,
		Stations:      len(records),
		Observations:  n.observations.Extract(records),
		Precipitation: n.precipitation.Extract(records),
	}
}
