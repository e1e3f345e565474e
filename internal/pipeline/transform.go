package pipeline

import (
	"context"

	"github.com/couchcryptid/weather-feed-etl/internal/domain"
)

// FeedTransformer implements Transformer with the domain normalizer.
type FeedTransformer struct {
	normalizer *domain.Normalizer
}

// NewTransformer creates a FeedTransformer. A nil normalizer uses the default
// shapes and element vocabulary.
func NewTransformer(n *domain.Normalizer) *FeedTransformer {
	if n == nil {
		n = domain.NewNormalizer(nil, nil)
	}
	return &FeedTransformer{normalizer: n}
}

// Transform validates the raw body and normalizes it. Only a body that is not
// JSON at all is an error; unrecognized shapes give an empty batch.
func (t *FeedTransformer) Transform(_ context.Context, raw domain.RawDocument) (domain.Batch, error) {
	doc, err := domain.ParseDocument(raw)
	if err != nil {
		return domain.Batch{}, err
	}
	return t.normalizer.Normalize(doc), nil
}
