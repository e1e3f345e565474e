package domain

import "strings"

// Category is the record field a weather element feeds.
type Category string

const (
	CategoryMinTemp     Category = "min_temp"
	CategoryMaxTemp     Category = "max_temp"
	CategoryDescription Category = "description"
)

// ClassifierRule maps an element to Category when its lowercased name contains
// any of Keywords.
type ClassifierRule struct {
	Category Category
	Keywords []string
}

// Classifier is an ordered keyword table. Rules are tried in order and the
// first rule with a matching keyword decides the category, so "mintemperature"
// is a minimum even though it would also contain a later rule's keyword.
type Classifier []ClassifierRule

// DefaultClassifier returns the provider vocabulary for CWA element names.
// Names matching no rule (including plain "temp") are ignored.
func DefaultClassifier() Classifier {
	return Classifier{
		{Category: CategoryMinTemp, Keywords: []string{"mint", "min", "tmin"}},
		{Category: CategoryMaxTemp, Keywords: []string{"maxt", "max", "tmax"}},
		{Category: CategoryDescription, Keywords: []string{"wx", "weather", "description", "wxvalue", "wx_desc"}},
	}
}

// With returns a copy of c with extra keywords appended to category. A
// category not yet in the table is added as the last rule.
func (c Classifier) With(category Category, keywords ...string) Classifier {
	out := make(Classifier, 0, len(c)+1)
	found := false
	for _, r := range c {
		kw := append([]string(nil), r.Keywords...)
		if r.Category == category {
			kw = append(kw, keywords...)
			found = true
		}
		out = append(out, ClassifierRule{Category: r.Category, Keywords: kw})
	}
	if !found {
		out = append(out, ClassifierRule{Category: category, Keywords: append([]string(nil), keywords...)})
	}
	return out
}

// Classify returns the category for an element name, or false if none applies.
func (c Classifier) Classify(name string) (Category, bool) {
	lname := strings.ToLower(name)
	if lname == "" {
		return "", false
	}
	for _, r := range c {
		for _, kw := range r.Keywords {
			if kw != "" && strings.Contains(lname, strings.ToLower(kw)) {
				return r.Category, true
			}
		}
	}
	return "", false
}
