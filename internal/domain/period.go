package domain

import "sort"

// PeriodOrder is the display order of rainfall period buckets. It is not used
// to validate extracted periods.
var PeriodOrder = []string{
	"Now",
	"Past10Min",
	"Past1hr",
	"Past3hr",
	"Past6hr",
	"Past12hr",
	"Past24hr",
	"Past2days",
	"Past3days",
}

// periodRank returns the canonical position of a period, or len(PeriodOrder)
// for periods outside the canonical list.
func periodRank(p string) int {
	for i, known := range PeriodOrder {
		if known == p {
			return i
		}
	}
	return len(PeriodOrder)
}

// SortPeriods orders periods canonically in place. Unknown periods follow the
// known ones, alphabetically.
func SortPeriods(periods []string) {
	sort.SliceStable(periods, func(i, j int) bool {
		ri, rj := periodRank(periods[i]), periodRank(periods[j])
		if ri != rj {
			return ri < rj
		}
		if ri == len(PeriodOrder) {
			return periods[i] < periods[j]
		}
		return false
	})
}

// PeriodValue is one point of a period profile.
type PeriodValue struct {
	Period        string   `json:"period"`
	Precipitation *float64 `json:"precipitation"`
}

// PeriodProfile maps the records of one observation time onto PeriodOrder,
// leaving nil where a bucket was not reported. When several records share a
// period the last one wins.
func PeriodProfile(records []PrecipitationRecord) []PeriodValue {
	byPeriod := make(map[string]*float64, len(records))
	for _, r := range records {
		byPeriod[r.Period] = r.Precipitation
	}
	out := make([]PeriodValue, len(PeriodOrder))
	for i, p := range PeriodOrder {
		out[i] = PeriodValue{Period: p, Precipitation: byPeriod[p]}
	}
	return out
}
