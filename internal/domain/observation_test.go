package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	testStationTaipei = "Taipei"
	testFixedNow      = "2024-04-26T12:30:45.000000"
)

func freezeClock(t *testing.T) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 12, 30, 45, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })
}

func ptr[T any](v T) *T { return &v }

func extractObservation(t *testing.T, raw string) ObservationResult {
	t.Helper()
	return NewObservationExtractor(nil).ExtractOne(0, gjson.Parse(raw))
}

func TestObservation_StationNameOnly(t *testing.T) {
	freezeClock(t)

	res := extractObservation(t, `{"StationName":"Taipei"}`)

	require.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, testStationTaipei, res.Record.Location)
	assert.Equal(t, testFixedNow, res.Record.Date)
	assert.Nil(t, res.Record.MinTemp)
	assert.Nil(t, res.Record.MaxTemp)
	assert.Nil(t, res.Record.Description)
}

func TestObservation_LocationName(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   string
	}{
		{"station name", `{"StationName":"Taipei","locationName":"Other"}`, testStationTaipei},
		{"empty station name falls back", `{"StationName":"","locationName":"Keelung"}`, "Keelung"},
		{"location name", `{"locationName":"Keelung","name":"Other"}`, "Keelung"},
		{"location", `{"location":"Tainan"}`, "Tainan"},
		{"name", `{"name":"Hualien"}`, "Hualien"},
		{"area", `{"area":"Penghu"}`, "Penghu"},
		{"county", `{"county":"Yilan"}`, "Yilan"},
		{"city", `{"city":"Taichung"}`, "Taichung"},
		{"numeric name kept as text", `{"name":466920}`, "466920"},
		{"nothing", `{}`, "Unknown"},
		{"zero name is unknown", `{"name":0}`, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractObservation(t, tt.record)
			assert.Equal(t, tt.want, res.Record.Location)
		})
	}
}

func TestObservation_DatePriority(t *testing.T) {
	freezeClock(t)

	tests := []struct {
		name   string
		record string
		want   string
	}{
		{"time list start time", `{"time":[{"startTime":"T1","dataTime":"T2"}],"ObsTime":{"DateTime":"OBS"}}`, "T1"},
		{"time list data time", `{"time":[{"dataTime":"T2","time":"T3"}]}`, "T2"},
		{"time list time", `{"time":[{"time":"T3"}]}`, "T3"},
		{"obs time after empty time list", `{"time":[],"ObsTime":{"DateTime":"OBS"},"date":"D"}`, "OBS"},
		{"obs time", `{"ObsTime":{"DateTime":"OBS"},"date":"D"}`, "OBS"},
		{"obs time not an object", `{"ObsTime":"OBS","date":"D"}`, "D"},
		{"element time", `{"weatherElement":[{"elementName":"x"},{"time":[{"dataTime":"E"}]}],"date":"D"}`, "E"},
		{"element time start before data", `{"weatherElement":[{"time":[{"dataTime":"E2","startTime":"E1"}]}]}`, "E1"},
		{"flat date", `{"date":"D","forecastDate":"F"}`, "D"},
		{"forecast date", `{"forecastDate":"F","dataTime":"DT"}`, "F"},
		{"data time", `{"dataTime":"DT"}`, "DT"},
		{"numeric date kept as text", `{"date":20240501}`, "20240501"},
		{"fallback to now", `{"name":"x"}`, testFixedNow},
		{"time entry without keys falls through", `{"time":[{"endTime":"X"}],"date":"D"}`, "D"},
		{"time entry not an object", `{"time":["2024"],"date":"D"}`, "D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractObservation(t, tt.record)
			require.NotEqual(t, StatusSkipped, res.Status)
			assert.Equal(t, tt.want, res.Record.Date)
		})
	}
}

func TestObservation_ElementClassification(t *testing.T) {
	res := extractObservation(t, `{"StationName":"Taipei","weatherElement":[
		{"elementName":"MinTemperature","value":"18.2"},
		{"elementName":"Wx","value":"Cloudy"},
		{"elementName":"MaxT","value":"27"}
	]}`)

	require.Equal(t, StatusComplete, res.Status)
	require.NotNil(t, res.Record.MinTemp)
	assert.InEpsilon(t, 18.2, *res.Record.MinTemp, 1e-9)
	require.NotNil(t, res.Record.MaxTemp)
	assert.InEpsilon(t, 27.0, *res.Record.MaxTemp, 1e-9)
	require.NotNil(t, res.Record.Description)
	assert.Equal(t, "Cloudy", *res.Record.Description)
}

func TestObservation_ElementValueSources(t *testing.T) {
	tests := []struct {
		name    string
		element string
		want    *float64
	}{
		{"parameter name", `{"elementName":"MinT","time":[{"parameter":{"parameterName":"20","parameterValue":"99"}}]}`, ptr(20.0)},
		{"parameter value when name empty", `{"elementName":"MinT","time":[{"parameter":{"parameterName":"","parameterValue":"21"}}]}`, ptr(21.0)},
		{"element value object", `{"elementName":"MinT","time":[{"elementValue":{"value":"22"}}]}`, ptr(22.0)},
		{"direct parameter", `{"elementName":"MinT","parameter":"23"}`, ptr(23.0)},
		{"direct value number", `{"elementName":"MinT","value":24.5}`, ptr(24.5)},
		{"direct element value", `{"elementName":"MinT","elementValue":"25"}`, ptr(25.0)},
		{"forecast", `{"elementName":"MinT","forecast":"26"}`, ptr(26.0)},
		{"time entry without value falls back to element", `{"elementName":"MinT","time":[{"startTime":"2024-05-01"}],"value":"27"}`, ptr(27.0)},
		{"timestamp is never a value", `{"elementName":"MinT","time":[{"startTime":"2024-05-01"}]}`, nil},
		{"non-numeric", `{"elementName":"MinT","value":"N/A"}`, nil},
		{"object value", `{"elementName":"MinT","value":{"v":1}}`, nil},
		{"padded numeric string", `{"elementName":"MinT","value":" 17.5 "}`, ptr(17.5)},
		{"NaN is absent", `{"elementName":"MinT","value":"NaN"}`, nil},
		{"zero reading via parameter", `{"elementName":"MinT","time":[{"parameter":{"parameterName":"0"}}]}`, ptr(0.0)},
		{"negative", `{"elementName":"MinT","value":"-3.5"}`, ptr(-3.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractObservation(t, `{"name":"x","weatherElement":[`+tt.element+`]}`)
			require.NotEqual(t, StatusSkipped, res.Status)
			if diff := cmp.Diff(tt.want, res.Record.MinTemp); diff != "" {
				t.Fatalf("min_temp mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestObservation_ElementNameKeys(t *testing.T) {
	tests := []struct {
		name    string
		element string
	}{
		{"elementName", `{"elementName":"TMIN","value":"1"}`},
		{"element", `{"element":"tmin","value":"1"}`},
		{"parameterName", `{"parameterName":"MinT","value":"1"}`},
		{"name", `{"name":"minimum","value":"1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractObservation(t, `{"weatherElement":[`+tt.element+`]}`)
			require.NotNil(t, res.Record.MinTemp)
			assert.InEpsilon(t, 1.0, *res.Record.MinTemp, 1e-9)
		})
	}
}

func TestObservation_UnclassifiedElementsIgnored(t *testing.T) {
	res := extractObservation(t, `{"name":"x","weatherElement":[
		{"elementName":"Temp","value":"30"},
		{"elementName":"PoP","value":"20"},
		{"elementName":"","value":"1"},
		{"value":"2"},
		"not an element",
		42
	]}`)

	require.Equal(t, StatusPartial, res.Status)
	assert.Nil(t, res.Record.MinTemp)
	assert.Nil(t, res.Record.MaxTemp)
	assert.Nil(t, res.Record.Description)
}

func TestObservation_MinRuleBeforeMax(t *testing.T) {
	// "MinMaxSpread" contains both keywords; the min rule is checked first.
	res := extractObservation(t, `{"weatherElement":[{"elementName":"MinMaxSpread","value":"4"}]}`)
	require.NotNil(t, res.Record.MinTemp)
	assert.Nil(t, res.Record.MaxTemp)
}

// Pins the tie-break between elements of the same category: the last element
// scanned wins, even over an earlier element that had a value.
func TestObservation_LastMatchWins(t *testing.T) {
	t.Run("description", func(t *testing.T) {
		res := extractObservation(t, `{"weatherElement":[
			{"elementName":"Wx","value":"Cloudy"},
			{"elementName":"WeatherDescription","value":"Cloudy with showers"}
		]}`)
		require.NotNil(t, res.Record.Description)
		assert.Equal(t, "Cloudy with showers", *res.Record.Description)
	})

	t.Run("temperature", func(t *testing.T) {
		res := extractObservation(t, `{"weatherElement":[
			{"elementName":"MinT","value":"18"},
			{"elementName":"TMIN","value":"17"}
		]}`)
		require.NotNil(t, res.Record.MinTemp)
		assert.InEpsilon(t, 17.0, *res.Record.MinTemp, 1e-9)
	})

	t.Run("later element without value clears the field", func(t *testing.T) {
		res := extractObservation(t, `{"weatherElement":[
			{"elementName":"MaxT","value":"30"},
			{"elementName":"MaxT"}
		]}`)
		assert.Nil(t, res.Record.MaxTemp)
	})
}

func TestObservation_DescriptionFallback(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   *string
	}{
		{"record description", `{"description":"Sunny","weather":"Other"}`, ptr("Sunny")},
		{"record weather", `{"weather":"Fog"}`, ptr("Fog")},
		{"record wx", `{"wx":"Haze"}`, ptr("Haze")},
		{"record parameter name", `{"parameterName":"Drizzle"}`, ptr("Drizzle")},
		{"element wins over record", `{"description":"Sunny","weatherElement":[{"elementName":"Wx","value":"Rain"}]}`, ptr("Rain")},
		{"empty element value uses record", `{"description":"Sunny","weatherElement":[{"elementName":"Wx","value":""}]}`, ptr("Sunny")},
		{"none", `{"name":"x"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extractObservation(t, tt.record)
			if diff := cmp.Diff(tt.want, res.Record.Description); diff != "" {
				t.Fatalf("description mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestObservation_WeatherElementNotAList(t *testing.T) {
	res := extractObservation(t, `{"name":"x","weatherElement":{"elementName":"MinT","value":"1"}}`)
	require.Equal(t, StatusPartial, res.Status)
	assert.Nil(t, res.Record.MinTemp)
}

func TestObservation_SkipsNonObjects(t *testing.T) {
	records := gjson.Parse(`[{"name":"A"},"garbage",7,null,[1],{"name":"B"}]`).Array()

	results := NewObservationExtractor(nil).Extract(records)

	require.Len(t, results, 6)
	statuses := make([]Status, len(results))
	for i, r := range results {
		statuses[i] = r.Status
		assert.Equal(t, i, r.Index)
	}
	assert.Equal(t, []Status{StatusPartial, StatusSkipped, StatusSkipped, StatusSkipped, StatusSkipped, StatusPartial}, statuses)
	assert.Equal(t, ReasonNotObject, results[1].Reason)
	assert.Equal(t, "A", results[0].Record.Location)
	assert.Equal(t, "B", results[5].Record.Location)
}

func TestObservation_CustomClassifier(t *testing.T) {
	c := DefaultClassifier().With(CategoryDescription, "condition")
	res := NewObservationExtractor(c).ExtractOne(0, gjson.Parse(`{"weatherElement":[{"elementName":"Condition","value":"Clear"}]}`))
	require.NotNil(t, res.Record.Description)
	assert.Equal(t, "Clear", *res.Record.Description)

	res = NewObservationExtractor(nil).ExtractOne(0, gjson.Parse(`{"weatherElement":[{"elementName":"Condition","value":"Clear"}]}`))
	assert.Nil(t, res.Record.Description)
}

func TestObservation_Fixtures(t *testing.T) {
	freezeClock(t)

	tests := []struct {
		fixture string
		want    []ObservationRecord
		status  []Status
	}{
		{
			fixture: "station_wrapper.json",
			want: []ObservationRecord{
				{Location: testStationTaipei, Date: "2024-05-01T08:00:00+08:00"},
				{Location: "Keelung", Date: "2024-05-01T08:00:00+08:00"},
			},
			status: []Status{StatusPartial, StatusPartial},
		},
		{
			fixture: "records_forecast.json",
			want: []ObservationRecord{
				{Location: "Taipei City", Date: "2024-05-01 06:00:00", MinTemp: ptr(22.0), MaxTemp: ptr(29.0), Description: ptr("Cloudy")},
				{Location: "New Taipei City", Date: "2024-05-01 06:00:00", MinTemp: ptr(21.5), MaxTemp: ptr(28.0), Description: ptr("Partly Cloudy")},
			},
			status: []Status{StatusComplete, StatusComplete},
		},
		{
			fixture: "geojson.json",
			want: []ObservationRecord{
				{Location: "Hualien", Date: "2024-05-01", MinTemp: ptr(19.5), MaxTemp: ptr(27.0), Description: ptr("Rain")},
				{Location: "Unknown", Date: testFixedNow},
			},
			status: []Status{StatusComplete, StatusPartial},
		},
		{
			fixture: "bare_list.json",
			want: []ObservationRecord{
				{Location: "Tainan", Date: "2024-05-01T12:00:00", MinTemp: ptr(18.2), MaxTemp: ptr(31.4), Description: ptr("Sunny")},
				{Location: "Penghu", Date: "2024-05-02T00:00:00", Description: ptr("Windy")},
			},
			status: []Status{StatusComplete, StatusSkipped, StatusPartial},
		},
	}

	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			records := Locate(loadFixture(t, tt.fixture))
			results := NewObservationExtractor(nil).Extract(records)

			statuses := make([]Status, 0, len(results))
			for _, r := range results {
				statuses = append(statuses, r.Status)
			}
			assert.Equal(t, tt.status, statuses)

			got := Batch{Observations: results}.ObservationRecords()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
