// Command extract runs the feed normalizer over a saved document and prints
// the records it would store.
//
//	extract --format csv --stream precipitation raw.json
//	curl -s "$FEED_URL" | extract -
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/weather-feed-etl/internal/domain"
	"github.com/gocarina/gocsv"
	flag "github.com/spf13/pflag"
)

const (
	streamAll           = "all"
	streamObservation   = "observation"
	streamPrecipitation = "precipitation"

	formatJSON = "json"
	formatCSV  = "csv"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	input  string
	stream string
	format string
	skips  bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVarP(&opts.stream, "stream", "s", streamAll, "records to print: all, observation, or precipitation")
	fs.StringVarP(&opts.format, "format", "f", formatJSON, "output format: json or csv")
	fs.BoolVar(&opts.skips, "skips", false, "report skipped station records on stderr")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: extract [flags] FILE|-")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, errors.New("exactly one input file is required")
	}
	opts.input = fs.Arg(0)

	switch opts.stream {
	case streamAll, streamObservation, streamPrecipitation:
	default:
		return opts, fmt.Errorf("unknown stream %q", opts.stream)
	}
	switch opts.format {
	case formatJSON:
	case formatCSV:
		if opts.stream == streamAll {
			return opts, errors.New("csv output needs --stream observation or precipitation")
		}
	default:
		return opts, fmt.Errorf("unknown format %q", opts.format)
	}
	return opts, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "extract:", err)
		return 2
	}

	body, err := readInput(opts.input, stdin)
	if err != nil {
		fmt.Fprintln(stderr, "extract:", err)
		return 1
	}

	doc, err := domain.ParseDocument(domain.RawDocument{Body: body, Source: opts.input})
	if err != nil {
		fmt.Fprintln(stderr, "extract:", err)
		return 1
	}
	batch := domain.NewNormalizer(nil, nil).Normalize(doc)

	if opts.skips {
		reportSkips(stderr, batch)
	}
	if err := write(stdout, opts, batch); err != nil {
		fmt.Fprintln(stderr, "extract:", err)
		return 1
	}
	return 0
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func reportSkips(w io.Writer, batch domain.Batch) {
	fmt.Fprintf(w, "shape=%s stations=%d\n", batch.Shape, batch.Stations)
	for _, r := range batch.Observations {
		if r.Status == domain.StatusSkipped {
			fmt.Fprintf(w, "skipped station %d: %s\n", r.Index, r.Reason)
		}
	}
}

type summary struct {
	Shape         string                       `json:"shape"`
	Stations      int                          `json:"stations"`
	Observations  []domain.ObservationRecord   `json:"observations"`
	Precipitation []domain.PrecipitationRecord `json:"precipitation"`
}

func write(w io.Writer, opts options, batch domain.Batch) error {
	observations := batch.ObservationRecords()
	precipitation := batch.PrecipitationRecords()
	if precipitation == nil {
		precipitation = []domain.PrecipitationRecord{}
	}

	if opts.format == formatCSV {
		if opts.stream == streamObservation {
			return gocsv.Marshal(observationRows(observations), w)
		}
		return gocsv.Marshal(precipitationRows(precipitation), w)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	switch opts.stream {
	case streamObservation:
		return enc.Encode(observations)
	case streamPrecipitation:
		return enc.Encode(precipitation)
	default:
		return enc.Encode(summary{
			Shape:         batch.Shape,
			Stations:      batch.Stations,
			Observations:  observations,
			Precipitation: precipitation,
		})
	}
}

type observationRow struct {
	Location    string   `csv:"location"`
	Date        string   `csv:"date"`
	MinTemp     *float64 `csv:"min_temp"`
	MaxTemp     *float64 `csv:"max_temp"`
	Description *string  `csv:"description"`
}

type precipitationRow struct {
	Location      string   `csv:"location"`
	Date          string   `csv:"date"`
	Period        string   `csv:"period"`
	Precipitation *float64 `csv:"precipitation"`
}

func observationRows(records []domain.ObservationRecord) []observationRow {
	rows := make([]observationRow, len(records))
	for i, r := range records {
		rows[i] = observationRow(r)
	}
	return rows
}

func precipitationRows(records []domain.PrecipitationRecord) []precipitationRow {
	rows := make([]precipitationRow, len(records))
	for i, r := range records {
		rows[i] = precipitationRow(r)
	}
	return rows
}
