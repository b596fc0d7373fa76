// citysnap saves the buildings of a running invisible-city server to a
// spreadsheet.
//
// Usage examples:
//
//	go run ./cmd/citysnap --url http://localhost:5000 --out city.csv
//	go run ./cmd/citysnap --url http://localhost:5000 --out city.xlsx
//	go run ./cmd/citysnap --url http://localhost:5000 --out city.csv --source page
//
// The api source reads /api/buildings. The page source scrapes the
// rendered grid instead and has no descriptions or timestamps.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/poku-e/invisible-city/internal/city"
)

// ---------- Main ----------
func main() {
	var (
		baseURL string
		outPath string
		source  string
		timeout time.Duration
	)
	flag.StringVar(&baseURL, "url", "", "Base URL of the city server (required)")
	flag.StringVar(&outPath, "out", "", "Output file path (.csv or .xlsx) (required)")
	flag.StringVar(&source, "source", "api", "Where to read buildings from: api or page")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "Overall deadline")
	flag.Parse()

	if baseURL == "" || outPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := snapshot(ctx, baseURL, source, outPath)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("OK: %d buildings -> %s\n", n, outPath)
}

func snapshot(ctx context.Context, baseURL, source, outPath string) (int, error) {
	c := newClient(baseURL, 25*time.Second)

	var (
		recs []city.Record
		err  error
	)
	switch source {
	case "api":
		recs, err = fetchAPI(ctx, c)
	case "page":
		recs, err = fetchPage(ctx, c)
	default:
		return 0, fmt.Errorf("unknown source %q (want api or page)", source)
	}
	if err != nil {
		return 0, err
	}
	bs, err := toBuildings(recs)
	if err != nil {
		return 0, err
	}
	if err := writeFile(outPath, bs); err != nil {
		return 0, err
	}
	return len(bs), nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
