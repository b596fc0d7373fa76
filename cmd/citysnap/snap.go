package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/poku-e/invisible-city/internal/city"
	"github.com/poku-e/invisible-city/internal/export"
)

var (
	leftRe  = regexp.MustCompile(`(?i)left:\s*(-?\d+)px`)
	topRe   = regexp.MustCompile(`(?i)top:\s*(-?\d+)px`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// ---------- HTTP with retry ----------
func newClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("User-Agent", "citysnap/1.0").
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
		})
}

// fetchAPI reads the JSON building list.
func fetchAPI(ctx context.Context, c *resty.Client) ([]city.Record, error) {
	var out []city.Record
	resp, err := c.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&out).
		Get("/api/buildings")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode(), truncate(resp.String(), 4096))
	}
	return out, nil
}

// fetchPage downloads the rendered city page and scrapes it.
func fetchPage(ctx context.Context, c *resty.Client) ([]city.Record, error) {
	resp, err := c.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8").
		Get("/")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode(), truncate(resp.String(), 4096))
	}
	return parsePage(resp.Body())
}

// ---------- Parsing ----------

// parsePage reads every .building element of a rendered city page. The
// page carries no description or timestamp, so those stay empty.
func parsePage(html []byte) ([]city.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	grid := doc.Find("#city-grid").First()
	if grid.Length() == 0 {
		return nil, errors.New("city grid not found; is this an invisible-city page?")
	}

	var (
		out      []city.Record
		parseErr error
	)
	grid.Find(".building").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		rec, err := parseBuilding(sel)
		if err != nil {
			parseErr = fmt.Errorf("building #%d: %w", i, err)
			return false
		}
		out = append(out, rec)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}

func parseBuilding(sel *goquery.Selection) (city.Record, error) {
	rawID, _ := sel.Attr("data-id")
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return city.Record{}, fmt.Errorf("bad data-id %q", rawID)
	}
	typ, _ := sel.Attr("data-type")
	style, _ := sel.Attr("style")

	rec := city.Record{
		ID:   id,
		Type: typ,
		Icon: textCondense(sel.Find(".building-icon").First().Text()),
	}
	if rec.X, err = styleOffset(leftRe, style); err != nil {
		return city.Record{}, fmt.Errorf("left: %w", err)
	}
	if rec.Y, err = styleOffset(topRe, style); err != nil {
		return city.Record{}, fmt.Errorf("top: %w", err)
	}
	return rec, nil
}

func styleOffset(re *regexp.Regexp, style string) (int, error) {
	m := re.FindStringSubmatch(style)
	if len(m) != 2 {
		return 0, fmt.Errorf("not found in style %q", style)
	}
	return strconv.Atoi(m[1])
}

func textCondense(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ---------- Output writers ----------

func toBuildings(recs []city.Record) ([]city.Building, error) {
	out := make([]city.Building, 0, len(recs))
	for _, r := range recs {
		b, err := r.Building()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func writeFile(path string, bs []city.Building) error {
	var write func(*os.File) error
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".csv"):
		write = func(f *os.File) error { return export.WriteCSV(f, bs) }
	case strings.HasSuffix(strings.ToLower(path), ".xlsx"):
		write = func(f *os.File) error { return export.WriteXLSX(f, bs) }
	default:
		return errors.New("out must end with .csv or .xlsx")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
