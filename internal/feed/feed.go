// Package feed loads the hourly observation archive and replays it as a
// live stream at a configurable pace.
package feed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/temp-anomaly-service/internal/domain"
)

// archiveRecord is the raw JSONL line shape. The exporter emits split
// date/time fields; newer archives carry a combined timestamp.
type archiveRecord struct {
	Timestamp   string   `json:"timestamp"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Temperature *float64 `json:"temperature"`

	Humidity          *float64 `json:"humidity"`
	PrecipProbability *float64 `json:"precip_probability"`
	IsRain            *int     `json:"is_rain"`
	IsSnow            *int     `json:"is_snow"`
}

// timestampLayouts are tried in order when parsing record timestamps.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04",
}

// Load reads the full observation sequence from a JSONL archive.
// Malformed records, bad timestamps, and out-of-order lines fail the
// load with line-level diagnostics wrapping domain.ErrLoad.
func Load(path string) ([]domain.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrLoad, path, err)
	}
	defer f.Close()

	var observations []domain.Observation

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		obs, err := ParseLine([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrLoad, path, lineNo, err)
		}
		if n := len(observations); n > 0 && obs.Timestamp.Before(observations[n-1].Timestamp) {
			return nil, fmt.Errorf("%w: %s line %d: timestamp %s regresses before %s",
				domain.ErrLoad, path, lineNo, obs.Timestamp, observations[n-1].Timestamp)
		}
		observations = append(observations, obs)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrLoad, path, err)
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: %s contains no observations", domain.ErrLoad, path)
	}

	return observations, nil
}

// ParseLine parses one archive line into an observation. Exposed for
// the validate command, which needs per-line diagnostics rather than
// the fail-fast behavior of Load.
func ParseLine(line []byte) (domain.Observation, error) {
	var rec archiveRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return domain.Observation{}, fmt.Errorf("invalid JSON: %v", err)
	}
	if rec.Temperature == nil {
		return domain.Observation{}, fmt.Errorf("missing temperature field")
	}

	ts, err := parseTimestamp(rec)
	if err != nil {
		return domain.Observation{}, err
	}

	return domain.Observation{
		Timestamp:         ts,
		Temperature:       *rec.Temperature,
		Humidity:          rec.Humidity,
		PrecipProbability: rec.PrecipProbability,
		IsRain:            rec.IsRain,
		IsSnow:            rec.IsSnow,
	}, nil
}

func parseTimestamp(rec archiveRecord) (time.Time, error) {
	raw := rec.Timestamp
	if raw == "" {
		if rec.Date == "" || rec.Time == "" {
			return time.Time{}, fmt.Errorf("missing timestamp (or date/time pair)")
		}
		raw = rec.Date + " " + rec.Time
	}

	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
