// Command genseries generates a synthetic hourly temperature archive for
// fixtures and testing. The series combines daily, weekly, and yearly
// components with Gaussian noise, and can inject outliers at chosen
// indices to exercise the anomaly classifier. The output is verified by
// loading it back through the actual feed package so fixtures always
// match real loader behavior.
//
// Usage:
//
//	go run ./cmd/genseries \
//	  -out testdata/synthetic_hourly.jsonl \
//	  -hours 2160 -outliers 150,1800 -outlier-delta 30
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/temp-anomaly-service/internal/feed"
)

type record struct {
	Timestamp   string  `json:"timestamp"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output JSONL path")
	hours := flag.Int("hours", 2160, "number of hourly observations to generate")
	start := flag.String("start", "2024-01-01T00:00:00Z", "first observation timestamp (RFC3339)")
	outliers := flag.String("outliers", "", "comma-separated indices to replace with outliers")
	outlierDelta := flag.Float64("outlier-delta", 30, "temperature offset applied at outlier indices")
	seed := flag.Int64("seed", 42, "random seed for reproducible noise")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	startTime, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	outlierSet, err := parseIndices(*outliers)
	if err != nil {
		return fmt.Errorf("parse -outliers: %w", err)
	}

	rng := rand.New(rand.NewSource(*seed))

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := 0; i < *hours; i++ {
		ts := startTime.Add(time.Duration(i) * time.Hour)
		temp := syntheticTemperature(float64(i), rng)
		if outlierSet[i] {
			temp += *outlierDelta
		}
		rec := record{
			Timestamp:   ts.UTC().Format("2006-01-02 15:04:05"),
			Temperature: round1(temp),
			Humidity:    round1(55 + 20*rng.Float64()),
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *out, err)
	}

	// Round-trip through the real loader to catch format drift.
	observations, err := feed.Load(*out)
	if err != nil {
		return fmt.Errorf("verify generated archive: %w", err)
	}

	fmt.Printf("wrote %d observations to %s (%d outliers)\n", len(observations), *out, len(outlierSet))
	return nil
}

// syntheticTemperature follows the same shape the system's test data
// uses: a 15C base with daily, weekly, and yearly cycles plus noise.
func syntheticTemperature(hour float64, rng *rand.Rand) float64 {
	daily := 5 * math.Sin(2*math.Pi*hour/24)
	weekly := 2 * math.Sin(2*math.Pi*hour/168)
	yearly := 10 * math.Sin(2*math.Pi*hour/8766)
	noise := rng.NormFloat64() * 0.5
	return 15 + daily + weekly + yearly + noise
}

func parseIndices(s string) (map[int]bool, error) {
	set := make(map[int]bool)
	if s == "" {
		return set, nil
	}
	for _, part := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || i < 0 {
			return nil, fmt.Errorf("invalid index %q", part)
		}
		set[i] = true
	}
	return set, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
