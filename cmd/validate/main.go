// Command validate performs integrity checks on an hourly observation
// archive before it is fed to the detector: per-line parseability,
// timestamp ordering, hourly continuity, and value plausibility. Unlike
// the detector's fail-fast loader, validate reads the whole file and
// reports every problem it finds.
//
// Usage:
//
//	go run ./cmd/validate -data testdata/synthetic_hourly.jsonl
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/temp-anomaly-service/internal/domain"
	"github.com/couchcryptid/temp-anomaly-service/internal/feed"
)

// maxGapReport caps how many individual gaps get listed so a sparse
// archive does not flood the report.
const maxGapReport = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataPath := flag.String("data", "", "path to the JSONL observation archive")
	flag.Parse()

	if *dataPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataPath); code != 0 {
		os.Exit(code)
	}
}

func run(dataPath string) int {
	fmt.Println("=== Observation Archive Validation ===")
	fmt.Println()

	f, err := os.Open(dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open archive: %v\n", err)
		return 1
	}
	defer f.Close()

	parsePhase := &phase{name: "Line parseability"}
	observations := scanArchive(f, parsePhase)

	phases := []*phase{
		parsePhase,
		validateOrdering(observations),
		validateContinuity(observations),
		validatePlausibility(observations),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-32s %s\n", p.name, status)
	}

	fmt.Println()
	if len(observations) > 0 {
		first := observations[0].Timestamp
		last := observations[len(observations)-1].Timestamp
		fmt.Printf("Records: %d, spanning %s to %s (%.0f hours)\n",
			len(observations), first.Format(time.RFC3339), last.Format(time.RFC3339),
			last.Sub(first).Hours())
	} else {
		fmt.Println("Records: 0")
		allPassed = false
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// scanArchive parses every line, recording failures in the parse phase
// and keeping whatever observations did parse for the later phases.
func scanArchive(f *os.File, p *phase) []domain.Observation {
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
		obs, err := feed.ParseLine([]byte(line))
		if err != nil {
			p.errorf("line %d: %v", lineNo, err)
			continue
		}
		observations = append(observations, obs)
	}
	if err := scanner.Err(); err != nil {
		p.errorf("read error after line %d: %v", lineNo, err)
	}
	return observations
}

// validateOrdering checks that timestamps never regress and flags
// duplicates, which the replayer would emit with a zero delay.
func validateOrdering(observations []domain.Observation) *phase {
	p := &phase{name: "Timestamp ordering"}
	for i := 1; i < len(observations); i++ {
		prev, cur := observations[i-1].Timestamp, observations[i].Timestamp
		if cur.Before(prev) {
			p.errorf("record %d: timestamp %s regresses before %s",
				i+1, cur.Format(time.RFC3339), prev.Format(time.RFC3339))
		} else if cur.Equal(prev) {
			p.errorf("record %d: duplicate timestamp %s", i+1, cur.Format(time.RFC3339))
		}
	}
	return p
}

// validateContinuity flags gaps larger than one hour. Gaps are legal
// for the detector but skew seasonal fitting, so they are worth knowing
// about up front.
func validateContinuity(observations []domain.Observation) *phase {
	p := &phase{name: "Hourly continuity"}
	gaps := 0
	for i := 1; i < len(observations); i++ {
		delta := observations[i].Timestamp.Sub(observations[i-1].Timestamp)
		if delta <= time.Hour {
			continue
		}
		gaps++
		if gaps <= maxGapReport {
			p.errorf("gap of %s after %s (record %d)",
				delta, observations[i-1].Timestamp.Format(time.RFC3339), i)
		}
	}
	if gaps > maxGapReport {
		p.errorf("... and %d more gaps", gaps-maxGapReport)
	}
	return p
}

// validatePlausibility sanity-checks value ranges: surface temperatures
// outside -90..60C are sensor glitches, not weather.
func validatePlausibility(observations []domain.Observation) *phase {
	p := &phase{name: "Value plausibility"}
	for i, obs := range observations {
		if obs.Temperature < -90 || obs.Temperature > 60 {
			p.errorf("record %d (%s): implausible temperature %.1f",
				i+1, obs.Timestamp.Format(time.RFC3339), obs.Temperature)
		}
		if obs.Humidity != nil && (*obs.Humidity < 0 || *obs.Humidity > 100) {
			p.errorf("record %d (%s): humidity %.1f outside 0..100",
				i+1, obs.Timestamp.Format(time.RFC3339), *obs.Humidity)
		}
	}
	return p
}
