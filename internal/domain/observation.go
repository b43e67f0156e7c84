package domain

import "time"

// Observation is one timestamped temperature reading from the archive.
// Immutable once read; the feed guarantees monotonic non-decreasing
// timestamps.
type Observation struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`

	// Optional covariates carried through from the archive.
	Humidity          *float64 `json:"humidity,omitempty"`
	PrecipProbability *float64 `json:"precip_probability,omitempty"`
	IsRain            *int     `json:"is_rain,omitempty"`
	IsSnow            *int     `json:"is_snow,omitempty"`
}

// Forecast is a model's point estimate plus confidence band for a
// single timestamp. Lower <= Upper for any well-formed forecast.
type Forecast struct {
	Point float64 `json:"point"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns the size of the confidence band.
func (f Forecast) Width() float64 {
	return f.Upper - f.Lower
}

// Contains reports whether v falls inside the band, boundaries inclusive.
func (f Forecast) Contains(v float64) bool {
	return v >= f.Lower && v <= f.Upper
}

// Anomaly is an observation that fell outside its forecast confidence
// band. Derived once per observation, never mutated.
type Anomaly struct {
	Timestamp time.Time `json:"timestamp"`
	Observed  float64   `json:"observed"`
	Forecast  Forecast  `json:"forecast"`

	// Deviation is the distance outside the band divided by the band
	// width (>= 0 for every anomaly).
	Deviation float64  `json:"deviation"`
	Severity  Severity `json:"severity"`

	// Direction is "above" when the observation exceeded the upper
	// bound, "below" when it undercut the lower bound.
	Direction string `json:"direction,omitempty"`
}

// ModelUpdate describes a successful retrain.
type ModelUpdate struct {
	TrainedAt   time.Time
	HistorySize int
	Phase       Phase
}
