// Package forecast provides the default seasonal forecaster: a harmonic
// regression with daily, weekly, and yearly Fourier terms plus a linear
// trend, fit by least squares. Any seasonal regression can replace it;
// the engine depends only on its fit/predict contract.
package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/temp-anomaly-service/internal/domain"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Hours per seasonal period. The yearly period uses the mean Gregorian
// year so leap years do not drift the phase.
const (
	dailyPeriodHours  = 24.0
	weeklyPeriodHours = 168.0
	yearlyPeriodHours = 8766.0
)

// Config tunes the harmonic regression.
type Config struct {
	DailyHarmonics  int // Fourier pairs for the 24h cycle
	WeeklyHarmonics int // Fourier pairs for the 168h cycle
	YearlyHarmonics int // Fourier pairs for the yearly cycle

	// ConfidenceZ is the half-width of the confidence band in residual
	// standard deviations (1.96 ~ 95%).
	ConfidenceZ float64
}

// DefaultConfig mirrors the seasonality the original Prophet setup used:
// daily, weekly, and yearly components with a 95% interval.
func DefaultConfig() Config {
	return Config{
		DailyHarmonics:  3,
		WeeklyHarmonics: 2,
		YearlyHarmonics: 1,
		ConfidenceZ:     1.96,
	}
}

// Seasonal fits harmonic-regression models over observation history.
type Seasonal struct {
	cfg Config
}

// NewSeasonal creates a forecaster with the given configuration.
// Zero-value harmonic counts fall back to the defaults.
func NewSeasonal(cfg Config) *Seasonal {
	def := DefaultConfig()
	if cfg.DailyHarmonics <= 0 {
		cfg.DailyHarmonics = def.DailyHarmonics
	}
	if cfg.WeeklyHarmonics <= 0 {
		cfg.WeeklyHarmonics = def.WeeklyHarmonics
	}
	if cfg.YearlyHarmonics <= 0 {
		cfg.YearlyHarmonics = def.YearlyHarmonics
	}
	if cfg.ConfidenceZ <= 0 {
		cfg.ConfidenceZ = def.ConfidenceZ
	}
	return &Seasonal{cfg: cfg}
}

// Model is a trained harmonic regression bound to its training cut-off.
// Immutable once produced; safe for concurrent Predict calls.
type Model struct {
	Coefficients []float64 `json:"coefficients"`
	ResidualStd  float64   `json:"residual_std"`
	TrainStart   time.Time `json:"train_start"`
	TrainEnd     time.Time `json:"train_end"`
	HistorySize  int       `json:"history_size"`
	Z            float64   `json:"z"`

	DailyHarmonics  int `json:"daily_harmonics"`
	WeeklyHarmonics int `json:"weekly_harmonics"`
	YearlyHarmonics int `json:"yearly_harmonics"`
}

// Fit performs a full batch least-squares fit over the entire history.
// Returns domain.ErrFit when the history is too short or has no
// variance to regress against.
func (s *Seasonal) Fit(history []domain.Observation) (*Model, error) {
	n := len(history)
	p := s.featureCount()
	if n < p+2 {
		return nil, fmt.Errorf("%w: %d observations, need at least %d", domain.ErrFit, n, p+2)
	}

	ys := make([]float64, n)
	for i, obs := range history {
		ys[i] = obs.Temperature
	}
	if stat.StdDev(ys, nil) < 1e-9 {
		return nil, fmt.Errorf("%w: insufficient variance in training data", domain.ErrFit)
	}

	trainStart := history[0].Timestamp
	trainEnd := history[n-1].Timestamp

	X := mat.NewDense(n, p, nil)
	for i, obs := range history {
		h := obs.Timestamp.Sub(trainStart).Hours()
		X.SetRow(i, s.features(h))
	}
	y := mat.NewVecDense(n, ys)

	var qr mat.QR
	qr.Factorize(X)

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, y); err != nil {
		// Short windows make the yearly harmonic nearly collinear with
		// the trend term; gonum flags that as a soft Condition error
		// while still returning a usable least-squares solution.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: least squares solve: %v", domain.ErrFit, err)
		}
	}

	// Residual standard deviation with degrees-of-freedom correction.
	var fitted mat.VecDense
	fitted.MulVec(X, &beta)
	var sse float64
	for i := 0; i < n; i++ {
		r := ys[i] - fitted.AtVec(i)
		sse += r * r
	}
	residualStd := math.Sqrt(sse / float64(n-p))

	coeffs := make([]float64, p)
	copy(coeffs, beta.RawVector().Data)

	return &Model{
		Coefficients: coeffs,
		ResidualStd:  residualStd,
		TrainStart:   trainStart,
		TrainEnd:     trainEnd,
		HistorySize:  n,
		Z:            s.cfg.ConfidenceZ,

		DailyHarmonics:  s.cfg.DailyHarmonics,
		WeeklyHarmonics: s.cfg.WeeklyHarmonics,
		YearlyHarmonics: s.cfg.YearlyHarmonics,
	}, nil
}

// Predict returns the point estimate and confidence band for ts.
// Timestamps before the training range are unscoreable and return
// domain.ErrPrediction.
func (m *Model) Predict(ts time.Time) (domain.Forecast, error) {
	if len(m.Coefficients) == 0 {
		return domain.Forecast{}, fmt.Errorf("%w: model has no coefficients", domain.ErrPrediction)
	}
	if ts.Before(m.TrainStart) {
		return domain.Forecast{}, fmt.Errorf("%w: %s precedes training range start %s",
			domain.ErrPrediction, ts.Format(time.RFC3339), m.TrainStart.Format(time.RFC3339))
	}

	h := ts.Sub(m.TrainStart).Hours()
	row := featuresFor(h, m.DailyHarmonics, m.WeeklyHarmonics, m.YearlyHarmonics)
	if len(row) != len(m.Coefficients) {
		return domain.Forecast{}, fmt.Errorf("%w: feature/coefficient mismatch", domain.ErrPrediction)
	}

	var point float64
	for i, f := range row {
		point += f * m.Coefficients[i]
	}

	half := m.Z * m.ResidualStd
	return domain.Forecast{
		Point: point,
		Lower: point - half,
		Upper: point + half,
	}, nil
}

// Encode serializes the model for snapshot persistence.
func (m *Model) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeModel deserializes a snapshot payload produced by Encode.
func DecodeModel(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &m, nil
}

func (s *Seasonal) featureCount() int {
	return 2 + 2*(s.cfg.DailyHarmonics+s.cfg.WeeklyHarmonics+s.cfg.YearlyHarmonics)
}

func (s *Seasonal) features(h float64) []float64 {
	return featuresFor(h, s.cfg.DailyHarmonics, s.cfg.WeeklyHarmonics, s.cfg.YearlyHarmonics)
}

// featuresFor builds one design-matrix row for an offset of h hours
// since training start: intercept, trend, then sin/cos pairs per
// seasonal period.
func featuresFor(h float64, daily, weekly, yearly int) []float64 {
	row := make([]float64, 0, 2+2*(daily+weekly+yearly))
	row = append(row, 1, h)
	row = appendHarmonics(row, h, dailyPeriodHours, daily)
	row = appendHarmonics(row, h, weeklyPeriodHours, weekly)
	row = appendHarmonics(row, h, yearlyPeriodHours, yearly)
	return row
}

func appendHarmonics(row []float64, h, period float64, count int) []float64 {
	for k := 1; k <= count; k++ {
		angle := 2 * math.Pi * float64(k) * h / period
		row = append(row, math.Sin(angle), math.Cos(angle))
	}
	return row
}
