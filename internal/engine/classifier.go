package engine

import (
	"github.com/couchcryptid/temp-anomaly-service/internal/domain"
)

// Thresholds are the severity bands on the deviation ratio. Ties
// resolve to the lower band (inclusive upper bound).
type Thresholds struct {
	Info    float64 // ratio <= Info    -> INFO
	Warning float64 // ratio <= Warning -> WARNING, else CRITICAL
}

// DefaultThresholds returns the documented default bands.
func DefaultThresholds() Thresholds {
	return Thresholds{Info: 0.25, Warning: 0.75}
}

// classify compares an observation against its forecast band. Values on
// the boundaries are normal. Outside the band, the deviation ratio is
// the distance past the nearer bound divided by the band width; a
// zero-width band makes any miss CRITICAL, with the absolute distance
// recorded as the deviation so the log record stays finite.
func classify(fc domain.Forecast, obs domain.Observation, th Thresholds) (domain.Anomaly, bool) {
	if fc.Contains(obs.Temperature) {
		return domain.Anomaly{}, false
	}

	var distance float64
	var direction string
	if obs.Temperature < fc.Lower {
		distance = fc.Lower - obs.Temperature
		direction = "below"
	} else {
		distance = obs.Temperature - fc.Upper
		direction = "above"
	}

	width := fc.Width()
	if width <= 0 {
		return domain.Anomaly{
			Timestamp: obs.Timestamp,
			Observed:  obs.Temperature,
			Forecast:  fc,
			Deviation: distance,
			Severity:  domain.SeverityCritical,
			Direction: direction,
		}, true
	}

	ratio := distance / width
	return domain.Anomaly{
		Timestamp: obs.Timestamp,
		Observed:  obs.Temperature,
		Forecast:  fc,
		Deviation: ratio,
		Severity:  severityFor(ratio, th),
		Direction: direction,
	}, true
}

func severityFor(ratio float64, th Thresholds) domain.Severity {
	switch {
	case ratio <= th.Info:
		return domain.SeverityInfo
	case ratio <= th.Warning:
		return domain.SeverityWarning
	default:
		return domain.SeverityCritical
	}
}
