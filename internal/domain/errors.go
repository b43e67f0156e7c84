package domain

import "errors"

// Error taxonomy for the detection loop. ErrLoad is fatal at startup;
// everything else is recoverable and must never terminate the
// observation-processing loop. Callers wrap these sentinels with %w and
// check with errors.Is.
var (
	// ErrLoad marks malformed or missing input data.
	ErrLoad = errors.New("load error")

	// ErrFit marks a failed retrain; the previous model stays live.
	ErrFit = errors.New("fit error")

	// ErrPrediction marks a timestamp the model cannot score; the
	// observation is treated as non-anomalous.
	ErrPrediction = errors.New("prediction error")

	// ErrStorage marks a failed snapshot or alert log write.
	ErrStorage = errors.New("storage error")

	// ErrNoSnapshot is returned when the model store holds no snapshots.
	ErrNoSnapshot = errors.New("no snapshot available")
)
