// Package domain models hourly weather observations and the anomaly
// detection vocabulary shared by the feed, engine, store, and alert sink.
//
// # Data Source
//
// Observations come from a JSONL archive of historical hourly readings
// (one JSON object per line) produced from the Open-Meteo historical
// forecast API. Two record shapes are accepted:
//
//	{"timestamp": "2024-04-26 15:00:00", "temperature": 12.3, ...}
//	{"date": "2024-04-26", "time": "15:00", "temperature": 12.3, ...}
//
// The split date/time form is what the archive exporter emits; the feed
// combines the two fields into a single timestamp. Optional covariates
// (humidity, precipitation probability, rain/snow flags) are carried
// through unmodified but do not participate in forecasting.
//
// # Retraining Cadence
//
// The engine retrains at absolute cumulative observation counts, never
// wall-clock time, so replay speed cannot change the trajectory:
//
//	24   one day of hourly data   Initial -> Weekly
//	168  one week                 Weekly  -> Monthly
//	+720 every month thereafter   Monthly (steady state)
//
// Each retrain is a full batch refit over the entire accumulated
// history. A failed fit leaves the previous model live and pushes the
// next attempt one phase-interval forward.
//
// # Severity Classification
//
// An observation inside the forecast confidence band (inclusive) is
// normal. Outside the band, severity is derived from the deviation
// ratio: distance outside the band divided by the band width.
//
//	ratio <= 0.25  INFO
//	ratio <= 0.75  WARNING
//	else           CRITICAL
//
// A zero-width band makes any miss CRITICAL. Thresholds are tunable via
// configuration; the values above are the defaults.
package domain
