package models

import "fmt"

// ConfigurationError indicates bad slot labels, dates, or time zone
// configuration. Fatal for the run: no partial output is produced.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError wraps err with a configuration failure reason.
func NewConfigurationError(reason string, err error) *ConfigurationError {
	return &ConfigurationError{Reason: reason, Err: err}
}

// DataSourceError indicates a candidate pool or posted-record read
// failure. Aborts the run; no partial writes are attempted.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source error (%s): %v", e.Source, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// NewDataSourceError wraps err with the failing source name.
func NewDataSourceError(source string, err error) *DataSourceError {
	return &DataSourceError{Source: source, Err: err}
}

// PersistenceError indicates a single upsert failure. Reconcile runs
// record it per-record and continue; forecast runs abort.
type PersistenceError struct {
	DayKey    string
	SlotIndex int
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error (day %s slot %d): %v", e.DayKey, e.SlotIndex, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err with the failing slot key.
func NewPersistenceError(dayKey string, slotIndex int, err error) *PersistenceError {
	return &PersistenceError{DayKey: dayKey, SlotIndex: slotIndex, Err: err}
}
