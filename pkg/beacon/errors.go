package beacon

import "errors"

// Sentinel errors returned by beacon operations. Cache errors from
// [shardcache] are wrapped unchanged and can be checked with [errors.Is].
var (
	// ErrEventNotFound indicates no header in the run carries the
	// requested event number.
	ErrEventNotFound = errors.New("beacon: event not found")

	// ErrUnknownField indicates an attribute name that no record type has.
	ErrUnknownField = errors.New("beacon: unknown field")

	// ErrUnknownCategory indicates a category other than header, status
	// or event.
	ErrUnknownCategory = errors.New("beacon: unknown category")

	// ErrNoRuns indicates the data directory holds no run directories.
	ErrNoRuns = errors.New("beacon: no runs in data directory")

	// ErrEntryMismatch indicates the header and event at the same entry
	// carry different event numbers; the run is missing records in one
	// of the two categories.
	ErrEntryMismatch = errors.New("beacon: header and event do not match")
)
