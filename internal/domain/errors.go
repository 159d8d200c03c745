package domain

import (
	"errors"
	"fmt"
	"time"
)

// SourceLayoutChangedError reports that an expected marker is missing from a
// source document, or that the text next to it no longer holds a number.
// The scraper needs maintenance when this occurs.
type SourceLayoutChangedError struct {
	URL    string
	Marker string
	Reason string
}

func (e *SourceLayoutChangedError) Error() string {
	return fmt.Sprintf("source layout changed at %s: marker %q: %s", e.URL, e.Marker, e.Reason)
}

// SourceFetchError reports a transport or HTTP status failure reaching a source.
type SourceFetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *SourceFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// DataIntegrityError reports a value that cannot appear in a StatRecord.
type DataIntegrityError struct {
	Region string
	Field  string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("data integrity: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("data integrity: %s %s: %s", e.Region, e.Field, e.Reason)
}

// DuplicateRecordError reports that a record for (Region, RecordDate) is
// already stored. It is the only recoverable store failure.
type DuplicateRecordError struct {
	Region     string
	RecordDate time.Time
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("record already stored for %s on %s", e.Region, e.RecordDate.Format(DateLayout))
}

// IsDuplicate reports whether err is or wraps a DuplicateRecordError.
func IsDuplicate(err error) bool {
	var dup *DuplicateRecordError
	return errors.As(err, &dup)
}
