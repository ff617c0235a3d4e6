package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Error kinds surfaced by loading and scoring. Match with errors.Is.
var (
	ErrSourceUnreadable = eris.New("source unreadable")
	ErrMissingField     = eris.New("missing required field")
	ErrInvalidAmount    = eris.New("invalid amount")
)

// RecordError describes why a single record was rejected.
type RecordError struct {
	Row    int    `json:"row" yaml:"row"`
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Column string `json:"column" yaml:"column"`
	Reason string `json:"reason" yaml:"reason"`
	Err    error  `json:"-" yaml:"-"`
}

// NewRecordError wraps err with the row, record ID and offending column.
func NewRecordError(row int, id string, field Field, err error) *RecordError {
	return &RecordError{
		Row:    row,
		ID:     id,
		Column: field.String(),
		Reason: err.Error(),
		Err:    err,
	}
}

func (e *RecordError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("row %d (id %s): %s: %s", e.Row, e.ID, e.Column, e.Reason)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Column, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// SourceError reports an input file that could not be loaded. It matches
// ErrSourceUnreadable and the underlying cause.
type SourceError struct {
	Path string
	Err  error
}

// NewSourceError wraps err as a SourceError for path.
func NewSourceError(path string, err error) *SourceError {
	return &SourceError{Path: path, Err: err}
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrSourceUnreadable.Error(), e.Path, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnreadable, e.Err}
}
