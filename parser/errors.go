package parser

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied indicates the recipe page refused access.
var ErrPermissionDenied = errors.New("permission denied")

// SectionParseError indicates a section's rows did not have the shape its
// normalization policy expects.
type SectionParseError struct {
	Section string
	Err     error
}

func (e *SectionParseError) Error() string {
	name := e.Section
	if name == "" {
		name = "comments"
	}
	return fmt.Errorf("section %s: %w", name, e.Err).Error()
}

func (e *SectionParseError) Unwrap() error {
	return e.Err
}

// StatValueParseError indicates an unrecognised stat value token.
type StatValueParseError struct {
	Label string
	Value string
	Err   error
}

func (e *StatValueParseError) Error() string {
	return fmt.Sprintf("stat %q: unrecognised value %q: %v", e.Label, e.Value, e.Err)
}

func (e *StatValueParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is a page-level parse failure.
func IsParseError(err error) bool {
	var section *SectionParseError
	if errors.As(err, &section) {
		return true
	}
	var stat *StatValueParseError
	return errors.As(err, &stat)
}

func sectionErrorf(section, format string, args ...any) error {
	return &SectionParseError{Section: section, Err: fmt.Errorf(format, args...)}
}
