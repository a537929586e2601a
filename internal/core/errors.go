package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by lookups of claims and users that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrImportBusy is returned when another import holds the import slot
	// for longer than the configured wait.
	ErrImportBusy = errors.New("import already running")

	// ErrUsernameTaken is returned when creating a user whose name exists.
	ErrUsernameTaken = errors.New("username already taken")
)

// FormatError reports an input file that cannot be read as records at all.
// It always aborts the import.
type FormatError struct {
	Source string // file name, or "claims"/"details" when unnamed
	Line   int    // 0 when unknown
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	where := e.Source
	if e.Line > 0 {
		where = fmt.Sprintf("%s line %d", e.Source, e.Line)
	}
	return fmt.Sprintf("invalid file format: %s: %s", where, e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// MissingParentWarning records a detail skipped because its claim does not
// exist. It is reported, never returned as an error.
type MissingParentWarning struct {
	DetailID string // "unknown" when the record had no id
	ClaimID  int64
}

func (w MissingParentWarning) String() string {
	return fmt.Sprintf("Skipping detail %s - claim missing", w.DetailID)
}

// ClaimNotFound wraps ErrNotFound with the claim id.
func ClaimNotFound(id int64) error {
	return fmt.Errorf("claim %d: %w", id, ErrNotFound)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
