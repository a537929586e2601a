package core

// error_messages.go maps technical errors to user-facing messages with a
// support code.
//
// # Error Codes Reference
//
//	CLM001  - Claim not found (ErrNotFound)
//	IMP001  - Another import is running (ErrImportBusy)
//	IMP002  - Unknown import mode
//	IMP003  - Unknown import policy
//	IMP004  - Request was cancelled
//	IMP005  - Request timed out
//	FILE001 - File too large
//	FILE002 - File is not valid JSON or CSV (*FormatError)
//	FILE003 - Encoding error
//	FILE004 - No file provided
//	VAL001  - Invalid date
//	VAL002  - Invalid amount
//	VAL003  - Required field is empty
//	VAL004  - Required field is missing
//	VAL005  - Invalid id
//	VAL006  - Wrong value type
//	DB001-DB008 - Database constraint and connectivity errors
//	AUTH001-AUTH003 - Sign-in and registration errors
//	RATE001 - Too many requests
//	ERR000  - Anything else; check the logs for the technical error
//
// Typed errors are matched first. Everything else is matched by
// case-insensitive substring against the error text; the first matching
// pattern wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgNotFound = UserMessage{
		Message: "Claim not found",
		Action:  "It may have been removed by an overwrite import",
		Code:    "CLM001",
	}
	msgImportBusy = UserMessage{
		Message: "Another import is running",
		Action:  "Wait for it to finish and try again",
		Code:    "IMP001",
	}
	msgFormat = UserMessage{
		Message: "File could not be read as JSON or CSV",
		Action:  "Upload a JSON array of objects or a CSV file with a header row",
		Code:    "FILE002",
	}
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Import request errors
	{"unknown import mode", UserMessage{"Unknown import mode", "Choose overwrite or append", "IMP002"}},
	{"unknown import policy", UserMessage{"Unknown import policy", "Choose atomic or best_effort", "IMP003"}},

	// Record validation errors
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "VAL001"}},
	{"invalid amount", UserMessage{"Invalid amount detected", "Use a plain decimal number such as 1234.56", "VAL002"}},
	{"exceeds 10 integer digits", UserMessage{"Amount is too large", "Amounts must be below 10,000,000,000", "VAL002"}},
	{"required field is empty", UserMessage{"Required field is empty", "Ensure every record has a value for this field", "VAL003"}},
	{"missing required field", UserMessage{"Required field is missing", "Check that every record has all required fields", "VAL004"}},
	{"invalid integer", UserMessage{"Invalid id detected", "Ids must be whole numbers", "VAL005"}},
	{"expected a", UserMessage{"A field has the wrong type of value", "Check the field's value in your file", "VAL006"}},

	// File errors
	{"file too large", UserMessage{"File exceeds the maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"request body too large", UserMessage{"Upload exceeds the maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"encoding error", UserMessage{"File contains invalid characters", "Save the file as UTF-8", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Select both a claims file and a details file", "FILE004"}},

	// Database constraint errors
	{"duplicate key", UserMessage{"A record with this ID already exists", "Check your file for duplicate ids", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate key values", "DB002"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Ensure the claim exists first", "DB003"}},

	// Database connection errors
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"database is locked", UserMessage{"Database is busy", "Please try again", "DB008"}},

	// Request lifecycle
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "IMP004"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or check your connection", "IMP005"}},

	// Accounts
	{"invalid credentials", UserMessage{"Invalid username or password", "Check your details and try again", "AUTH001"}},
	{"username already taken", UserMessage{"That username is already taken", "Choose a different username", "AUTH002"}},
	{"invalid registration", UserMessage{"Registration details are invalid", "Fix the highlighted fields and try again", "AUTH003"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("claim 7: %w", ErrNotFound))
//	// msg.Code == "CLM001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var fe *FormatError
	switch {
	case errors.Is(err, ErrNotFound):
		return msgNotFound
	case errors.Is(err, ErrImportBusy):
		return msgImportBusy
	case errors.As(err, &fe):
		return msgFormat
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its
// user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
