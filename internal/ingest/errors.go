package ingest

// # Error Codes Reference
//
// Every diagnostic carries a code and a suggested action so a user can fix
// the source file, and support staff can look the code up.
//
// # Validation (VAL001-VAL099)
//
//	VAL001 - Invalid date           "invalid date"
//	VAL002 - Invalid number         "invalid number"
//	VAL003 - Missing field          "missing required field"
//	VAL004 - Malformed record       "malformed record"
//	VAL006 - Invalid enum           "invalid enum"
//	VAL007 - Invalid link           "invalid link"
//	VAL008 - Too long               "too long"
//	VAL009 - Invalid value          "invalid value"
//	VAL010 - Defaulted (warning)    "defaulted to"
//	VAL011 - Insecure links         "instead of https"
//	VAL012 - Uniform type           "check the type column"
//
// # Duplicates (DUP001-DUP099)
//
//	DUP001 - Repeated in batch      "appears on rows"
//	DUP002 - Already cataloged      "already exist"
//
// # Links (LNK001-LNK099)
//
//	LNK001 - Link failed            "could not link"
//
// # Database (DB001-DB099)
//
//	DB001 - Duplicate key           "duplicate key"
//	DB004 - Connection refused      "connection refused"
//	DB005 - Connection reset        "connection reset"
//	DB006 - Timeout                 "timeout"
//	DB007 - Deadlock                "deadlock"
//	DB008 - Write conflict          "write conflict"
//
// # File (FILE001-FILE099)
//
//	FILE001 - File too large        "file too large"
//	FILE002 - Invalid CSV           "invalid csv"
//	FILE003 - Unreadable file       "unreadable"
//	FILE005 - Empty file            "empty file"
//	FILE006 - Unsupported format    "unsupported format"
//	FILE007 - No data rows          "no data rows"
//
// # Ingestion (UPL001-UPL099)
//
//	UPL002 - System busy            "too many uploads"
//	UPL004 - Request cancelled      "context canceled"
//	UPL005 - Request timeout        "context deadline exceeded"
//	UPL006 - Unknown kind           "unknown catalog kind"
//
// Diagnostics pick their entry by a fixed reason, and known sentinel errors
// by identity, so a value quoted from the file never changes the code. Other
// errors are matched case-insensitively with strings.Contains; the first
// match wins, so specific patterns come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalog/internal/store"
)

// Diagnostic reasons. Each is the pattern of its table entry.
const (
	reasonRepeatedKey   = "appears on rows"
	reasonKeyExists     = "already exist"
	reasonDuplicateSave = "duplicate key"
	reasonLinkFailed    = "could not link"
	reasonInvalidDate   = "invalid date"
	reasonInvalidNumber = "invalid number"
	reasonMissingField  = "missing required field"
	reasonMalformed     = "malformed record"
	reasonInvalidEnum   = "invalid enum"
	reasonInvalidLink   = "invalid link"
	reasonTooLong       = "too long"
	reasonInvalidValue  = "invalid value"
	reasonDefaulted     = "defaulted to"
	reasonInsecureLinks = "instead of https"
	reasonUniformType   = "check the type column"
	reasonWriteConflict = "write conflict"
	reasonFileTooLarge  = "file too large"
	reasonInvalidCSV    = "invalid csv"
	reasonUnreadable    = "unreadable"
	reasonEmptyFile     = "empty file"
	reasonUnsupported   = "unsupported format"
	reasonNoDataRows    = "no data rows"
	reasonBusy          = "too many uploads"
	reasonCanceled      = "context canceled"
	reasonTimedOut      = "context deadline exceeded"
	reasonUnknownKind   = "unknown catalog kind"
)

// sentinelReasons maps errors the code itself returns to their reason.
var sentinelReasons = []struct {
	err    error
	reason string
}{
	{ErrUnknownKind, reasonUnknownKind},
	{ErrTooManyBatches, reasonBusy},
	{context.Canceled, reasonCanceled},
	{context.DeadlineExceeded, reasonTimedOut},
	{store.ErrDuplicateKey, reasonDuplicateSave},
	{store.ErrConflict, reasonWriteConflict},
	{errMissingField, reasonMissingField},
	{errInvalidEnum, reasonInvalidEnum},
	{errInvalidDate, reasonInvalidDate},
	{errInvalidNumber, reasonInvalidNumber},
	{errNotObject, reasonMalformed},
	{errInvalidCSV, reasonInvalidCSV},
	{errUnreadable, reasonUnreadable},
	{errEmptyFile, reasonEmptyFile},
	{errNoDataRows, reasonNoDataRows},
}

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Duplicates
	// =========================================================================
	{
		pattern: "appears on rows",
		msg: UserMessage{
			Message: "The same key appears more than once in this file",
			Action:  "Keep one row per key and re-upload the file",
			Code:    "DUP001",
		},
	},
	{
		pattern: "already exist",
		msg: UserMessage{
			Message: "A record with this key is already cataloged",
			Action:  "Remove rows that are already cataloged or change their key",
			Code:    "DUP002",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Another upload saved this key first; remove the row and re-upload",
			Code:    "DB001",
		},
	},

	// =========================================================================
	// Links
	// =========================================================================
	{
		pattern: "could not link",
		msg: UserMessage{
			Message: "The linked record could not be created or updated",
			Action:  "The row was saved; link it manually or re-upload the referenced catalog",
			Code:    "LNK001",
		},
	},

	// =========================================================================
	// Validation
	// =========================================================================
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Remove currency symbols and use standard decimal format",
			Code:    "VAL002",
		},
	},
	{
		pattern: "missing required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure all required columns have values",
			Code:    "VAL003",
		},
	},
	{
		pattern: "malformed record",
		msg: UserMessage{
			Message: "Record could not be read",
			Action:  "Make every element of the JSON array an object",
			Code:    "VAL004",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "VAL006",
		},
	},
	{
		pattern: "invalid link",
		msg: UserMessage{
			Message: "Link is not a valid URI",
			Action:  "Use a full link including the scheme, e.g. https://example.com/item",
			Code:    "VAL007",
		},
	},
	{
		pattern: "too long",
		msg: UserMessage{
			Message: "Value exceeds the maximum length",
			Action:  "Shorten the value",
			Code:    "VAL008",
		},
	},
	{
		pattern: "invalid value",
		msg: UserMessage{
			Message: "Value has the wrong format",
			Action:  "Check the column against the template",
			Code:    "VAL009",
		},
	},
	{
		pattern: "defaulted to",
		msg: UserMessage{
			Message: "An optional column was empty and a default was used",
			Action:  "Fill the column if the default is not what you want",
			Code:    "VAL010",
		},
	},
	{
		pattern: "instead of https",
		msg: UserMessage{
			Message: "Most links in the file are not secure",
			Action:  "Check whether the links should start with https://",
			Code:    "VAL011",
		},
	},
	{
		pattern: "check the type column",
		msg: UserMessage{
			Message: "Every record in a large file has the same type",
			Action:  "Check that the type column was filled in correctly",
			Code:    "VAL012",
		},
	},

	// =========================================================================
	// Database
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try uploading a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "write conflict",
		msg: UserMessage{
			Message: "The record was changed by another upload",
			Action:  "Re-upload the rejected rows",
			Code:    "DB008",
		},
	},

	// =========================================================================
	// File
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent columns",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unreadable",
		msg: UserMessage{
			Message: "File content does not match its extension",
			Action:  "Save the file again in the format its extension names",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported format",
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Upload a .csv, .xlsx, .xls or .json file",
			Code:    "FILE006",
		},
	},
	{
		pattern: "no data rows",
		msg: UserMessage{
			Message: "The file has a header but no data",
			Action:  "Add data rows below the header",
			Code:    "FILE007",
		},
	},

	// =========================================================================
	// Ingestion
	// =========================================================================
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "unknown catalog kind",
		msg: UserMessage{
			Message: "Unknown catalog",
			Action:  "Use one of: content, media, upload, stats",
			Code:    "UPL006",
		},
	},
}

// defaultMessage is returned when no pattern matches. Support staff should
// check application logs for the original error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if reason, ok := sentinelReason(err); ok {
		return reasonMessage(reason)
	}
	return mapText(err.Error())
}

func sentinelReason(err error) (string, bool) {
	for _, sr := range sentinelReasons {
		if errors.Is(err, sr.err) {
			return sr.reason, true
		}
	}
	return "", false
}

// reasonMessage returns the entry whose pattern is reason.
func reasonMessage(reason string) UserMessage {
	for _, ep := range errorPatterns {
		if ep.pattern == reason {
			return ep.msg
		}
	}
	return defaultMessage
}

func mapText(s string) UserMessage {
	s = strings.ToLower(s)
	for _, ep := range errorPatterns {
		if strings.Contains(s, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// IsUserFacing reports whether err matches a known pattern. Errors that do
// not are unexpected and logged as such.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message. It
// prints as "Message (Code: XXX). Action" and unwraps to the technical
// error.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%s (Code: %s). %s", e.User.Message, e.User.Code, e.User.Action)
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
