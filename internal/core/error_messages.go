package core

// Error codes reference.
//
// This file defines user-friendly error messages with codes for support reference.
// Typed errors are matched first with errors.As; everything else falls back to
// case-insensitive pattern matching on the error text.
//
//	FMT001 - Unreadable input file (FormatError)
//	FMT002 - No source file for a dataset (ErrSourceMissing)
//	NF001  - Record, table, or report does not exist (NotFoundError)
//	DB001  - Duplicate key
//	DB003  - Foreign key violation
//	DB004  - Connection refused
//	DB005  - Connection reset
//	DB006  - Timeout
//	DB007  - Deadlock
//	DB010  - Other store failure (StoreError)
//	LED001 - Insufficient funds for a withdrawal
//	LED002 - Amount outside the allowed range
//	REQ001 - Invalid request payload
//	REQ002 - Too many concurrent reports
//	REQ003 - Request cancelled
//	REQ004 - Request timed out
//	ERR000 - Unknown error

import (
	"context"
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

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Use a different key or update the existing record",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Ensure the customer exists before adding dependent records",
			Code:    "DB003",
		},
	},
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
			Action:  "Try again later",
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
		pattern: "insufficient funds",
		msg: UserMessage{
			Message: "Withdrawal would take the balance below the minimum",
			Action:  "Withdraw a smaller amount",
			Code:    "LED001",
		},
	},
	{
		pattern: "amount out of range",
		msg: UserMessage{
			Message: "Amount is outside the allowed range",
			Action:  "Use an amount between 1 and 5,000,000",
			Code:    "LED002",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request payload is invalid",
			Action:  "Check the request fields and try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "too many concurrent reports",
		msg: UserMessage{
			Message: "The system is busy running other reports",
			Action:  "Please wait a moment and try again",
			Code:    "REQ002",
		},
	},
}

var (
	formatMessage = UserMessage{
		Message: "The input file could not be parsed",
		Action:  "Check that the file is valid CSV, JSON, or XLSX",
		Code:    "FMT001",
	}
	sourceMissingMessage = UserMessage{
		Message: "No input file was found for this dataset",
		Action:  "Place the raw export in the raw data directory",
		Code:    "FMT002",
	}
	notFoundMessage = UserMessage{
		Message: "The requested record does not exist",
		Action:  "Verify the identifier is correct",
		Code:    "NF001",
	}
	storeMessage = UserMessage{
		Message: "The data store rejected the operation",
		Action:  "Check the application logs for details",
		Code:    "DB010",
	}
	cancelledMessage = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ003",
	}
	deadlineMessage = UserMessage{
		Message: "Request timed out",
		Action:  "Try again later",
		Code:    "REQ004",
	}
)

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Typed errors are checked first, then known patterns. If nothing matches,
// a generic fallback message with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var formatErr *FormatError
	switch {
	case errors.As(err, &formatErr):
		return formatMessage
	case errors.Is(err, ErrSourceMissing):
		return sourceMissingMessage
	case errors.Is(err, ErrNotFound):
		return notFoundMessage
	case errors.Is(err, context.Canceled):
		return cancelledMessage
	case errors.Is(err, context.DeadlineExceeded):
		return deadlineMessage
	}

	errLower := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errLower, p.pattern) {
			return p.msg
		}
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeMessage
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Action != "" {
		return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
	}
	return fmt.Sprintf("%s (Code: %s)", msg.Message, msg.Code)
}

// IsUserFacing reports whether an error maps to a specific message
// rather than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
