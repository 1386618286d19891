package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected round operation
type ErrorKind string

const (
	ErrorKindValidation        ErrorKind = "validation"
	ErrorKindStateConflict     ErrorKind = "state_conflict"
	ErrorKindInsufficientFunds ErrorKind = "insufficient_funds"
	ErrorKindAuthorization     ErrorKind = "authorization"
)

// RoundError is returned for every rejected round or ledger operation.
// Two RoundErrors match under errors.Is when their codes are equal, so
// callers can compare against the sentinels below even when the message
// carries extra detail.
type RoundError struct {
	Kind ErrorKind
	Code string
	Msg  string
}

func (e *RoundError) Error() string {
	return e.Msg
}

// Is reports whether target is a RoundError with the same code
func (e *RoundError) Is(target error) bool {
	t, ok := target.(*RoundError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Withf returns a copy of the error with a more specific message
func (e *RoundError) Withf(format string, args ...any) *RoundError {
	return &RoundError{Kind: e.Kind, Code: e.Code, Msg: fmt.Sprintf(format, args...)}
}

func newRoundError(kind ErrorKind, code, msg string) *RoundError {
	return &RoundError{Kind: kind, Code: code, Msg: msg}
}

// Validation errors
var (
	ErrInvalidContenderCount = newRoundError(ErrorKindValidation, "invalid_contender_count", "a round needs between 2 and 10 contenders")
	ErrInvalidContenderIndex = newRoundError(ErrorKindValidation, "invalid_contender_index", "invalid contender number")
	ErrDuplicateContender    = newRoundError(ErrorKindValidation, "duplicate_contender", "contender names must be unique")
	ErrEmptyContender        = newRoundError(ErrorKindValidation, "empty_contender", "contender names cannot be empty")
	ErrEmptyTitle            = newRoundError(ErrorKindValidation, "empty_title", "round title cannot be empty")
	ErrNonPositiveAmount     = newRoundError(ErrorKindValidation, "non_positive_amount", "amount must be positive")
	ErrNonPositiveDuration   = newRoundError(ErrorKindValidation, "non_positive_duration", "duration must be positive")
)

// State conflict errors
var (
	ErrRoundAlreadyOpen          = newRoundError(ErrorKindStateConflict, "round_already_open", "a round is already running in this community")
	ErrNoOpenRound               = newRoundError(ErrorKindStateConflict, "no_open_round", "there is no round in this community")
	ErrRoundClosed               = newRoundError(ErrorKindStateConflict, "round_closed", "betting is closed for this round")
	ErrRoundNotOpen              = newRoundError(ErrorKindStateConflict, "round_not_open", "the round is not open")
	ErrAlreadyCommittedElsewhere = newRoundError(ErrorKindStateConflict, "already_committed_elsewhere", "you already bet on a different contender")
)

// Funds errors
var (
	ErrInsufficientBalance = newRoundError(ErrorKindInsufficientFunds, "insufficient_balance", "insufficient balance")
	ErrNegativeBalance     = newRoundError(ErrorKindInsufficientFunds, "negative_balance", "balance cannot go below zero")
)

// Authorization errors
var (
	ErrNotOperator = newRoundError(ErrorKindAuthorization, "not_operator", "only round operators can do that")
)

// KindOf returns the kind of a RoundError anywhere in err's chain, or "" if
// err is not a round error.
func KindOf(err error) ErrorKind {
	var re *RoundError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
