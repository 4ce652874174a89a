package presale

import "errors"

// Kind classifies a failure.
type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindWindow        Kind = "window"
	KindEligibility   Kind = "eligibility"
	KindIdempotency   Kind = "idempotency"
	KindArithmetic    Kind = "arithmetic"
	KindSetup         Kind = "setup"
	KindUnknown       Kind = "unknown"
)

// Error is a classified sentinel.
type Error struct {
	Code string
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func newError(code string, kind Kind, msg string) *Error {
	return &Error{Code: code, Kind: kind, Msg: msg}
}

var (
	ErrUnauthorized                  = newError("Unauthorized", KindAuthorization, "unauthorized access")
	ErrNotRegistered                 = newError("NotRegistered", KindAuthorization, "caller is not registered for this presale")
	ErrInvalidPresaleStatus          = newError("InvalidPresaleStatus", KindState, "invalid presale status")
	ErrPresaleNotCompleted           = newError("PresaleNotCompleted", KindState, "presale is not completed yet")
	ErrTokenNotListed                = newError("TokenNotListed", KindState, "token has not been listed yet")
	ErrPresaleNotStarted             = newError("PresaleNotStarted", KindWindow, "presale not started yet")
	ErrPresaleEnded                  = newError("PresaleEnded", KindWindow, "presale already ended")
	ErrRegistrationNotStarted        = newError("RegistrationNotStarted", KindWindow, "presale registration period not started")
	ErrRegistrationEnded             = newError("RegistrationEnded", KindWindow, "presale registration period ended")
	ErrInsufficientTierQualification = newError("InsufficientTierQualification", KindEligibility, "insufficient token amount to qualify for tier")
	ErrInsufficientAllocation        = newError("InsufficientAllocation", KindEligibility, "insufficient allocation")
	ErrInvalidAmount                 = newError("InvalidAmount", KindEligibility, "amount must be greater than zero")
	ErrNothingToClaim                = newError("NothingToClaim", KindIdempotency, "nothing to claim at the moment")
	ErrTokenAlreadyListed            = newError("TokenAlreadyListed", KindIdempotency, "token has been listed to the market already")
	ErrFundsAlreadyWithdrawn         = newError("FundsAlreadyWithdrawn", KindIdempotency, "presale funds already withdrawn")
	ErrArithmeticOverflow            = newError("ArithmeticOverflow", KindArithmetic, "arithmetic overflow")
	ErrInvalidTimeSetup              = newError("InvalidTimeSetup", KindSetup, "presale time setup is invalid")
	ErrInvalidParams                 = newError("InvalidParams", KindSetup, "presale parameters are invalid")
)

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first classified error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
