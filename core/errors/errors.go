package errors

import stderrors "errors"

// Kind classifies a rejection so callers can react to a family of failures
// without matching every sentinel.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindState
	KindBounds
	KindLiquidity
	KindArithmetic
)

var (
	ErrAuthorization = stderrors.New("authorization error")
	ErrState         = stderrors.New("state error")
	ErrBounds        = stderrors.New("bounds error")
	ErrLiquidity     = stderrors.New("liquidity error")
	ErrArithmetic    = stderrors.New("arithmetic error")
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindBounds:
		return "bounds"
	case KindLiquidity:
		return "liquidity"
	case KindArithmetic:
		return "arithmetic"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindAuthorization:
		return ErrAuthorization
	case KindState:
		return ErrState
	case KindBounds:
		return ErrBounds
	case KindLiquidity:
		return ErrLiquidity
	case KindArithmetic:
		return ErrArithmetic
	default:
		return nil
	}
}

// Error is a classified rejection carrying a stable numeric exit code.
type Error struct {
	kind Kind
	code uint32
	msg  string
}

// New declares a classified sentinel. Declare these at package level and
// compare with errors.Is.
func New(kind Kind, code uint32, msg string) *Error {
	return &Error{kind: kind, code: code, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Code() uint32 { return e.code }

// Is lets errors.Is match both the sentinel itself and its kind.
func (e *Error) Is(target error) bool {
	if s := e.kind.sentinel(); s != nil && target == s {
		return true
	}
	return false
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var classified *Error
	if stderrors.As(err, &classified) {
		return classified.kind
	}
	return KindUnknown
}

// CodeOf returns the exit code of the first classified error in the chain, or
// zero.
func CodeOf(err error) uint32 {
	var classified *Error
	if stderrors.As(err, &classified) {
		return classified.code
	}
	return 0
}
