package domain

import (
	"errors"
	"fmt"
)

// ErrorKind clasifica los fallos del engine.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindState
	KindSlippage
	KindTransfer
	KindArithmetic
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindSlippage:
		return "slippage"
	case KindTransfer:
		return "transfer"
	case KindArithmetic:
		return "arithmetic"
	case KindUnauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// Sentinels para errors.Is. Cualquier *Error del mismo Kind hace match.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrState        = &Error{Kind: KindState}
	ErrSlippage     = &Error{Kind: KindSlippage}
	ErrTransfer     = &Error{Kind: KindTransfer}
	ErrArithmetic   = &Error{Kind: KindArithmetic}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
)

// Error lleva el tipo de fallo, la operación y la cantidad que lo provocó,
// suficiente para que el caller muestre un mensaje preciso.
type Error struct {
	Kind     ErrorKind
	Op       string
	Msg      string
	Quantity uint64
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Quantity != 0 {
		msg += fmt.Sprintf(" (quantity=%d)", e.Quantity)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara solo por Kind, para que errors.Is(err, ErrState) funcione
// con cualquier error de estado.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, op, msg string, qty uint64) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Quantity: qty}
}

func ValidationError(op, msg string, qty uint64) *Error {
	return newError(KindValidation, op, msg, qty)
}

func StateError(op, msg string, qty uint64) *Error {
	return newError(KindState, op, msg, qty)
}

func SlippageError(op, msg string, qty uint64) *Error {
	return newError(KindSlippage, op, msg, qty)
}

func ArithmeticError(op, msg string, qty uint64) *Error {
	return newError(KindArithmetic, op, msg, qty)
}

func UnauthorizedError(op, msg string) *Error {
	return newError(KindUnauthorized, op, msg, 0)
}

// TransferError envuelve el fallo devuelto por custody.
func TransferError(op string, qty uint64, err error) *Error {
	return &Error{Kind: KindTransfer, Op: op, Msg: "custody transfer failed", Quantity: qty, Err: err}
}

// KindOf devuelve el Kind del primer *Error en la cadena, o 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
