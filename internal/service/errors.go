package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/restaurant-service/internal/store"
)

// ValidationError reports a missing or malformed input field. Msg is
// shown to the user as is.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s no encontrado", e.Entity, e.ID) }

// QR validation outcomes. Each carries the text shown to the customer.
var (
	ErrInvalidCode     = errors.New("Código QR inválido")
	ErrExpiredCode     = errors.New("Código QR expirado")
	ErrAlreadyOccupied = errors.New("Mesa ya ocupada")
)

// ErrInvalidTransition is returned when an order status change is not a
// forward move out of pendiente.
var ErrInvalidTransition = errors.New("transición de estado no permitida")

// ErrStreamClosed is returned by background workers whose table stream
// ended while they were still meant to run.
var ErrStreamClosed = errors.New("table stream closed")

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// wrap converts store errors: ErrNotFound becomes a NotFoundError for
// entity/id and anything else a StoreError. Domain errors pass through.
func wrap(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	var ve *ValidationError
	var nf *NotFoundError
	var se *StoreError
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &se) ||
		errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrExpiredCode) ||
		errors.Is(err, ErrAlreadyOccupied) || errors.Is(err, ErrInvalidTransition) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
