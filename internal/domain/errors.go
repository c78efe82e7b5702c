package domain

import "errors"

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrEventNotFound  = errors.New("event not found")
	ErrPersonNotFound = errors.New("person not found")
)

var (
	ErrAlreadyJoined       = errors.New("person already joined this event")
	ErrTicketCodeTaken     = errors.New("ticket code already in use")
	ErrTicketCodeExhausted = errors.New("could not allocate a unique ticket code")
	ErrAlreadyCheckedIn    = errors.New("ticket already checked in")
)

var (
	ErrInvalidID   = errors.New("invalid id")
	ErrInvalidCode = errors.New("invalid ticket code")
)

var (
	ErrInvalidTransition = errors.New("invalid ticket status transition")
	ErrUnknownStatus     = errors.New("unknown ticket status")
)
