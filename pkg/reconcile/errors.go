package reconcile

import "errors"

var (
	// ErrInconsistentData means a fetched batch failed validation; nothing was stored.
	ErrInconsistentData = errors.New("inconsistent data")
	ErrUnknownPartner   = errors.New("unknown partner")
	ErrUnknownMaterial  = errors.New("unknown material")
	// ErrKeyBusy is returned when another reconciliation of the same key is in flight.
	ErrKeyBusy    = errors.New("reconciliation already in progress")
	ErrInvalidKey = errors.New("invalid sync key")
)
