package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidTerms     = errors.New("invalid bond terms")
	ErrInvalidYield     = errors.New("invalid yield")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidSide      = errors.New("invalid trade side")
	ErrInvalidSnapshot  = errors.New("invalid ledger snapshot")
	ErrSnapshotNotFound = errors.New("snapshot key not found")
)
