package domain

import "errors"

var (
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrMissingCredential = errors.New("missing credential")
	ErrLockTimeout       = errors.New("timed out waiting for auction lock")
)
