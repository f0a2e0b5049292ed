package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidInput  = errors.New("invalid input")

	// Record store.
	ErrNotInitialized = errors.New("record not initialized")
	ErrEmptyInput     = errors.New("empty input")
	ErrRemote         = errors.New("remote error")

	// Wallet.
	ErrProviderAbsent  = errors.New("no compatible wallet found")
	ErrNotTrusted      = errors.New("wallet not trusted")
	ErrConnectRejected = errors.New("connection rejected")

	// View state.
	ErrInvalidState = errors.New("action not valid in current state")
	ErrDisconnected = errors.New("wallet not connected")
)
