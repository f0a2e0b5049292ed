// Package recordstore is the client side of the record node RPC.
package recordstore

import (
	"context"

	"github.com/starford/ansuz/internal/models"
)

// Store is the remote record store the view controller consumes.
type Store interface {
	// FetchRecord reads the record at addr. It never returns a Go error; the
	// outcome is carried by the FetchResult tag.
	FetchRecord(ctx context.Context, addr models.RecordAddress) FetchResult
	// InitializeRecord creates the record once. A second call fails with
	// apperr.ErrAlreadyExists.
	InitializeRecord(ctx context.Context, addr models.RecordAddress, owner models.Identity) error
	// AppendContribution appends one contribution. Empty text fails with
	// apperr.ErrEmptyInput.
	AppendContribution(ctx context.Context, addr models.RecordAddress, text string, author models.Identity) error
}

// Authorizer issues bearer tokens for write calls. wallet.Keystore
// implements it.
type Authorizer interface {
	Authorize(ctx context.Context, subject models.Identity) (string, error)
}

// FetchStatus tags a FetchResult.
type FetchStatus int

const (
	FetchError FetchStatus = iota
	FetchAbsent
	FetchFound
)

// String implements fmt.Stringer.
func (s FetchStatus) String() string {
	switch s {
	case FetchAbsent:
		return "absent"
	case FetchFound:
		return "found"
	default:
		return "error"
	}
}

// FetchResult is the outcome of a fetch: the record was found, is absent
// (never initialized), or could not be determined.
type FetchResult struct {
	Status FetchStatus
	Record models.Record
	Digest string
	Err    error
}

// Found returns a FetchFound result.
func Found(rec models.Record, digest string) FetchResult {
	return FetchResult{Status: FetchFound, Record: rec, Digest: digest}
}

// Absent returns a FetchAbsent result.
func Absent() FetchResult {
	return FetchResult{Status: FetchAbsent}
}

// Failed returns a FetchError result carrying err.
func Failed(err error) FetchResult {
	return FetchResult{Status: FetchError, Err: err}
}
