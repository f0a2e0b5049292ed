// Package wallet resolves the user's public identity through an optional
// wallet provider and holds it for the rest of the process.
package wallet

import (
	"context"

	"github.com/starford/ansuz/internal/models"
)

// Provider is the wallet capability the client depends on.
type Provider interface {
	// TrySilentConnect returns the identity without prompting. It fails with
	// apperr.ErrNotTrusted when the user has not pre-authorized this client.
	TrySilentConnect(ctx context.Context) (models.Identity, error)
	// Connect prompts the user and blocks until they approve or reject.
	// Rejection fails with apperr.ErrConnectRejected.
	Connect(ctx context.Context) (models.Identity, error)
}

// Authorizer issues bearer tokens proving control of an identity.
type Authorizer interface {
	Authorize(ctx context.Context, subject models.Identity) (string, error)
}
