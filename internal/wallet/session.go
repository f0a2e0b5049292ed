package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// Session holds the identity of the connected wallet. Once an identity is
// obtained it is never replaced or re-validated.
type Session struct {
	provider Provider
	logger   *slog.Logger

	mu        sync.Mutex
	identity  models.Identity
	connected bool
	noticed   bool
}

// NewSession creates a session over p. A nil p means no wallet provider is
// installed; every connect attempt then reports apperr.ErrProviderAbsent.
func NewSession(p Provider, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{provider: p, logger: logger}
}

// Available reports whether a wallet provider is installed.
func (s *Session) Available() bool {
	return s.provider != nil
}

// Identity returns the connected identity, if any.
func (s *Session) Identity() (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.connected
}

// Authorizer returns the provider's token issuer, or nil when the provider
// cannot sign.
func (s *Session) Authorizer() Authorizer {
	if a, ok := s.provider.(Authorizer); ok {
		return a
	}
	return nil
}

// TrySilentConnect resolves an already-trusted identity without prompting.
// Every failure is silent except a missing provider, which is logged once
// as a user-facing notice.
func (s *Session) TrySilentConnect(ctx context.Context) (models.Identity, bool) {
	if id, ok := s.Identity(); ok {
		return id, true
	}
	if s.provider == nil {
		s.noticeAbsent()
		return "", false
	}
	id, err := s.provider.TrySilentConnect(ctx)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotTrusted) {
			s.logger.Debug("wallet: silent connect failed", slog.String("error", err.Error()))
		}
		return "", false
	}
	return s.set(id), true
}

// Connect prompts the provider interactively. On rejection the session stays
// disconnected.
func (s *Session) Connect(ctx context.Context) (models.Identity, error) {
	if id, ok := s.Identity(); ok {
		return id, nil
	}
	if s.provider == nil {
		s.noticeAbsent()
		return "", apperr.ErrProviderAbsent
	}
	id, err := s.provider.Connect(ctx)
	if err != nil {
		return "", fmt.Errorf("wallet: connect: %w", err)
	}
	id = s.set(id)
	s.logger.Info("wallet: connected", slog.String("identity", id.String()))
	return id, nil
}

// set stores id unless another identity won a concurrent race; it returns
// the identity that is in effect.
func (s *Session) set(id models.Identity) models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return s.identity
	}
	s.identity = id
	s.connected = true
	return id
}

func (s *Session) noticeAbsent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noticed {
		return
	}
	s.noticed = true
	s.logger.Warn("wallet: " + apperr.ErrProviderAbsent.Error())
}
