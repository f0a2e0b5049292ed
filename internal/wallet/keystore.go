package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// TokenTTL bounds the lifetime of issued bearer tokens.
const TokenTTL = 5 * time.Minute

// keystoreFile is the on-disk keystore layout.
type keystoreFile struct {
	PrivateKey string    `yaml:"private_key"` // hex ed25519 seed
	Trusted    bool      `yaml:"trusted"`
	CreatedAt  time.Time `yaml:"created_at"`
}

// Keystore is a Provider backed by a local YAML keystore file.
type Keystore struct {
	store    storage.Provider
	name     string
	approver Approver

	mu sync.Mutex
}

var (
	_ Provider   = (*Keystore)(nil)
	_ Authorizer = (*Keystore)(nil)
)

// OpenKeystore opens the keystore at path. A missing file means no wallet is
// installed and fails with apperr.ErrProviderAbsent.
func OpenKeystore(path string, approver Approver) (*Keystore, error) {
	k, err := newKeystore(path, approver)
	if err != nil {
		return nil, err
	}
	if !k.store.Exists(k.name) {
		return nil, apperr.ErrProviderAbsent
	}
	return k, nil
}

// GenerateKeystore creates a new untrusted keystore at path and returns its
// identity. It refuses to overwrite an existing keystore.
func GenerateKeystore(path string) (models.Identity, error) {
	k, err := newKeystore(path, nil)
	if err != nil {
		return "", err
	}
	if k.store.Exists(k.name) {
		return "", fmt.Errorf("wallet: keystore %s: %w", path, apperr.ErrAlreadyExists)
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("wallet: generate key: %w", err)
	}
	kf := keystoreFile{
		PrivateKey: hex.EncodeToString(priv.Seed()),
		CreatedAt:  time.Now().UTC(),
	}
	if err := k.save(kf); err != nil {
		return "", err
	}
	return identityOf(priv), nil
}

// TrustKeystore marks the keystore at path as pre-authorized so that silent
// connects succeed.
func TrustKeystore(path string) (models.Identity, error) {
	k, err := OpenKeystore(path, nil)
	if err != nil {
		return "", err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	kf, priv, err := k.load()
	if err != nil {
		return "", err
	}
	kf.Trusted = true
	if err := k.save(kf); err != nil {
		return "", err
	}
	return identityOf(priv), nil
}

func newKeystore(path string, approver Approver) (*Keystore, error) {
	if path == "" {
		return nil, fmt.Errorf("wallet: keystore path is required")
	}
	store, err := storage.NewFS(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}
	return &Keystore{store: store, name: filepath.Base(path), approver: approver}, nil
}

// Path returns the absolute keystore path.
func (k *Keystore) Path() string {
	p, _ := k.store.Path(k.name)
	return p
}

// TrySilentConnect implements Provider.
func (k *Keystore) TrySilentConnect(_ context.Context) (models.Identity, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	kf, priv, err := k.load()
	if err != nil {
		return "", err
	}
	if !kf.Trusted {
		return "", apperr.ErrNotTrusted
	}
	return identityOf(priv), nil
}

// Connect implements Provider. A trusted keystore connects without a prompt;
// otherwise the approver decides and an approval is persisted.
func (k *Keystore) Connect(ctx context.Context) (models.Identity, error) {
	k.mu.Lock()
	kf, priv, err := k.load()
	k.mu.Unlock()
	if err != nil {
		return "", err
	}
	id := identityOf(priv)
	if kf.Trusted {
		return id, nil
	}
	if k.approver == nil {
		return "", apperr.ErrConnectRejected
	}

	ok, err := k.approver.Approve(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrConnectRejected, err)
	}
	if !ok {
		return "", apperr.ErrConnectRejected
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	kf.Trusted = true
	if err := k.save(kf); err != nil {
		return "", err
	}
	return id, nil
}

// Authorize implements Authorizer by signing a short-lived EdDSA token whose
// subject is the keystore identity.
func (k *Keystore) Authorize(_ context.Context, subject models.Identity) (string, error) {
	k.mu.Lock()
	_, priv, err := k.load()
	k.mu.Unlock()
	if err != nil {
		return "", err
	}
	if id := identityOf(priv); id != subject {
		return "", fmt.Errorf("wallet: cannot sign for %s: %w", subject.Short(), apperr.ErrUnauthorized)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Subject:   subject.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	})
	signed, err := token.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("wallet: sign token: %w", err)
	}
	return signed, nil
}

func (k *Keystore) load() (keystoreFile, ed25519.PrivateKey, error) {
	var kf keystoreFile
	data, err := k.store.Read(k.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return kf, nil, apperr.ErrProviderAbsent
		}
		return kf, nil, fmt.Errorf("wallet: %w", err)
	}
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return kf, nil, fmt.Errorf("wallet: parse keystore: %w", err)
	}
	seed, err := hex.DecodeString(kf.PrivateKey)
	if err != nil || len(seed) != ed25519.SeedSize {
		return kf, nil, fmt.Errorf("wallet: keystore has an invalid private key")
	}
	return kf, ed25519.NewKeyFromSeed(seed), nil
}

func (k *Keystore) save(kf keystoreFile) error {
	data, err := yaml.Marshal(kf)
	if err != nil {
		return fmt.Errorf("wallet: encode keystore: %w", err)
	}
	if err := k.store.Write(k.name, data); err != nil {
		return fmt.Errorf("wallet: %w", err)
	}
	return nil
}

func identityOf(priv ed25519.PrivateKey) models.Identity {
	return models.Identity(hex.EncodeToString(priv.Public().(ed25519.PublicKey)))
}

// PublicKey decodes an identity back into the ed25519 key it encodes.
func PublicKey(id models.Identity) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(string(id))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("wallet: malformed identity %q", id)
	}
	return ed25519.PublicKey(raw), nil
}
