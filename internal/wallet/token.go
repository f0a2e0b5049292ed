package wallet

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// VerifyToken checks a token issued by Authorize and returns the identity it
// proves. The signing key is the public key encoded by the token's subject.
func VerifyToken(raw string) (models.Identity, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		sub, err := t.Claims.GetSubject()
		if err != nil {
			return nil, err
		}
		return PublicKey(models.Identity(sub))
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	return models.Identity(claims.Subject), nil
}
