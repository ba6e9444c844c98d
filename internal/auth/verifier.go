package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/thejas/flightbook/internal/domain"
)

const RoleAdmin = "ADMIN"

// Identity is the verified caller. The core trusts it as given and never
// parses or issues credentials itself.
type Identity struct {
	SubjectID string
	Roles     []string
}

func (i Identity) IsAdmin() bool {
	for _, r := range i.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// Verifier is the injected verification capability.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

type claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HMAC-signed tokens with a key scoped to this
// instance; there is no shared module-level secret.
type JWTVerifier struct {
	key    []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{key: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) Verify(token string) (*Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		return nil, domain.Wrap(domain.KindUnauthorized, "invalid credential", err)
	}
	if !parsed.Valid || c.Subject == "" {
		return nil, domain.E(domain.KindUnauthorized, "invalid credential")
	}
	return &Identity{SubjectID: c.Subject, Roles: c.Roles}, nil
}

var _ Verifier = (*JWTVerifier)(nil)
