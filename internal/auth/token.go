// README: Token verifier interface and JWT implementation.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

var ErrBadCredential = errors.New("invalid credential")

// TokenVerifier verifies a raw credential string and returns the embedded
// claims. Token issuance and key management live outside this service.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Principal, error)
}

type jwtVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a TokenVerifier for HMAC-signed tokens carrying
// sub/role/tenant_id/epoch claims.
func NewJWTVerifier(secret string) TokenVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

type tokenClaims struct {
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
	Epoch    int64  `json:"epoch"`
	jwt.RegisteredClaims
}

func (v *jwtVerifier) Verify(_ context.Context, raw string) (*Principal, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrBadCredential
	}
	if claims.Subject == "" || claims.Role == "" {
		return nil, ErrBadCredential
	}
	return &Principal{
		ID:           types.ID(claims.Subject),
		Role:         Role(claims.Role),
		TenantID:     types.ID(claims.TenantID),
		SessionEpoch: claims.Epoch,
	}, nil
}
