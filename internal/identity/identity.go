// Package identity resolves the acting user for every engine operation.
// The engine does not own sessions; the host either places the principal on
// the context directly or hands over a signed token for the TokenResolver.
package identity

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vaultec/vaultcore/internal/errs"
)

// Resolver yields the acting user's ID, or ErrUnauthenticated.
type Resolver interface {
	Resolve(ctx context.Context) (uuid.UUID, error)
}

type ctxKey string

const userIDKey ctxKey = "vaultcore.userID"

// WithUserID stores an authenticated user ID in context.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches a user ID from context.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// ContextResolver resolves the principal previously stored with WithUserID.
type ContextResolver struct{}

// Resolve returns the context-carried user ID.
func (ContextResolver) Resolve(ctx context.Context) (uuid.UUID, error) {
	id, ok := UserIDFromCtx(ctx)
	if !ok || id == uuid.Nil {
		return uuid.Nil, errs.ErrUnauthenticated
	}
	return id, nil
}

const bearerKey ctxKey = "vaultcore.bearer"

// WithToken stores a raw bearer token in context for the TokenResolver.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey, token)
}

// TokenResolver validates HS256 JWTs whose subject is the user ID.
type TokenResolver struct {
	signKey []byte
}

// NewTokenResolver constructs a TokenResolver with the host's signing key.
func NewTokenResolver(signKey []byte) *TokenResolver {
	return &TokenResolver{signKey: signKey}
}

// Resolve parses and validates the context-carried token.
func (r *TokenResolver) Resolve(ctx context.Context) (uuid.UUID, error) {
	raw, _ := ctx.Value(bearerKey).(string)
	if raw == "" {
		return uuid.Nil, errs.ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.signKey, nil
	})
	if err != nil || !tok.Valid {
		return uuid.Nil, errs.ErrUnauthenticated
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errs.ErrUnauthenticated
	}
	return id, nil
}
