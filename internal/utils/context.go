package utils

import (
	"context"

	"featureboard/internal/models"
)

type ctxKey string

const principalKey ctxKey = "principal"

// WithPrincipal stores the authenticated principal on ctx.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal set by the auth middleware.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok && p.ID != ""
}
