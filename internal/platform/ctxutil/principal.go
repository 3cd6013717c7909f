package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type principalKey struct{}

// Principal is the authenticated service account attached to a request.
type Principal struct {
	AccountID uuid.UUID
	Name      string
	Scopes    []string
}

func (p *Principal) HasScope(scope string) bool {
	if p == nil {
		return false
	}
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func GetPrincipal(ctx context.Context) *Principal {
	if ctx == nil {
		return nil
	}
	if p, ok := ctx.Value(principalKey{}).(*Principal); ok {
		return p
	}
	return nil
}
