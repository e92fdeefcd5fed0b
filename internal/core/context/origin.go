package context

import (
	"context"
)

// Origin describes where a request came from. Recorded on audit entries.
type Origin struct {
	IP        string
	UserAgent string
}

type originKey struct{}

// WithOrigin adds request origin to context.
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

// GetOrigin returns request origin or the zero value.
func GetOrigin(ctx context.Context) Origin {
	if v, ok := ctx.Value(originKey{}).(Origin); ok {
		return v
	}
	return Origin{}
}
