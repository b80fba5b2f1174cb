package audit

import (
	"context"
	"strings"
)

type metaKey struct{}

// meta is what an entry learns from the request that caused it.
type meta struct {
	requestID string
	actor     string
}

func metaFrom(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	m, _ := ctx.Value(metaKey{}).(meta)
	return m
}

func withMeta(ctx context.Context, update func(*meta)) context.Context {
	m := metaFrom(ctx)
	update(&m)
	return context.WithValue(ctx, metaKey{}, m)
}

// WithRequestID tags entries recorded under ctx with the request id. Blank ids are ignored.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.requestID = requestID })
}

// RequestIDFromContext returns the id set by WithRequestID or "".
func RequestIDFromContext(ctx context.Context) string { return metaFrom(ctx).requestID }

// WithActor records the email of the acting user.
func WithActor(ctx context.Context, email string) context.Context {
	email = strings.TrimSpace(email)
	if email == "" {
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.actor = email })
}

// ActorFromContext returns the email set by WithActor or "".
func ActorFromContext(ctx context.Context) string { return metaFrom(ctx).actor }
