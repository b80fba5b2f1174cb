package auth

import "context"

type requestKey struct{}

// request holds what withAuth learned about the caller.
type request struct {
	principal Principal
	token     string
}

func requestFrom(ctx context.Context) request {
	if r, ok := ctx.Value(requestKey{}).(request); ok {
		return r
	}
	return request{}
}

// ContextWithPrincipal attaches the authenticated principal, keeping any token already present.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	r := requestFrom(ctx)
	r.principal = principal
	return context.WithValue(ctx, requestKey{}, r)
}

// PrincipalFromContext reports the principal set by ContextWithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	r := requestFrom(ctx)
	return r.principal, r.principal.User != nil
}

// ContextWithToken stores the raw bearer token next to the principal.
func ContextWithToken(ctx context.Context, token string) context.Context {
	r := requestFrom(ctx)
	r.token = token
	return context.WithValue(ctx, requestKey{}, r)
}

// TokenFromContext returns the bearer token, if any.
func TokenFromContext(ctx context.Context) (string, bool) {
	r := requestFrom(ctx)
	return r.token, r.token != ""
}
