package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"folio.dev/internal/audit"
	"folio.dev/internal/auth"
)

var (
	errNoToken   = errors.New("missing bearer token")
	errNotBearer = errors.New("invalid authorization scheme")
)

// authedHandler receives the principal resolved from the bearer token.
type authedHandler func(w http.ResponseWriter, r *http.Request, p auth.Principal)

func challenge(w http.ResponseWriter, r *http.Request, code, msg string) {
	v := `Bearer realm="folio"`
	if code != "" {
		v += `, error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", v)
	writeError(w, r, http.StatusUnauthorized, msg)
}

func (a *API) withAuth(next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			challenge(w, r, "", err.Error())
			return
		}
		p, err := a.users.Authenticate(r.Context(), token)
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			challenge(w, r, "invalid_token", "invalid token")
			return
		case err != nil:
			handleDomainError(w, r, err)
			return
		}
		ctx := audit.WithActor(r.Context(), p.Email())
		ctx = auth.ContextWithToken(auth.ContextWithPrincipal(ctx, p), token)
		next(w, r.WithContext(ctx), p)
	})
}

// bearerToken parses "Bearer <token>"; the scheme is case-insensitive.
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errNoToken
	}
	scheme, rest, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "bearer") {
		return "", errNotBearer
	}
	token := strings.TrimSpace(rest)
	if token == "" {
		return "", errNoToken
	}
	return token, nil
}
