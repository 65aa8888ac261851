package classroom

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/quipper/poc/classroom/be/pkg/common/keys"
	"github.com/quipper/poc/classroom/be/pkg/common/logger"
)

// Teacher is the caller identified by the access token.
type Teacher struct {
	ID     string   `json:"id"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	Scopes []string `json:"scopes"`
}

type teacherKey struct{}

// TeacherFromContext returns the authenticated teacher, or nil outside
// requireScopes.
func TeacherFromContext(ctx context.Context) *Teacher {
	t, _ := ctx.Value(teacherKey{}).(*Teacher)
	return t
}

// requireScopes validates the Bearer token and enforces one of the listed scopes.
// It verifies signature, exp and aud, and stores the Teacher in the request context.
func (h *Handler) requireScopes(anyOf ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				logger.Debug("auth: missing bearer token path=%s", r.URL.Path)
				w.Header().Set("WWW-Authenticate", `Bearer realm="classroom", error="invalid_request"`)
				http.Error(w, "missingAuthorization", http.StatusUnauthorized)
				return
			}
			tokStr := strings.TrimSpace(auth[len("Bearer "):])

			tok, err := h.parseToken(r.Context(), tokStr)
			if err != nil {
				logger.Debug("auth: token parse/validate error: %v", err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="classroom", error="invalid_token"`)
				http.Error(w, "invalidToken", http.StatusUnauthorized)
				return
			}
			if tok.Subject() == "" {
				http.Error(w, "invalidToken", http.StatusUnauthorized)
				return
			}

			var have []string
			if v, ok := tok.Get("scope"); ok {
				have = scopeList(v)
			}
			if !hasAnyScope(have, anyOf) {
				logger.Debug("auth: insufficient scope. have=%v need one of %v", have, anyOf)
				w.Header().Set("WWW-Authenticate", `Bearer realm="classroom", error="insufficient_scope", scope="`+strings.Join(anyOf, " ")+`"`)
				http.Error(w, "insufficientScope", http.StatusForbidden)
				return
			}

			t := &Teacher{ID: tok.Subject(), Scopes: have}
			if v, ok := tok.Get("email"); ok {
				t.Email, _ = v.(string)
			}
			if v, ok := tok.Get("name"); ok {
				t.Name, _ = v.(string)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), teacherKey{}, t)))
		})
	}
}

// parseToken verifies against the external key set when one is configured,
// refreshing it once for tokens it cannot verify, and requires the external
// issuer. Otherwise the platform key is used and the platform issuer must match.
func (h *Handler) parseToken(ctx context.Context, tokStr string) (jwt.Token, error) {
	if h.auth.JWKSURL == "" || h.jwksCache == nil {
		set, err := keys.PublicKeySet()
		if err != nil {
			return nil, fmt.Errorf("platform keys: %w", err)
		}
		return jwt.ParseString(tokStr,
			jwt.WithKeySet(set),
			jwt.WithValidate(true),
			jwt.WithAudience(h.auth.Audience),
			jwt.WithIssuer(h.auth.Issuer),
		)
	}

	parse := func(set jwk.Set) (jwt.Token, error) {
		return jwt.ParseString(tokStr,
			jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
			jwt.WithValidate(true),
			jwt.WithAudience(h.auth.Audience),
			jwt.WithIssuer(h.auth.ExternalIssuer),
		)
	}
	set, err := h.jwksCache.Get(ctx, h.auth.JWKSURL)
	if err != nil {
		return nil, err
	}
	tok, err := parse(set)
	if err == nil || jwt.IsValidationError(err) {
		return tok, err
	}
	logger.Debug("auth: verify with cached JWKS failed, refreshing: %v", err)
	if set, err = h.jwksCache.Refresh(ctx, h.auth.JWKSURL); err != nil {
		return nil, err
	}
	return parse(set)
}

// scopeList accepts the space-delimited string form as well as JSON arrays.
func scopeList(claim any) []string {
	switch s := claim.(type) {
	case string:
		return strings.Fields(s)
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, x := range s {
			if str, ok := x.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func hasAnyScope(have, anyOf []string) bool {
	for _, need := range anyOf {
		for _, h := range have {
			if h == need {
				return true
			}
		}
	}
	return false
}
