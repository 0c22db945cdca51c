package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"picshare-backend/internal/apperrors"
	"picshare-backend/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const identityKey contextKey = "identity"

// TokenVerifier turns a bearer token into an identity
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// Authenticate rejects requests without a valid bearer token and stores the
// verified identity in the request context
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				respondError(w, err)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				respondError(w, err)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.Unauthenticated("authorization header required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperrors.Unauthenticated("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

// WithIdentity returns a context carrying identity
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom extracts the verified identity, or nil when the request was
// not authenticated
func IdentityFrom(ctx context.Context) *auth.Identity {
	identity, ok := ctx.Value(identityKey).(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}

// ValidateID rejects requests whose URL parameter is not a well-formed id
// before any handler runs. Ids are stored in the canonical lowercase
// hyphenated form, so braced, urn and unhyphenated spellings are rejected.
func ValidateID(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isCanonicalID(chi.URLParam(r, param)) {
				respondError(w, apperrors.InvalidID("invalid id"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isCanonicalID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

type errorBody struct {
	Error string         `json:"error"`
	Kind  apperrors.Kind `json:"kind"`
}

// respondError sends an error response for failures detected before a
// handler runs. These never carry internal detail.
func respondError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatus(kind))
	if err := json.NewEncoder(w).Encode(errorBody{Error: apperrors.PublicMessage(err), Kind: kind}); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
