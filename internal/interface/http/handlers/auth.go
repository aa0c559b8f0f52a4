package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JWT AUTHENTICATION
// Bearer tokens are issued by the platform auth service and signed with a
// shared HS256 secret. The caller variant is resolved once, here.
// ══════════════════════════════════════════════════════════════════════════════

// ErrorResponder writes err to the client using the API error envelope.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// Claims represents JWT claims.
type Claims struct {
	UserID  string `json:"user_id,omitempty"`
	Role    string `json:"role"`
	AgentID string `json:"agent_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth verifies bearer tokens.
type JWTAuth struct {
	secret []byte
	issuer string
	logger *logger.Logger
}

// NewJWTAuth creates a verifier. An empty issuer disables the issuer check.
func NewJWTAuth(secret, issuer string, log *logger.Logger) *JWTAuth {
	if log == nil {
		log = logger.Default()
	}
	return &JWTAuth{
		secret: []byte(secret),
		issuer: issuer,
		logger: log.With(logger.Component("auth")),
	}
}

// Authenticate parses the token and resolves the caller.
func (a *JWTAuth) Authenticate(tokenString string) (application.Caller, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token expired"
		}
		return nil, shared.WrapError("auth", "Authenticate", shared.ErrUnauthorized, msg, err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	return application.NewCaller(
		application.Role(strings.ToLower(claims.Role)),
		shared.UserID(userID),
		shared.AgentID(claims.AgentID),
	)
}

// IssueToken signs claims with the shared secret. Used by tests and local tooling.
func (a *JWTAuth) IssueToken(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	if claims.Issuer == "" {
		claims.Issuer = a.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without a valid bearer token and stores the
// resolved caller in the request context.
func (a *JWTAuth) Middleware(onError ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				onError(w, r, shared.NewDomainError("auth", "Authenticate", shared.ErrUnauthorized, "missing bearer token"))
				return
			}

			caller, err := a.Authenticate(strings.TrimSpace(parts[1]))
			if err != nil {
				a.logger.Debug("authentication failed",
					logger.String("path", r.URL.Path),
					logger.Err(err),
				)
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

type callerKey struct{}

// WithCaller stores the caller in ctx.
func WithCaller(ctx context.Context, caller application.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the authenticated caller.
func CallerFromContext(ctx context.Context) (application.Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(application.Caller)
	return caller, ok && caller != nil
}
