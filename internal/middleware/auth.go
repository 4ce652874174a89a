// Package middleware provides HTTP middleware for the presale API
package middleware

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/presale_layer/internal/errors"
	"github.com/R3E-Network/presale_layer/internal/httputil"
	"github.com/R3E-Network/presale_layer/internal/logging"
)

// Claims represents JWT claims. UserID is the caller identity every presale
// operation is authorized against.
type Claims struct {
	UserID     string `json:"user_id"`
	AuthMethod string `json:"auth_method,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware provides JWT authentication
type AuthMiddleware struct {
	publicKey   interface{}
	logger      *logging.Logger
	skipPaths   map[string]bool
	trustCaller bool
}

// AuthOption configures an AuthMiddleware.
type AuthOption func(*AuthMiddleware)

// WithTrustedCallerHeader accepts the caller named in X-Caller-ID when a
// request carries no bearer token. Local deployments only.
func WithTrustedCallerHeader() AuthOption {
	return func(m *AuthMiddleware) { m.trustCaller = true }
}

// NewAuthMiddleware creates a new authentication middleware. publicKey may be
// nil when only trusted caller headers are accepted.
func NewAuthMiddleware(publicKey interface{}, logger *logging.Logger, skipPaths []string, opts ...AuthOption) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}

	m := &AuthMiddleware{
		publicKey: publicKey,
		logger:    logger,
		skipPaths: skip,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadPublicKey reads a PEM encoded RSA public key.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return key, nil
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if caller := r.Header.Get(httputil.CallerHeader); m.trustCaller && caller != "" {
				ctx := logging.WithUserID(r.Context(), caller)
				m.logger.WithContext(ctx).WithField("user_id", caller).Debug("Trusted caller header accepted")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			m.respondError(w, r, errors.Unauthorized("Missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			m.respondError(w, r, errors.Unauthorized("Invalid Authorization header format"))
			return
		}

		claims, err := m.validateToken(parts[1])
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("Token validation failed")
			m.respondError(w, r, err)
			return
		}

		ctx := logging.WithUserID(r.Context(), claims.UserID)
		if claims.Role != "" {
			ctx = context.WithValue(ctx, logging.RoleKey, claims.Role)
		}

		m.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"user_id":     claims.UserID,
			"auth_method": claims.AuthMethod,
		}).Debug("Authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateToken validates a JWT token and returns claims
func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	if m.publicKey == nil {
		return nil, errors.Unauthorized("Bearer tokens are not accepted")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return m.publicKey, nil
	})
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, errors.InvalidToken(nil)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "invalid claims type")
	}
	if claims.UserID == "" {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "missing user_id claim")
	}
	return claims, nil
}

// respondError sends an error response
func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed", err)
	}

	httputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Authentication failed")
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}

// GetUserRole extracts user role from context
func GetUserRole(ctx context.Context) string {
	return logging.GetRole(ctx)
}

// RequireUserID middleware ensures user ID is present in context
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			httputil.Unauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
