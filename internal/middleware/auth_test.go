package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/presale_layer/internal/logging"
)

func generateTestKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	return privateKey, &privateKey.PublicKey
}

func generateTestToken(t *testing.T, privateKey *rsa.PrivateKey, userID string, expired bool) string {
	claims := &Claims{
		UserID:     userID,
		AuthMethod: "test",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	if expired {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tokenString, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	return tokenString
}

func TestNewAuthMiddleware(t *testing.T) {
	_, publicKey := generateTestKeys(t)
	logger := logging.New("test", "info", "json")
	skipPaths := []string{"/health", "/metrics"}

	middleware := NewAuthMiddleware(publicKey, logger, skipPaths)

	if middleware == nil {
		t.Fatal("NewAuthMiddleware() returned nil")
	}

	if middleware.publicKey != publicKey {
		t.Error("publicKey not set correctly")
	}

	if middleware.logger != logger {
		t.Error("logger not set correctly")
	}

	if len(middleware.skipPaths) != 2 {
		t.Errorf("skipPaths length = %d, want 2", len(middleware.skipPaths))
	}

	if !middleware.skipPaths["/health"] {
		t.Error("skipPaths does not contain /health")
	}
}

func TestAuthMiddleware_Handler_SkipPaths(t *testing.T) {
	_, publicKey := generateTestKeys(t)
	logger := logging.New("test", "info", "json")
	skipPaths := []string{"/health"}

	middleware := NewAuthMiddleware(publicKey, logger, skipPaths)

	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_Handler_MissingAuthHeader(t *testing.T) {
	_, publicKey := generateTestKeys(t)
	logger := logging.New("test", "info", "json")

	middleware := NewAuthMiddleware(publicKey, logger, nil)

	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_Handler_InvalidAuthHeaderFormat(t *testing.T) {
	_, publicKey := generateTestKeys(t)
	logger := logging.New("test", "info", "json")

	middleware := NewAuthMiddleware(publicKey, logger, nil)

	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"wrong prefix", "Basic token123"},
		{"empty token", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/test", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_Handler_ValidToken(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)
	logger := logging.New("test", "info", "json")

	middleware := NewAuthMiddleware(publicKey, logger, nil)

	var capturedUserID string
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token := generateTestToken(t, privateKey, "user-123", false)

	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}

	if capturedUserID != "user-123" {
		t.Errorf("User ID = %v, want user-123", capturedUserID)
	}
}

func TestAuthMiddleware_Handler_ExpiredToken(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)
	logger := logging.New("test", "info", "json")

	middleware := NewAuthMiddleware(publicKey, logger, nil)

	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	token := generateTestToken(t, privateKey, "user-123", true)

	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_Handler_InvalidToken(t *testing.T) {
	_, publicKey := generateTestKeys(t)
	logger := logging.New("test", "info", "json")

	middleware := NewAuthMiddleware(publicKey, logger, nil)

	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Authorization", "Bearer invalid.token.here")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_Handler_WrongSigningKey(t *testing.T) {
	privateKey1, _ := generateTestKeys(t)
	_, publicKey2 := generateTestKeys(t)
	logger := logging.New("test", "info", "json")

	// Create middleware with publicKey2
	middleware := NewAuthMiddleware(publicKey2, logger, nil)

	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Generate token with privateKey1
	token := generateTestToken(t, privateKey1, "user-123", false)

	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_validateToken(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)
	logger := logging.New("test", "info", "json")

	middleware := NewAuthMiddleware(publicKey, logger, nil)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{
			name:    "valid token",
			token:   generateTestToken(t, privateKey, "user-123", false),
			wantErr: false,
		},
		{
			name:    "expired token",
			token:   generateTestToken(t, privateKey, "user-123", true),
			wantErr: true,
		},
		{
			name:    "invalid token",
			token:   "invalid.token.here",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := middleware.validateToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && claims == nil {
				t.Error("validateToken() returned nil claims without error")
			}

			if !tt.wantErr && claims.UserID != "user-123" {
				t.Errorf("UserID = %v, want user-123", claims.UserID)
			}
		})
	}
}

func TestGetUserID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{
			name: "with user ID",
			ctx:  logging.WithUserID(context.Background(), "user-123"),
			want: "user-123",
		},
		{
			name: "without user ID",
			ctx:  context.Background(),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetUserID(tt.ctx); got != tt.want {
				t.Errorf("GetUserID() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequireUserID(t *testing.T) {
	handler := RequireUserID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		ctx        context.Context
		wantStatus int
	}{
		{
			name:       "with user ID",
			ctx:        logging.WithUserID(context.Background(), "user-123"),
			wantStatus: http.StatusOK,
		},
		{
			name:       "without user ID",
			ctx:        context.Background(),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/test", nil)
			req = req.WithContext(tt.ctx)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthMiddleware_Handler_PreservesTraceID(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)
	logger := logging.New("test", "info", "json")

	middleware := NewAuthMiddleware(publicKey, logger, nil)

	var capturedTraceID string
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedTraceID = logging.GetTraceID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token := generateTestToken(t, privateKey, "user-123", false)

	req := httptest.NewRequest("GET", "/api/test", nil)
	ctx := logging.WithTraceID(req.Context(), "trace-456")
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}

	if capturedTraceID != "trace-456" {
		t.Errorf("Trace ID = %v, want trace-456", capturedTraceID)
	}
}

func TestAuthMiddleware_Handler_TrustedCallerHeader(t *testing.T) {
	logger := logging.NewDiscard("test")

	var captured string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		trust      bool
		wantStatus int
		wantCaller string
	}{
		{"trusted", true, http.StatusOK, "alice"},
		{"not trusted", false, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captured = ""
			var opts []AuthOption
			if tt.trust {
				opts = append(opts, WithTrustedCallerHeader())
			}
			handler := NewAuthMiddleware(nil, logger, nil, opts...).Handler(next)

			req := httptest.NewRequest("POST", "/v1/stake", nil)
			req.Header.Set("X-Caller-ID", "alice")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.wantStatus)
			}
			if captured != tt.wantCaller {
				t.Errorf("User ID = %q, want %q", captured, tt.wantCaller)
			}
		})
	}
}

func TestAuthMiddleware_Handler_BearerWithoutKey(t *testing.T) {
	privateKey, _ := generateTestKeys(t)
	handler := NewAuthMiddleware(nil, logging.NewDiscard("test"), nil, WithTrustedCallerHeader()).
		Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest("GET", "/v1/sales", nil)
	req.Header.Set("Authorization", "Bearer "+generateTestToken(t, privateKey, "user-123", false))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_validateToken_MissingUserID(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)
	middleware := NewAuthMiddleware(publicKey, logging.NewDiscard("test"), nil)

	if _, err := middleware.validateToken(generateTestToken(t, privateKey, "", false)); err == nil {
		t.Error("validateToken() should reject a token without user_id")
	}
}

func TestLoadPublicKey(t *testing.T) {
	_, publicKey := generateTestKeys(t)
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "jwt.pub")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	loaded, err := LoadPublicKey(path)
	if err != nil {
		t.Fatalf("LoadPublicKey() error = %v", err)
	}
	if !loaded.Equal(publicKey) {
		t.Error("loaded key does not match")
	}

	if _, err := LoadPublicKey(filepath.Join(t.TempDir(), "missing.pub")); err == nil {
		t.Error("LoadPublicKey() should fail for a missing file")
	}
}
