package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret []byte
	Issuer    string
}

// Claims represents JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// AuthMiddleware verifies HS256 bearer tokens
type AuthMiddleware struct {
	config AuthConfig
	tracer trace.Tracer
	now    func() time.Time
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(config AuthConfig) *AuthMiddleware {
	return &AuthMiddleware{
		config: config,
		tracer: otel.Tracer("api.rest.auth"),
		now:    time.Now,
	}
}

// RequireRole rejects requests without a valid token carrying role
func (a *AuthMiddleware) RequireRole(role string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := a.tracer.Start(r.Context(), "auth.middleware",
				trace.WithAttributes(attribute.String("required_role", role)),
			)
			defer span.End()

			token, err := extractToken(r)
			if err != nil {
				span.RecordError(err)
				writeErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header", nil)
				return
			}

			claims, err := a.validateToken(token)
			if err != nil {
				span.RecordError(err)
				writeErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token", nil)
				return
			}

			if claims.Role != role {
				writeErrorCode(w, r, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
				return
			}

			span.SetAttributes(
				attribute.String("subject", claims.Subject),
				attribute.String("role", claims.Role),
			)

			next.ServeHTTP(w, r.WithContext(withClaims(ctx, claims)))
		})
	}
}

// GenerateToken issues a signed token for subject with the given role
func (a *AuthMiddleware) GenerateToken(subject, role string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.config.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.config.JWTSecret)
}

func (a *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.config.JWTSecret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func extractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}
