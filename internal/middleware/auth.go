package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"convertflow/internal/config"
	"convertflow/internal/domain"
)

const (
	ContextKeyUserID        = "user_id"
	ContextKeyAuthenticated = "authenticated"
	ContextKeyAdmin         = "admin"
	ContextKeyClaims        = "claims"
)

// Claims are the fields read from identity-provider tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin,omitempty"`
}

// TokenVerifier validates HS256 bearer tokens minted by the identity provider.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a TokenVerifier. An empty issuer is not checked.
func NewTokenVerifier(cfg config.JWTConfig) *TokenVerifier {
	return &TokenVerifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
}

// Verify parses and validates a token string.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": "UNAUTHORIZED", "message": msg},
	})
}

func setIdentity(c *gin.Context, claims *Claims) {
	c.Set(ContextKeyUserID, claims.Subject)
	c.Set(ContextKeyAuthenticated, true)
	c.Set(ContextKeyAdmin, claims.Admin)
	c.Set(ContextKeyClaims, claims)
}

// OptionalAuth identifies the caller when a bearer token is present. A
// request without a token proceeds anonymously; a present but invalid token
// is rejected rather than silently downgraded to anonymous.
func OptionalAuth(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Set(ContextKeyAuthenticated, false)
			c.Next()
			return
		}
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "missing or invalid authorization header")
			return
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// RequireAuth validates the bearer token and rejects anonymous requests.
func RequireAuth(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "missing or invalid authorization header")
			return
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": "FORBIDDEN", "message": "insufficient permissions"},
			})
			return
		}
		c.Next()
	}
}

// GetUserID extracts the user ID from the Gin context.
func GetUserID(c *gin.Context) (string, error) {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return "", domain.ErrUnauthorized
	}
	id, ok := val.(string)
	if !ok || id == "" {
		return "", errors.New("middleware: malformed user id in context")
	}
	return id, nil
}

// IsAuthenticated reports whether the request carried a valid token.
func IsAuthenticated(c *gin.Context) bool {
	return c.GetBool(ContextKeyAuthenticated)
}

// IsAdmin reports whether the caller's token carries the admin claim.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ContextKeyAdmin)
}
