package mw

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"dorm-allocation-backend/internal/auth"
)

const requestContextKey = "request_context"

// Claims are the JWT claims issued by the identity service.
type Claims struct {
	UserID      int64     `json:"user_id"`
	Role        auth.Role `json:"role"`
	FacultyID   *int64    `json:"faculty_id,omitempty"`
	DormitoryID *int64    `json:"dormitory_id,omitempty"`
	jwt.RegisteredClaims
}

// RequestContext converts the claims into the caller identity.
func (c *Claims) RequestContext() auth.RequestContext {
	return auth.RequestContext{
		UserID:      c.UserID,
		Role:        c.Role,
		FacultyID:   c.FacultyID,
		DormitoryID: c.DormitoryID,
	}
}

// TokenAuthority signs and verifies HS256 tokens.
type TokenAuthority struct {
	secret []byte
	issuer string
}

// NewTokenAuthority creates a token authority. An empty issuer disables the
// issuer check.
func NewTokenAuthority(secret, issuer string) *TokenAuthority {
	return &TokenAuthority{secret: []byte(secret), issuer: issuer}
}

// IssueToken signs a token for rc valid for ttl.
func (a *TokenAuthority) IssueToken(rc auth.RequestContext, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:      rc.UserID,
		Role:        rc.Role,
		FacultyID:   rc.FacultyID,
		DormitoryID: rc.DormitoryID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   fmt.Sprint(rc.UserID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken verifies a token and returns its claims.
func (a *TokenAuthority) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.Role.Valid() || claims.UserID <= 0 {
		return nil, fmt.Errorf("token carries unknown role %q", claims.Role)
	}
	return claims, nil
}

// Auth requires a valid bearer token and stores the caller identity on the
// gin context.
func Auth(a *TokenAuthority) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is missing"})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be a bearer token"})
			return
		}

		claims, err := a.ParseToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(requestContextKey, claims.RequestContext())
		c.Next()
	}
}

// RequireRole lets only the listed roles through. Super administrators
// always pass.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := RequestContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "caller is not authenticated"})
			return
		}
		if rc.IsSuperAdmin() {
			c.Next()
			return
		}
		for _, role := range roles {
			if rc.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}

// RequestContext returns the caller identity stored by Auth.
func RequestContext(c *gin.Context) (auth.RequestContext, bool) {
	v, ok := c.Get(requestContextKey)
	if !ok {
		return auth.RequestContext{}, false
	}
	rc, ok := v.(auth.RequestContext)
	return rc, ok
}
