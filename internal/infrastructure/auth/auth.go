package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrSecretRequired = errors.New("auth: jwt secret required")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrMissingToken   = errors.New("auth: missing bearer token")
)

// userIDKey is the gin context key holding the authenticated subject.
const userIDKey = "auth.user_id"

// Verifier checks HS256 access tokens issued by the hosted auth provider.
// Token issuance lives with the provider; this service only reads the subject.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// VerifyToken parses token and returns its claims when the signature and expiry hold.
func (v *Verifier) VerifyToken(token string) (*jwt.RegisteredClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Middleware rejects requests without a valid token and stores the subject
// for downstream handlers. Browsers cannot set headers on websocket upgrades,
// so the access_token query parameter is accepted as well.
func Middleware(v *Verifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}

		claims, err := v.VerifyToken(token)
		if err != nil {
			if log != nil {
				log.Debug("rejected access token", zap.Error(err), zap.String("path", c.FullPath()))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" when the middleware did not run.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// WithUserID stores id as the authenticated user. Intended for handlers mounted
// behind a different authentication scheme and for tests.
func WithUserID(c *gin.Context, id string) {
	c.Set(userIDKey, id)
}

func tokenFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
