// Package identity establishes caller identities for the ledger API.
//
// A caller is an Ed25519 public key, rendered as 64 lowercase hex characters.
// To prove possession of the corresponding private key, the caller presents a
// short-lived bearer JWT self-signed with EdDSA whose "sub" claim names the
// public key. The middleware verifies the token against that key and injects
// the identity into the request context; the state machine then compares it
// to registration authorities.
package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// callerCtxKey is the gin context key holding the verified caller identity.
const callerCtxKey = "sensorledger_caller"

// DefaultTokenTTL is the lifetime of CLI-issued bearer tokens.
const DefaultTokenTTL = 10 * time.Minute

// CallerClaims are the JWT claims of a self-signed caller token. Subject is
// the hex-encoded Ed25519 public key the token is signed with.
type CallerClaims struct {
	jwt.RegisteredClaims
}

// IssueToken mints a bearer token proving possession of priv. ttl defaults
// to DefaultTokenTTL when zero.
func IssueToken(priv ed25519.PrivateKey, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return "", fmt.Errorf("not an ed25519 key")
	}

	now := time.Now().UTC()
	claims := CallerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   hex.EncodeToString(pub),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses a caller token and returns the hex identity it proves.
// The verification key is the public key named in the token's own subject, so
// a valid signature demonstrates possession of the matching private key.
func VerifyToken(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&CallerClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			claims, ok := tok.Claims.(*CallerClaims)
			if !ok {
				return nil, fmt.Errorf("unexpected claims type")
			}
			raw, err := hex.DecodeString(claims.Subject)
			if err != nil || len(raw) != ed25519.PublicKeySize {
				return nil, fmt.Errorf("subject is not a 32-byte hex ed25519 key")
			}
			return ed25519.PublicKey(raw), nil
		},
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(*CallerClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	return strings.ToLower(claims.Subject), nil
}

// RequireCaller is a gin middleware that rejects requests without a valid
// caller token and injects the verified identity into the context.
func RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		caller, err := VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}
		c.Set(callerCtxKey, caller)
		c.Next()
	}
}

// CallerFromCtx returns the verified caller identity, or "" when the request
// carried no valid token.
func CallerFromCtx(c *gin.Context) string {
	return c.GetString(callerCtxKey)
}
