// utils/auth.go
package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// HandlerIDKey is the gin context key holding the authenticated staff id.
const HandlerIDKey = "handlerId"

// Generate JWT secret key (run once initially)
func GenerateJWTSecret() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// GenerateToken issues a staff token whose subject is the staff id.
func GenerateToken(staffID uint, ttl time.Duration, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("JWT_SECRET not set")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(staffID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}

// Auth middleware
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			RespondWithError(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		if len(tokenString) > 7 && strings.ToUpper(tokenString[0:6]) == "BEARER" {
			tokenString = tokenString[7:]
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || secret == "" {
			RespondWithError(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		id, err := strconv.ParseUint(claims.Subject, 10, 0)
		if err != nil || id == 0 {
			RespondWithError(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}
		c.Set(HandlerIDKey, uint(id))

		c.Next()
	}
}

// HandlerID returns the authenticated staff id, or nil on public routes.
func HandlerID(c *gin.Context) *uint {
	v, ok := c.Get(HandlerIDKey)
	if !ok {
		return nil
	}
	id, ok := v.(uint)
	if !ok {
		return nil
	}
	return &id
}
