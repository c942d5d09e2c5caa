package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/yoockh/yoolisten/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

type operatorClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTAuth checks an HS256 bearer token signed with secret. When roles are
// given, the token's "role" claim must be one of them. An empty secret
// disables the check.
func JWTAuth(secret string, roles ...string) gin.HandlerFunc {
	allow := map[string]struct{}{}
	for _, r := range roles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			allow[r] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if !strings.HasPrefix(auth, "Bearer ") || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "missing bearer token",
			})
			return
		}

		claims := &operatorClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || tok == nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "invalid token",
			})
			return
		}

		role := strings.ToLower(strings.TrimSpace(claims.Role))
		if len(allow) > 0 {
			if _, ok := allow[role]; !ok {
				c.AbortWithStatusJSON(http.StatusForbidden, apiError{
					Code:    utils.CodeForbidden,
					Message: "forbidden",
				})
				return
			}
		}

		c.Set("subject", claims.Subject)
		c.Set("role", role)
		c.Next()
	}
}
