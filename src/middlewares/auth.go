package middlewares

import (
	"errors"
	"eventix/src/types"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthMiddleware accepts HS256 bearer tokens whose subject is the user id.
func AuthMiddleware(secret string) gin.HandlerFunc {
	jwtKey := []byte(secret)
	return func(ctx *gin.Context) {
		bearerToken := ctx.Request.Header.Get("Authorization")
		reqToken, ok := strings.CutPrefix(bearerToken, "Bearer ")
		if !ok || reqToken == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims := &types.Claims{}
		tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return jwtKey, nil
		})
		if err != nil || !tkn.Valid {
			zap.L().Debug("token error", zap.Error(err))
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		uid, err := uuid.Parse(claims.Subject)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
			return
		}
		role := types.Role(claims.Role)
		if role == "" {
			role = types.ROLE_CUSTOMER
		}
		ctx.Set("email", claims.Email)
		ctx.Set("id", uid)
		ctx.Set("role", role)
		ctx.Next()
	}
}

// GetPrincipal returns the caller set by AuthMiddleware.
func GetPrincipal(ctx *gin.Context) types.Principal {
	return types.Principal{
		ID:   ctx.MustGet("id").(uuid.UUID),
		Role: ctx.MustGet("role").(types.Role),
	}
}
