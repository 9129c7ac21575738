package middleware

import (
	"net/http"
	"strings"

	"lakra-backend/internal/models"
	"lakra-backend/internal/services"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// JWTAuth validates the bearer token and loads the caller. Deactivated accounts are
// rejected even while their token is still valid.
func JWTAuth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		userID, err := authService.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		user, err := authService.GetUser(c.Request.Context(), userID)
		if err != nil || !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account not found or deactivated"})
			return
		}

		c.Set("user_id", user.ID)
		c.Set(principalKey, user)
		c.Next()
	}
}

// Principal returns the user loaded by JWTAuth.
func Principal(c *gin.Context) *models.User {
	if v, ok := c.Get(principalKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

func RequireAdmin() gin.HandlerFunc {
	return require("admin access required", func(u *models.User) bool {
		return u.IsAdmin
	})
}

// RequireEvaluator admits evaluators and admins.
func RequireEvaluator() gin.HandlerFunc {
	return require("evaluator access required", func(u *models.User) bool {
		return u.IsEvaluator || u.IsAdmin
	})
}

// RequireOnboarded admits users who passed proficiency or were exempted.
func RequireOnboarded() gin.HandlerFunc {
	return require("complete the onboarding test first", func(u *models.User) bool {
		return u.HasCompletedOnboarding() || u.IsAdmin
	})
}

func require(msg string, allowed func(*models.User) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := Principal(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !allowed(u) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msg})
			return
		}
		c.Next()
	}
}
