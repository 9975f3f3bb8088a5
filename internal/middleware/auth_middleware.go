package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "focusbot/internal/errors"
	"focusbot/internal/model"
	"focusbot/internal/service"
)

const (
	MemberIDContextKey = "memberID"
	MemberContextKey   = "member"
)

func Auth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			writeError(c, apperrors.Unauthorized("missing authorization header"))
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(c, apperrors.Unauthorized("invalid authorization format"))
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			writeError(c, apperrors.Unauthorized("invalid authorization format"))
			return
		}

		memberID, apiErr := authService.ParseToken(token)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}

		// Tokens outlive deleted members, so the member is looked up on every request.
		member, apiErr := authService.Member(c.Request.Context(), memberID)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}

		c.Set(MemberIDContextKey, memberID)
		c.Set(MemberContextKey, member)
		c.Next()
	}
}

func MemberID(c *gin.Context) string {
	value, ok := c.Get(MemberIDContextKey)
	if !ok {
		return ""
	}
	memberID, ok := value.(string)
	if !ok {
		return ""
	}
	return memberID
}

func CurrentMember(c *gin.Context) *model.Member {
	value, ok := c.Get(MemberContextKey)
	if !ok {
		return nil
	}
	member, ok := value.(*model.Member)
	if !ok {
		return nil
	}
	return member
}

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	c.AbortWithStatusJSON(apiErr.Status, gin.H{
		"error": gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
			"details": apiErr.Details,
		},
	})
}
