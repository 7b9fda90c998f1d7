package middleware

import (
	"net/http"

	"khoomi-api-io/taxonomy/internal/auth"
	"khoomi-api-io/taxonomy/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const ClaimsKey = "claims"

var errAdminRequired = errors.New("insufficient permissions: admin access required")

// AdminOnly middleware restricts access to Super and Mod users only
func AdminOnly(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claim, err := tokens.ValidateToken(auth.ExtractToken(c))
		if err != nil {
			util.HandleError(c, http.StatusUnauthorized, err)
			c.Abort()
			return
		}

		if !claim.IsAdmin() {
			util.HandleError(c, http.StatusForbidden, errAdminRequired)
			c.Abort()
			return
		}

		c.Set(ClaimsKey, claim)
		c.Next()
	}
}
