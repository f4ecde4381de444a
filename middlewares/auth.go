package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"eventreg/utils"
)

// Authenticate accepts the token raw or as "Bearer <token>" and puts the admin id
// into the context as "userId".
func Authenticate(tokens *utils.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.Request.Header.Get("Authorization"), "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized."})
			return
		}
		userId, err := tokens.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized."})
			return
		}
		c.Set("userId", userId)
		c.Next()
	}
}
