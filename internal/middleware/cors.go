package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS applies the origin allow-list to browser requests. Disallowed origins get
// 403 from gin-contrib/cors before reaching a handler.
func CORS(allowed func(origin string) bool) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  allowed,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		AllowWebSockets:  true,
		MaxAge:           12 * time.Hour,
	})
}
