package middleware

import (
	"crypto/subtle"
	"strings"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/util"
	"marketplace_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConfigMiddleware 把运行配置注入请求上下文
func ConfigMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(util.ContextConfigKey, cfg)
		c.Next()
	}
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		cfg := c.MustGet(util.ContextConfigKey).(*config.Config)
		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT rejected", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set(util.ContextClaimsKey, claims)
		c.Next()
	}
}

// ConsumerScope 令牌主体必须与路径中的 consumerId 一致
func ConsumerScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := util.GetClaimsFromContext(c)
		if claims == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		if id := c.Param("consumerId"); id != "" && id != claims.ConsumerID() {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// WebhookAuth 课程管理器回调使用共享 API Key
func WebhookAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := c.MustGet(util.ContextConfigKey).(*config.Config)
		key := c.GetHeader(util.HeaderAPIKey)
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(cfg.Webhook.APIKey)) != 1 {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
