package app

import (
	"time"

	"marketplace_backend/docs"
	"marketplace_backend/internal/config"
	"marketplace_backend/internal/middleware"
	"marketplace_backend/pkg/monitoring"
	"marketplace_backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	router.Use(middleware.ConfigMiddleware(cfg))

	api := router.Group("/api")
	api.GET("/health", c.health.HealthCheck)

	// 课程管理器 / BPP 回调
	webhook := api.Group("/webhook")
	webhook.Use(middleware.WebhookAuth())
	{
		webhook.POST("/confirm", c.webhook.ConfirmPurchase)
		webhook.POST("/complete", c.webhook.CompleteCourse)
	}

	consumer := api.Group("/consumer")
	consumer.Use(middleware.AuthMiddleware(),
		security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute, security.ConsumerOrIPKey))
	{
		consumer.POST("", c.consumer.Signup)

		// 课程发现，不区分消费者
		consumer.GET("/course/search", c.course.Search)
		consumer.GET("/course/search/poll/:messageId", c.course.PollSearch)
		consumer.GET("/course/popular", c.course.Popular)
		consumer.GET("/course/:courseId", c.course.View)

		a.registerConsumerRoutes(consumer.Group("/:consumerId", middleware.ConsumerScope()), c)
	}
}

func (a *App) registerConsumerRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("", c.consumer.GetAccountDetails)
	rg.POST("/request", c.consumer.RequestCredits)

	// 购买记录
	rg.GET("/course/purchases", c.consumer.GetPurchases)
	rg.GET("/course/ongoing", c.consumer.GetOngoing)

	// 收藏
	rg.POST("/course/save", c.consumer.SaveCourse)
	rg.PATCH("/course/unsave", c.consumer.UnsaveCourse)
	rg.POST("/course/save/status", c.consumer.CheckSaved)
	rg.GET("/course/saved", c.consumer.GetSaved)
	rg.PATCH("/course/saved/:courseInfoId/toggle", c.consumer.ToggleSaved)

	// 钱包
	rg.GET("/wallet/credits", c.consumer.GetWalletCredits)
	rg.GET("/wallet/transactions", c.consumer.GetWalletTransactions)

	// 购买 / 完成 / 评价
	rg.POST("/course/purchase", c.purchase.PurchaseCourse)
	rg.POST("/course/purchase/reverse", c.purchase.ReversePurchase)
	rg.POST("/course/purchase/status", c.purchase.GetPurchaseStatus)
	rg.PATCH("/course/complete", c.purchase.CompleteCourse)
	rg.PATCH("/course/feedback", c.purchase.GiveFeedback)

	// 通知
	rg.GET("/notifications", c.notification.List)
	rg.POST("/notifications", c.notification.Create)
	rg.PATCH("/notifications/:notificationId", c.notification.MarkViewed)
}
