package api

import (
	"net/http"

	"Bazaar/internal/api/config"
	"Bazaar/internal/api/middleware"
	"Bazaar/internal/pkg/logger"
	"Bazaar/internal/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(group *HandlersGroup, logCfg config.LogConfig) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r, logCfg)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    200,
				"message": "pong",
				"data":    nil,
			})
		})

		postGroup := apiGroup.Group("/posts")
		{
			// 非作者只能看到已发布帖子
			authOptGroup := postGroup.Group("")
			authOptGroup.Use(middleware.AuthOptionalMiddleware())
			{
				authOptGroup.GET("", group.PostHandler.ListFeed)
				authOptGroup.GET("/:id", group.PostHandler.GetPost)
			}

			authGroup := postGroup.Group("")
			authGroup.Use(middleware.AuthMiddleware())
			{
				authGroup.POST("", group.PostHandler.CreatePost)
				authGroup.POST("/check-spam", group.PostHandler.CheckSpam)
				authGroup.GET("/:id/moderation-status", group.PostHandler.GetModerationStatus)
				authGroup.PATCH("/:id/status", group.PostHandler.UpdatePostStatus)
				authGroup.DELETE("/:id", group.PostHandler.DeletePost)
			}
		}

		myGroup := apiGroup.Group("/myposts")
		myGroup.Use(middleware.AuthMiddleware())
		{
			myGroup.GET("", group.PostHandler.ListMyPosts)
		}

		// 需要登录 & 拥有 admin 或 moderator 角色
		ruleGroup := apiGroup.Group("/moderation/rules")
		ruleGroup.Use(middleware.AuthMiddleware(), middleware.CheckRoles(security.RoleAdmin, security.RoleModerator))
		{
			ruleGroup.GET("", group.RuleHandler.GetRules)
			ruleGroup.POST("/keywords", group.RuleHandler.AddKeyword)
			ruleGroup.DELETE("/keywords", group.RuleHandler.RemoveKeyword)
			ruleGroup.PUT("/thresholds", group.RuleHandler.SetTextThresholds)
		}
	}

	return r
}
