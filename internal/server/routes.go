package server

import (
	"github.com/USA-RedDragon/crashula/internal/config"
	"github.com/USA-RedDragon/crashula/internal/server/controllers"
	"github.com/gin-gonic/gin"
)

func applyRoutes(r *gin.Engine, config *config.Config) {
	r.GET("/health", controllers.GETHealth)

	r.GET("/", controllers.GETIndex)
	r.GET("/login/", controllers.GETLogin)
	r.POST("/login/", controllers.POSTLogin)
	r.POST("/logout/", controllers.POSTLogout)
	r.GET("/register/", controllers.GETRegister)
	r.POST("/register/", controllers.POSTRegister)

	r.GET("/versions/", requireLoginJSON(), controllers.GETVersions)

	users := r.Group("/u/:username")
	users.GET("/", controllers.GETUserCrashReports)
	users.GET("/new/", requireLogin(), controllers.GETNewCrashReport)
	users.POST("/new/", requireLogin(), controllers.POSTNewCrashReport)
	users.GET("/:id/", controllers.GETCrashReport)
	users.GET("/:id/edit/", requireLogin(), controllers.GETEditCrashReport)
	users.POST("/:id/edit/", requireLogin(), controllers.POSTEditCrashReport)
	users.POST("/:id/logs/", requireLogin(), uploadLimit(config), controllers.POSTCrashLog)
	users.GET("/:id/logs/:log_id/", controllers.GETCrashLog)

	r.NoRoute(controllers.NoRoute)
}
