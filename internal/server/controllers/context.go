package controllers

import (
	"log/slog"
	"net/http"

	"github.com/USA-RedDragon/crashula/internal/config"
	"github.com/USA-RedDragon/crashula/internal/db/models"
	"github.com/USA-RedDragon/crashula/internal/events"
	"github.com/USA-RedDragon/crashula/internal/metrics"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func currentUser(c *gin.Context) *models.User {
	user, ok := c.Get("user")
	if !ok {
		return nil
	}
	u, _ := user.(*models.User)
	return u
}

// page adds the values every layout needs to data.
func page(c *gin.Context, title string, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["PageTitle"] = title
	if user := currentUser(c); user != nil {
		data["CurrentUser"] = user
	}
	if cfg, ok := c.Get("config"); ok {
		if config, ok := cfg.(*config.Config); ok {
			data["RegistrationEnabled"] = config.Registration.Enabled
		}
	}
	return data
}

func renderNotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "404.html", page(c, "Not Found", nil))
}

func renderServerError(c *gin.Context, msg string, err error) {
	slog.Error(msg, "path", c.Request.URL.Path, "error", err)
	c.HTML(http.StatusInternalServerError, "500.html", page(c, "Server Error", nil))
}

func getDB(c *gin.Context) (*gorm.DB, bool) {
	db, ok := c.MustGet("db").(*gorm.DB)
	if !ok {
		renderServerError(c, "Failed to get db from context", nil)
	}
	return db, ok
}

func getConfig(c *gin.Context) (*config.Config, bool) {
	config, ok := c.MustGet("config").(*config.Config)
	if !ok {
		renderServerError(c, "Failed to get config from context", nil)
	}
	return config, ok
}

func getMetrics(c *gin.Context) *metrics.Metrics {
	m, _ := c.MustGet("metrics").(*metrics.Metrics)
	return m
}

func publish(c *gin.Context, eventType events.EventType, report models.CrashReport) {
	bus, _ := c.MustGet("events").(*events.EventBus)
	bus.Publish(events.ReportEvent{
		Type:      eventType,
		ReportID:  report.ID,
		UserID:    report.UserID,
		Username:  report.User.Username,
		VersionID: report.VersionID,
		Title:     report.Title,
		Count:     report.Count,
	})
}

// postForm returns the parsed url-encoded body.
func postForm(c *gin.Context) (map[string][]string, error) {
	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	return c.Request.PostForm, nil
}
