package controllers

import (
	"log/slog"
	"net/http"

	"github.com/USA-RedDragon/crashula/internal/db/models"
	"github.com/USA-RedDragon/crashula/internal/server/apimodels"
	"github.com/gin-gonic/gin"
	"github.com/mattn/go-nulltype"
	"gorm.io/gorm"
)

func GETVersions(c *gin.Context) {
	db, ok := c.MustGet("db").(*gorm.DB)
	if !ok {
		slog.Error("Failed to get db from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}

	apps, err := models.ListApplicationsWithVersions(db)
	if err != nil {
		slog.Error("Failed to list applications", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}

	resp := make([]apimodels.ApplicationVersions, 0, len(apps))
	for _, app := range apps {
		entry := apimodels.ApplicationVersions{
			Name:     app.Name,
			Versions: make([]apimodels.Version, 0, len(app.Versions)),
		}
		if app.Company != nil {
			entry.Company = nulltype.NullStringOf(app.Company.Name)
		}
		for _, version := range app.Versions {
			entry.Versions = append(entry.Versions, apimodels.Version{
				Marketing: version.Marketing,
				Build:     version.Build,
			})
		}
		resp = append(resp, entry)
	}

	c.JSON(http.StatusOK, resp)
}
