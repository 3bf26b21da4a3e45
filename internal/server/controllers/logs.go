package controllers

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/USA-RedDragon/crashula/internal/db/models"
	"github.com/USA-RedDragon/crashula/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxFileNameLength = 255

// crashLogKey is relative to the crash log store.
func crashLogKey(reportID uint) string {
	return fmt.Sprintf("%d/%s.zst", reportID, uuid.NewString())
}

func cleanFileName(name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		name = "crash.log"
	}
	if len(name) > maxFileNameLength {
		name = name[len(name)-maxFileNameLength:]
	}
	return name
}

func POSTCrashLog(c *gin.Context) {
	user, ok := actingOwner(c)
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	config, ok := getConfig(c)
	if !ok {
		return
	}
	store, ok := c.MustGet("storage").(storage.Storage)
	if !ok || store == nil {
		renderServerError(c, "Failed to get storage from context", nil)
		return
	}
	report, ok := findOwnedReport(c, db, user)
	if !ok {
		return
	}

	tooLarge := fmt.Sprintf("Crash logs may be at most %d bytes.", config.Persistence.Uploads.MaxSize)
	header, err := c.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			renderDetail(c, db, http.StatusOK, *user, report, tooLarge)
			return
		}
		renderDetail(c, db, http.StatusOK, *user, report, "Choose a crash log to upload.")
		return
	}
	if header.Size > config.Persistence.Uploads.MaxSize {
		renderDetail(c, db, http.StatusOK, *user, report, tooLarge)
		return
	}
	file, err := header.Open()
	if err != nil {
		renderServerError(c, "Failed to open upload", err)
		return
	}
	defer file.Close()

	key := crashLogKey(report.ID)
	size, err := storage.WriteCompressed(c.Request.Context(), store, key, file, config.Persistence.Uploads.MaxSize)
	if errors.Is(err, storage.ErrTooLarge) {
		renderDetail(c, db, http.StatusOK, *user, report, tooLarge)
		return
	}
	if err != nil {
		renderServerError(c, "Failed to store crash log", err)
		return
	}

	_, err = models.CreateCrashLog(db, report.ID, cleanFileName(header.Filename), key, size)
	if err != nil {
		if rmErr := store.Remove(c.Request.Context(), key); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
		renderServerError(c, "Failed to record crash log", err)
		return
	}

	getMetrics(c).IncrementLogsUploaded()
	c.Redirect(http.StatusFound, reportURL(user.Username, report.ID))
}

func GETCrashLog(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}
	store, ok := c.MustGet("storage").(storage.Storage)
	if !ok || store == nil {
		renderServerError(c, "Failed to get storage from context", nil)
		return
	}
	owner, ok := ownerFromPath(c, db)
	if !ok {
		return
	}
	reportID, ok := reportIDParam(c, "id")
	if !ok {
		return
	}
	logID, ok := reportIDParam(c, "log_id")
	if !ok {
		return
	}

	report, err := models.FindUserCrashReport(db, owner.ID, reportID)
	if err == nil {
		var log models.CrashLog
		log, err = models.FindCrashLog(db, report.ID, logID)
		if err == nil {
			serveCrashLog(c, store, log)
			return
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		renderNotFound(c)
		return
	}
	renderServerError(c, "Failed to find crash log", err)
}

func serveCrashLog(c *gin.Context, store storage.Storage, log models.CrashLog) {
	reader, err := storage.OpenDecompressed(c.Request.Context(), store, log.ObjectKey)
	if errors.Is(err, fs.ErrNotExist) {
		renderNotFound(c)
		return
	}
	if err != nil {
		renderServerError(c, "Failed to open crash log", err)
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, log.Size, "application/octet-stream", reader, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": log.FileName}),
	})
}
