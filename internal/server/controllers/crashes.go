package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/USA-RedDragon/crashula/internal/db/models"
	"github.com/USA-RedDragon/crashula/internal/events"
	"github.com/USA-RedDragon/crashula/internal/server/forms"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func reportURL(username string, id uint) string {
	return fmt.Sprintf("/u/%s/%d/", username, id)
}

// ownerFromPath returns the user named in the path, rendering a 404 when
// there is none.
func ownerFromPath(c *gin.Context, db *gorm.DB) (models.User, bool) {
	owner, err := models.FindUserByUsername(db, c.Param("username"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		renderNotFound(c)
		return owner, false
	}
	if err != nil {
		renderServerError(c, "Failed to find user", err)
		return owner, false
	}
	return owner, true
}

// actingOwner returns the logged in user when the path names them. Any
// other username is a 404.
func actingOwner(c *gin.Context) (*models.User, bool) {
	user := currentUser(c)
	if user == nil || user.Username != c.Param("username") {
		renderNotFound(c)
		return nil, false
	}
	return user, true
}

func reportIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 0)
	if err != nil || id == 0 {
		renderNotFound(c)
		return 0, false
	}
	return uint(id), true
}

// findOwnedReport loads a report of the acting user. Reports of other users
// are indistinguishable from missing ones.
func findOwnedReport(c *gin.Context, db *gorm.DB, user *models.User) (models.CrashReport, bool) {
	id, ok := reportIDParam(c, "id")
	if !ok {
		return models.CrashReport{}, false
	}
	report, err := models.FindUserCrashReport(db, user.ID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		renderNotFound(c)
		return report, false
	}
	if err != nil {
		renderServerError(c, "Failed to find crash report", err)
		return report, false
	}
	return report, true
}

func GETUserCrashReports(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}
	owner, ok := ownerFromPath(c, db)
	if !ok {
		return
	}
	reports, err := models.ListUserCrashReports(db, owner.ID)
	if err != nil {
		renderServerError(c, "Failed to list crash reports", err)
		return
	}

	user := currentUser(c)
	c.HTML(http.StatusOK, "list.html", page(c, "Crashes reported by "+owner.Username, gin.H{
		"Owner":   owner,
		"Reports": reports,
		"IsOwner": user != nil && user.ID == owner.ID,
	}))
}

func renderDetail(c *gin.Context, db *gorm.DB, status int, owner models.User, report models.CrashReport, uploadError string) {
	logs, err := models.ListCrashLogs(db, report.ID)
	if err != nil {
		renderServerError(c, "Failed to list crash logs", err)
		return
	}
	user := currentUser(c)
	c.HTML(status, "detail.html", page(c, report.Title, gin.H{
		"Owner":       owner,
		"Report":      report,
		"Logs":        logs,
		"IsOwner":     user != nil && user.ID == owner.ID,
		"UploadError": uploadError,
	}))
}

func GETCrashReport(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}
	owner, ok := ownerFromPath(c, db)
	if !ok {
		return
	}
	id, ok := reportIDParam(c, "id")
	if !ok {
		return
	}
	report, err := models.FindUserCrashReport(db, owner.ID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		renderNotFound(c)
		return
	}
	if err != nil {
		renderServerError(c, "Failed to find crash report", err)
		return
	}
	renderDetail(c, db, http.StatusOK, owner, report, "")
}

func renderCrashForm(c *gin.Context, db *gorm.DB, action string, editing bool, form forms.CrashReportForm, errs forms.Errors) {
	apps, err := models.ListApplications(db)
	if err != nil {
		renderServerError(c, "Failed to list applications", err)
		return
	}
	title := "Report a crash"
	if editing {
		title = "Edit crash report"
	}
	c.HTML(http.StatusOK, "form.html", page(c, title, gin.H{
		"Form":         form,
		"Errors":       errs,
		"Applications": apps,
		"Kinds":        models.CrashKinds,
		"Action":       action,
		"Editing":      editing,
	}))
}

// bindCrashForm validates the submission, including that the chosen
// application exists.
func bindCrashForm(c *gin.Context, db *gorm.DB) (forms.CrashReportForm, forms.Errors, bool) {
	var form forms.CrashReportForm
	values, err := postForm(c)
	if err != nil {
		return form, forms.Errors{forms.NonFieldErrors: "Invalid form submission."}, true
	}
	errs := forms.Bind(values, &form)
	if _, ok := errs["application"]; !ok && form.Application != 0 {
		_, err := models.FindApplicationByID(db, form.Application)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errs.Add("application", "Select a valid choice. That choice is not one of the available choices.")
		} else if err != nil {
			renderServerError(c, "Failed to find application", err)
			return form, errs, false
		}
	}
	return form, errs, true
}

func GETNewCrashReport(c *gin.Context) {
	user, ok := actingOwner(c)
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	renderCrashForm(c, db, fmt.Sprintf("/u/%s/new/", user.Username), false, forms.NewCrashReportForm(), forms.Errors{})
}

func POSTNewCrashReport(c *gin.Context) {
	user, ok := actingOwner(c)
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	action := fmt.Sprintf("/u/%s/new/", user.Username)

	form, errs, ok := bindCrashForm(c, db)
	if !ok {
		return
	}
	if len(errs) > 0 {
		renderCrashForm(c, db, action, false, form, errs)
		return
	}

	report, created, err := models.SubmitCrash(db, user.ID, form.Submission())
	if err != nil {
		renderServerError(c, "Failed to submit crash report", err)
		return
	}

	getMetrics(c).IncrementReportsSubmitted(created)
	eventType := events.EventTypeReportIncremented
	if created {
		eventType = events.EventTypeReportCreated
	}
	publish(c, eventType, report)

	c.Redirect(http.StatusFound, reportURL(user.Username, report.ID))
}

func GETEditCrashReport(c *gin.Context) {
	user, ok := actingOwner(c)
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	report, ok := findOwnedReport(c, db, user)
	if !ok {
		return
	}
	renderCrashForm(c, db, reportURL(user.Username, report.ID)+"edit/", true, forms.CrashReportFormFor(report), forms.Errors{})
}

func POSTEditCrashReport(c *gin.Context) {
	user, ok := actingOwner(c)
	if !ok {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}
	report, ok := findOwnedReport(c, db, user)
	if !ok {
		return
	}
	action := reportURL(user.Username, report.ID) + "edit/"

	form, errs, ok := bindCrashForm(c, db)
	if !ok {
		return
	}
	if len(errs) > 0 {
		renderCrashForm(c, db, action, true, form, errs)
		return
	}

	updated, err := models.UpdateCrashReport(db, user.ID, report.ID, form.Update())
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		errs.Add("title", "You already have a crash report with this title for this version.")
		renderCrashForm(c, db, action, true, form, errs)
		return
	case errors.Is(err, gorm.ErrRecordNotFound):
		renderNotFound(c)
		return
	case err != nil:
		renderServerError(c, "Failed to update crash report", err)
		return
	}

	getMetrics(c).IncrementReportsEdited()
	publish(c, events.EventTypeReportEdited, updated)

	c.Redirect(http.StatusFound, reportURL(user.Username, updated.ID))
}
