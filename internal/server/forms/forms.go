package forms

import (
	"strconv"
	"strings"

	"github.com/USA-RedDragon/crashula/internal/db/models"
)

type LoginForm struct {
	Username string `form:"username" label:"Username" binding:"required,max=150"`
	Password string `form:"password" label:"Password" binding:"required"`
	Next     string `form:"next"`
}

func (f *LoginForm) normalize() {
	f.Username = strings.TrimSpace(f.Username)
}

type RegisterForm struct {
	Username     string `form:"username" label:"Username" binding:"required,max=150,username"`
	Password     string `form:"password" label:"Password" binding:"required,min=8,max=128"`
	Confirmation string `form:"confirmation" label:"Password confirmation" binding:"required,eqfield=Password"`
}

func (f *RegisterForm) normalize() {
	f.Username = strings.TrimSpace(f.Username)
}

type CrashReportForm struct {
	Application uint   `form:"application" label:"Application" binding:"required"`
	Version     string `form:"version" label:"Version" binding:"max=25"`
	Build       *int   `form:"build" label:"Build" binding:"required,min=0"`
	Kind        int    `form:"kind" label:"Kind" binding:"oneof=0 1 2 3"`
	Title       string `form:"title" label:"Title" binding:"required,max=200"`
	Details     string `form:"details" label:"Details" binding:"required"`
	Count       int    `form:"count" label:"Count" binding:"min=1"`
}

func (f *CrashReportForm) normalize() {
	f.Version = strings.TrimSpace(f.Version)
	f.Title = strings.TrimSpace(f.Title)
	f.Details = strings.TrimSpace(f.Details)
}

// NewCrashReportForm is the blank form shown for a new submission.
func NewCrashReportForm() CrashReportForm {
	return CrashReportForm{
		Kind:  int(models.CrashKindAnnoyance),
		Count: 1,
	}
}

// CrashReportFormFor prefills the form with an existing report. The report
// must have Version loaded.
func CrashReportFormFor(report models.CrashReport) CrashReportForm {
	build := report.Version.Build
	return CrashReportForm{
		Application: report.Version.ApplicationID,
		Version:     report.Version.Marketing,
		Build:       &build,
		Kind:        int(report.Kind),
		Title:       report.Title,
		Details:     report.Details,
		Count:       report.Count,
	}
}

// BuildValue renders Build for an input's value attribute.
func (f CrashReportForm) BuildValue() string {
	if f.Build == nil {
		return ""
	}
	return strconv.Itoa(*f.Build)
}

func (f CrashReportForm) Submission() models.CrashSubmission {
	var build int
	if f.Build != nil {
		build = *f.Build
	}
	return models.CrashSubmission{
		ApplicationID: f.Application,
		Marketing:     f.Version,
		Build:         build,
		Kind:          models.CrashKind(f.Kind),
		Title:         f.Title,
		Details:       f.Details,
	}
}

func (f CrashReportForm) Update() models.CrashReportUpdate {
	return models.CrashReportUpdate{
		CrashSubmission: f.Submission(),
		Count:           f.Count,
	}
}
