package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CrashKind uint8

const (
	CrashKindAnnoyance CrashKind = iota
	CrashKindCrash
	CrashKindHang
	CrashKindSevereDataLoss
)

//nolint:golint,gochecknoglobals
var CrashKinds = []CrashKind{
	CrashKindAnnoyance,
	CrashKindCrash,
	CrashKindHang,
	CrashKindSevereDataLoss,
}

func (k CrashKind) String() string {
	switch k {
	case CrashKindAnnoyance:
		return "Annoyance"
	case CrashKindCrash:
		return "Crash"
	case CrashKindHang:
		return "Hang"
	case CrashKindSevereDataLoss:
		return "Severe Data Loss"
	default:
		return fmt.Sprintf("CrashKind(%d)", k)
	}
}

type CrashReport struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"-" gorm:"not null;uniqueIndex:idx_crash_reports_natural,priority:1"`
	User      User      `json:"user" gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	VersionID uint      `json:"-" gorm:"not null;uniqueIndex:idx_crash_reports_natural,priority:2"`
	Version   Version   `json:"version" gorm:"foreignKey:VersionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Title     string    `json:"title" gorm:"size:200;not null;uniqueIndex:idx_crash_reports_natural,priority:3"`
	Kind      CrashKind `json:"kind" gorm:"not null;default:0;index"`
	Details   string    `json:"details" gorm:"type:text"`
	Count     int       `json:"count" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`

	CrashLogs []CrashLog `json:"-" gorm:"foreignKey:CrashReportID"`
}

func (r CrashReport) TableName() string {
	return "crash_reports"
}

// String requires User and Version.Application to be loaded.
func (r CrashReport) String() string {
	return fmt.Sprintf("%s (%s %s by %s)",
		r.Title,
		r.Version.Application.Name,
		strings.ToLower(r.Kind.String()),
		r.User.Username)
}

type CrashSubmission struct {
	ApplicationID uint
	Marketing     string
	Build         int
	Kind          CrashKind
	Title         string
	Details       string
}

// SubmitCrash records one occurrence of a crash for the user. The report is
// keyed by (user, version, title): the first submission creates it with a
// count of one and every later submission increments the count.
func SubmitCrash(db *gorm.DB, userID uint, sub CrashSubmission) (report CrashReport, created bool, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		version, err := GetOrCreateVersion(tx, sub.ApplicationID, sub.Marketing, sub.Build)
		if err != nil {
			return fmt.Errorf("failed to resolve version: %w", err)
		}

		now := tx.NowFunc()
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "version_id"}, {Name: "title"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count":      gorm.Expr("crash_reports.count + 1"),
				"updated_at": now,
			}),
		}).Omit(clause.Associations).Create(&CrashReport{
			UserID:    userID,
			VersionID: version.ID,
			Title:     sub.Title,
			Kind:      sub.Kind,
			Details:   sub.Details,
			Count:     1,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to upsert crash report: %w", err)
		}

		report, err = findCrashReport(tx.Where("crash_reports.user_id = ? AND crash_reports.version_id = ? AND crash_reports.title = ?", userID, version.ID, sub.Title))
		return err
	})
	created = err == nil && report.Count == 1
	return report, created, err
}

type CrashReportUpdate struct {
	CrashSubmission
	Count int
}

// UpdateCrashReport overwrites the mutable fields of a report owned by the
// user. gorm.ErrRecordNotFound is returned when the report does not exist or
// belongs to someone else, and gorm.ErrDuplicatedKey when the new
// (version, title) pair collides with another of the user's reports.
func UpdateCrashReport(db *gorm.DB, userID, reportID uint, upd CrashReportUpdate) (CrashReport, error) {
	var report CrashReport
	err := db.Transaction(func(tx *gorm.DB) error {
		existing, err := FindUserCrashReport(tx, userID, reportID)
		if err != nil {
			return err
		}

		version, err := GetOrCreateVersion(tx, upd.ApplicationID, upd.Marketing, upd.Build)
		if err != nil {
			return fmt.Errorf("failed to resolve version: %w", err)
		}

		var collisions int64
		err = tx.Model(&CrashReport{}).
			Where("user_id = ? AND version_id = ? AND title = ? AND id <> ?", userID, version.ID, upd.Title, reportID).
			Count(&collisions).Error
		if err != nil {
			return err
		}
		if collisions > 0 {
			return gorm.ErrDuplicatedKey
		}

		err = tx.Model(&existing).Omit(clause.Associations).Updates(map[string]any{
			"version_id": version.ID,
			"title":      upd.Title,
			"kind":       upd.Kind,
			"details":    upd.Details,
			"count":      upd.Count,
		}).Error
		if err != nil {
			return err
		}

		report, err = FindUserCrashReport(tx, userID, reportID)
		return err
	})
	return report, err
}

func crashReportQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&CrashReport{}).
		Preload("User").
		Preload("Version").
		Preload("Version.Application").
		Preload("Version.Application.Company")
}

func findCrashReport(db *gorm.DB) (CrashReport, error) {
	var report CrashReport
	err := crashReportQuery(db).First(&report).Error
	return report, err
}

// FindUserCrashReport filters by owner so that a report belonging to another
// user is reported as gorm.ErrRecordNotFound.
func FindUserCrashReport(db *gorm.DB, userID, reportID uint) (CrashReport, error) {
	return findCrashReport(db.Where("crash_reports.id = ? AND crash_reports.user_id = ?", reportID, userID))
}

// ListUserCrashReports returns the user's reports, most recently updated first.
func ListUserCrashReports(db *gorm.DB, userID uint) ([]CrashReport, error) {
	var reports []CrashReport
	err := crashReportQuery(db).
		Where("crash_reports.user_id = ?", userID).
		Order("crash_reports.updated_at desc").
		Order("crash_reports.id desc").
		Find(&reports).Error
	return reports, err
}
