package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Version struct {
	ID            uint        `json:"-" gorm:"primaryKey"`
	ApplicationID uint        `json:"-" gorm:"not null;uniqueIndex:idx_versions_application_build,priority:1"`
	Application   Application `json:"-" gorm:"foreignKey:ApplicationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Marketing     string      `json:"marketing" gorm:"size:25"`
	Build         int         `json:"build" gorm:"not null;uniqueIndex:idx_versions_application_build,priority:2"`
	CreatedAt     time.Time   `json:"-"`
	UpdatedAt     time.Time   `json:"-"`
}

func (v Version) TableName() string {
	return "versions"
}

func (v Version) String() string {
	if v.Marketing == "" {
		return fmt.Sprintf("build %d", v.Build)
	}
	return fmt.Sprintf("%s (%d)", v.Marketing, v.Build)
}

// GetOrCreateVersion resolves the version of an application by build number.
// Racing callers insert at most one row. A marketing label is recorded when
// the version is created, or when an existing version has none yet.
func GetOrCreateVersion(db *gorm.DB, applicationID uint, marketing string, build int) (Version, error) {
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "application_id"}, {Name: "build"}},
		DoNothing: true,
	}).Omit(clause.Associations).Create(&Version{
		ApplicationID: applicationID,
		Marketing:     marketing,
		Build:         build,
	}).Error
	if err != nil {
		return Version{}, err
	}

	var version Version
	err = db.Where("application_id = ? AND build = ?", applicationID, build).First(&version).Error
	if err != nil {
		return version, err
	}
	if version.Marketing == "" && marketing != "" {
		version.Marketing = marketing
		err = db.Model(&version).Update("marketing", marketing).Error
	}
	return version, err
}
