package models

import (
	"time"

	"gorm.io/gorm"
)

// CrashLog is a file attached to a crash report. The contents live in
// attachment storage under ObjectKey.
type CrashLog struct {
	ID            uint        `json:"id" gorm:"primaryKey"`
	CrashReportID uint        `json:"-" gorm:"not null;index"`
	CrashReport   CrashReport `json:"-" gorm:"foreignKey:CrashReportID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	FileName      string      `json:"file_name" gorm:"size:255;not null"`
	ObjectKey     string      `json:"-" gorm:"uniqueIndex;size:255;not null"`
	Size          int64       `json:"size"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"-"`
}

func (l CrashLog) TableName() string {
	return "crash_logs"
}

func CreateCrashLog(db *gorm.DB, reportID uint, fileName, objectKey string, size int64) (CrashLog, error) {
	log := CrashLog{
		CrashReportID: reportID,
		FileName:      fileName,
		ObjectKey:     objectKey,
		Size:          size,
	}
	err := db.Omit("CrashReport").Create(&log).Error
	return log, err
}

func ListCrashLogs(db *gorm.DB, reportID uint) ([]CrashLog, error) {
	var logs []CrashLog
	err := db.Where("crash_report_id = ?", reportID).Order("created_at desc").Order("id desc").Find(&logs).Error
	return logs, err
}

func FindCrashLog(db *gorm.DB, reportID, logID uint) (CrashLog, error) {
	var log CrashLog
	err := db.Where("id = ? AND crash_report_id = ?", logID, reportID).First(&log).Error
	return log, err
}
