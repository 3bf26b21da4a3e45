package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Company struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;size:200;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Applications []Application `json:"-" gorm:"foreignKey:CompanyID"`
}

func (c Company) TableName() string {
	return "companies"
}

type Application struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;size:200;not null"`
	CompanyID *uint     `json:"-" gorm:"index"`
	Company   *Company  `json:"company,omitempty" gorm:"foreignKey:CompanyID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Versions []Version `json:"versions,omitempty" gorm:"foreignKey:ApplicationID"`
}

func (a Application) TableName() string {
	return "applications"
}

func (a Application) String() string {
	if a.Company != nil && a.Company.Name != "" {
		return fmt.Sprintf("%s by %s", a.Name, a.Company.Name)
	}
	return a.Name
}

// CreateApplication creates the application, creating its company on first
// reference when companyName is not empty.
func CreateApplication(db *gorm.DB, name, companyName string) (Application, error) {
	app := Application{Name: name}
	err := db.Transaction(func(tx *gorm.DB) error {
		if companyName != "" {
			company := Company{}
			err := tx.Where(Company{Name: companyName}).FirstOrCreate(&company).Error
			if err != nil {
				return err
			}
			app.CompanyID = &company.ID
			app.Company = &company
		}
		return tx.Omit("Company").Create(&app).Error
	})
	return app, err
}

func FindApplicationByID(db *gorm.DB, id uint) (Application, error) {
	var app Application
	err := db.Preload("Company").First(&app, id).Error
	return app, err
}

func ListApplications(db *gorm.DB) ([]Application, error) {
	var apps []Application
	err := db.Preload("Company").Order("name asc").Find(&apps).Error
	return apps, err
}

// ListApplicationsWithVersions preloads each application's versions, newest
// build first.
func ListApplicationsWithVersions(db *gorm.DB) ([]Application, error) {
	var apps []Application
	err := db.Preload("Company").
		Preload("Versions", func(db *gorm.DB) *gorm.DB {
			return db.Order("build desc")
		}).
		Order("name asc").
		Find(&apps).Error
	return apps, err
}
