package apimodels

import "github.com/mattn/go-nulltype"

type Version struct {
	Marketing string `json:"marketing"`
	Build     int    `json:"build"`
}

type ApplicationVersions struct {
	Name     string              `json:"name"`
	Company  nulltype.NullString `json:"company"`
	Versions []Version           `json:"versions"`
}
