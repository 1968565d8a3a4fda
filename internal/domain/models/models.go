// Package models holds the domain types shared by features and stores.
package models

import "time"

// CatFact is one entry shown on the home view.
type CatFact struct {
	Fact   string `json:"fact"`
	Length int    `json:"length"`
}

// Session is an authenticated visitor as seen by the app.
type Session struct {
	ID        string
	Email     string
	Provider  string
	ExpiresAt time.Time
}
