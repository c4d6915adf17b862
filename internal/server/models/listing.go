package models

import "time"

// Listing is a rental listing. Only the minimal fields needed by the API
// surface are modelled here.
type Listing struct {
	ID            string
	OwnerID       string
	Title         string
	City          string
	PricePerNight int64
	CreatedAt     time.Time
}
