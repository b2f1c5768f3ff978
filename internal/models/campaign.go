package models

import "time"

// Campaign is the lookup record for a marketing campaign. Messages hold only
// its ID; the name is joined in when a view is built.
type Campaign struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	BrandID   string    `json:"brandId" db:"brand_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
