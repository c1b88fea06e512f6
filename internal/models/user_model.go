package models

import "time"

// User mirrors the identity issued by the external auth provider.
type User struct {
	ID             int64     `db:"id" json:"id"`
	ProviderID     string    `db:"provider_id" json:"provider_id"`
	Email          string    `db:"email" json:"email"`
	Name           string    `db:"name" json:"name"`
	ProfilePicture string    `db:"profile_picture" json:"profile_picture"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
