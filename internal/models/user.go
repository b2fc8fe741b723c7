package models

import "time"

type User struct {
	ID        string    `json:"id" db:"id" example:"player-7f3a"` // Externally assigned player/device id
	Name      string    `json:"name" db:"name" example:"Alice"`   // Display name
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserWithAccounts is a user together with every account it owns.
type UserWithAccounts struct {
	User
	Accounts []Account `json:"accounts"`
}
