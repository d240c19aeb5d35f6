package domain

import "time"

// User represents an account. PasswordHash never leaves the service layer.
type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity is the verified claim attached to a request.
type Identity struct {
	ID string
}
