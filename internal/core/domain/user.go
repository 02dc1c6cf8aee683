package domain

import "time"

const (
	RoleUser       = "USER"
	RoleSpecialist = "SPECIALIST"
	RoleAdmin      = "ADMIN"
)

// User models an authenticated actor in the system.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Name         string    `json:"name,omitempty" bson:"name,omitempty"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty"`
	ProfilePhoto string    `json:"profile_photo,omitempty" bson:"profile_photo,omitempty"`
	Role         string    `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}
