package models

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User mirrors the platform's shared users collection. This service only
// reads it; account creation lives in the auth service.
type User struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	AvatarURL string    `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	Role      string    `bson:"role" json:"role"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// Profile is the public slice of a user attached to outbound messages.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      string `json:"role"`
}

func (u *User) Profile() *Profile {
	return &Profile{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL, Role: u.Role}
}
