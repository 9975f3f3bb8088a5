package model

import "time"

type Member struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Mention is how a member is addressed in a ping announcement.
func (m Member) Mention() string {
	return "@" + m.Name
}
