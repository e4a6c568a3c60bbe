// Package models defines server-side data models persisted in the database
// and the derived views built from them.
package models

import "time"

// User is the chat-visible part of an account. Credentials live with the
// identity provider and never reach this package.
type User struct {
	ID       int64
	Username string
	Nickname string
	Avatar   string
	Online   bool
	LastSeen time.Time
}

// DisplayName is the nickname, falling back to the username.
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

// Presence states broadcast in user_status events.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Participant is a roster line: a user plus their role in one conversation.
type Participant struct {
	User
	Role Role
}
