package models

import "time"

// ConversationKind distinguishes one-to-one from group conversations.
type ConversationKind string

const (
	KindPrivate ConversationKind = "private"
	KindGroup   ConversationKind = "group"
)

// Valid reports whether k is a known kind.
func (k ConversationKind) Valid() bool {
	return k == KindPrivate || k == KindGroup
}

// Role is a participant's standing inside a group conversation.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// CanManage reports whether r may add participants or change roles.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Conversation is a durable conversation row. LastSequence is the highest
// sequence handed out to a message in it; zero means no messages yet.
type Conversation struct {
	ID           int64
	Kind         ConversationKind
	Name         string
	OwnerID      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastSequence int64
}
