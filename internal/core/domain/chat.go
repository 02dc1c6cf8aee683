package domain

import "time"

// SessionStatus represents the lifecycle state of a chat session.
type SessionStatus string

const (
	SessionActive SessionStatus = "ACTIVE"
	SessionClosed SessionStatus = "CLOSED"
)

// CanTransitionTo reports whether a session may move from s to next.
// CLOSED is terminal; re-opening is not supported.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	return s == SessionActive && next == SessionClosed
}

// SenderRole identifies which party of a session wrote a message.
type SenderRole string

const (
	SenderUser       SenderRole = "user"
	SenderSpecialist SenderRole = "specialist"
)

// ChatSession links a requester to an optional specialist and experience post.
// UserID must never be shown to the specialist side; AnonymousUserID is the
// only requester identifier exposed there.
type ChatSession struct {
	ID               string        `bson:"_id"`
	UserID           string        `bson:"user_id"`
	SpecialistID     *string       `bson:"specialist_id"`
	ExperiencePostID *string       `bson:"experience_post_id,omitempty"`
	AnonymousUserID  *string       `bson:"anonymous_user_id,omitempty"`
	Status           SessionStatus `bson:"status"`
	MessageSeq       int64         `bson:"message_seq"`
	CreatedAt        time.Time     `bson:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at"`
	ClosedAt         *time.Time    `bson:"closed_at,omitempty"`
}

// Message is a single append-only entry in a session's log.
type Message struct {
	ID         string     `bson:"_id"`
	SessionID  string     `bson:"session_id"`
	SenderID   string     `bson:"sender_id"`
	SenderRole SenderRole `bson:"sender_role"`
	Content    string     `bson:"content"`
	Seq        int64      `bson:"seq"`
	CreatedAt  time.Time  `bson:"created_at"`
}

// Party is the relation of a caller to a chat session.
type Party int

const (
	PartyNone Party = iota
	PartyOwner
	PartySpecialist
)

// SenderRole maps a party to the role recorded on messages it writes.
func (p Party) SenderRole() SenderRole {
	if p == PartySpecialist {
		return SenderSpecialist
	}
	return SenderUser
}

// Caller is the identity of the requester as resolved once per request.
// SpecialistID is empty when the caller has no specialist profile.
type Caller struct {
	UserID       string
	SpecialistID string
}

// ClassifyCaller decides how caller relates to session. Every session read or
// write goes through this predicate; PartyNone callers must be treated as if
// the session did not exist.
func ClassifyCaller(session *ChatSession, caller Caller) Party {
	if session == nil || caller.UserID == "" {
		return PartyNone
	}
	if caller.SpecialistID != "" && session.SpecialistID != nil && *session.SpecialistID == caller.SpecialistID {
		return PartySpecialist
	}
	if session.UserID == caller.UserID {
		return PartyOwner
	}
	return PartyNone
}
