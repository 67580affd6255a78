package chat

import "time"

// ParticipantRole is the side a user takes in a conversation
type ParticipantRole string

const (
	ParticipantRoleBuyer  ParticipantRole = "buyer"
	ParticipantRoleSeller ParticipantRole = "seller"
)

// Profile is the public face of a marketplace user. Read-only here.
type Profile struct {
	UserID      string `db:"id" bson:"_id" json:"userId"`
	DisplayName string `db:"display_name" bson:"display_name" json:"displayName"`
	AvatarURL   string `db:"avatar_url" bson:"avatar_url" json:"avatarUrl,omitempty"`
}

// Name returns the display name, falling back to a neutral label.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "Someone"
}

// Part is a listed item a conversation is about. Read-only here.
type Part struct {
	ID       string `db:"id" bson:"_id" json:"id"`
	Title    string `db:"title" bson:"title" json:"title"`
	SellerID string `db:"seller_id" bson:"seller_id" json:"sellerId"`
}

// Participant pairs a member with their role and profile.
type Participant struct {
	Role    ParticipantRole `json:"role"`
	Profile Profile         `json:"profile"`
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	Conversation Conversation `json:"conversation"`
	PartTitle    string       `json:"partTitle"`
	Counterpart  Profile      `json:"counterpart"`
	LastMessage  *Message     `json:"lastMessage,omitempty"`
}

// LastActivity is the newest message time, or creation time for empty threads.
func (s ConversationSummary) LastActivity() time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	return s.Conversation.CreatedAt
}
