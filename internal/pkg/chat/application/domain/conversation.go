package chat

import (
	"errors"
	"strings"
	"time"
)

// Conversation is a buyer-seller thread about one listed part.
// The participant pair is fixed at creation.
type Conversation struct {
	ID        string    `db:"id" bson:"_id" json:"id"`
	BuyerID   string    `db:"buyer_id" bson:"buyer_id" json:"buyerId"`
	SellerID  string    `db:"seller_id" bson:"seller_id" json:"sellerId"`
	PartID    string    `db:"part_id" bson:"part_id" json:"partId"`
	CreatedAt time.Time `db:"created_at" bson:"created_at" json:"createdAt"`
}

// NewConversation validates a buyer opening a thread with a seller about a part.
func NewConversation(buyerID, sellerID, partID string, now time.Time) (*Conversation, error) {
	buyerID = strings.TrimSpace(buyerID)
	sellerID = strings.TrimSpace(sellerID)
	partID = strings.TrimSpace(partID)
	if buyerID == "" || sellerID == "" || partID == "" {
		return nil, errors.New("buyer_id, seller_id and part_id are required")
	}
	if buyerID == sellerID {
		return nil, ErrSelfConversation
	}
	if now.IsZero() {
		now = time.Now()
	}
	return &Conversation{
		BuyerID:   buyerID,
		SellerID:  sellerID,
		PartID:    partID,
		CreatedAt: now.UTC(),
	}, nil
}

// HasParticipant tells whether userID is the buyer or the seller.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.BuyerID || userID == c.SellerID)
}

// Participants returns buyer then seller.
func (c Conversation) Participants() []string {
	return []string{c.BuyerID, c.SellerID}
}

// Counterpart returns the other participant, or "" when userID is not a member.
func (c Conversation) Counterpart(userID string) string {
	switch userID {
	case c.BuyerID:
		return c.SellerID
	case c.SellerID:
		return c.BuyerID
	default:
		return ""
	}
}

// RoleOf reports the role userID plays in the conversation.
func (c Conversation) RoleOf(userID string) (ParticipantRole, bool) {
	switch {
	case userID == "":
		return "", false
	case userID == c.BuyerID:
		return ParticipantRoleBuyer, true
	case userID == c.SellerID:
		return ParticipantRoleSeller, true
	default:
		return "", false
	}
}
