package adapter

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
)

// MemoryChatRepository keeps everything in process memory. Used for local
// development (CHAT_STORE=memory) and tests.
type MemoryChatRepository struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message // conversationID -> chronological
	profiles      map[string]chat.Profile
	parts         map[string]chat.Part
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		profiles:      make(map[string]chat.Profile),
		parts:         make(map[string]chat.Part),
	}
}

var (
	_ repository.ChatRepository      = (*MemoryChatRepository)(nil)
	_ repository.DirectoryRepository = (*MemoryChatRepository)(nil)
)

// PutProfile seeds a profile.
func (r *MemoryChatRepository) PutProfile(p chat.Profile) {
	r.mu.Lock()
	r.profiles[p.UserID] = p
	r.mu.Unlock()
}

// PutPart seeds a part.
func (r *MemoryChatRepository) PutPart(p chat.Part) {
	r.mu.Lock()
	r.parts[p.ID] = p
	r.mu.Unlock()
}

func (r *MemoryChatRepository) CreateConversation(_ context.Context, c chat.Conversation) (chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.findLocked(c.BuyerID, c.SellerID, c.PartID); ok {
		return existing, nil
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.conversations[c.ID] = c
	return c, nil
}

func (r *MemoryChatRepository) FindConversation(_ context.Context, buyerID, sellerID, partID string) (*chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.findLocked(buyerID, sellerID, partID); ok {
		return &c, nil
	}
	return nil, chat.ErrConversationNotFound
}

func (r *MemoryChatRepository) GetConversation(_ context.Context, conversationID string) (*chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	return &c, nil
}

func (r *MemoryChatRepository) ListConversations(_ context.Context, userID string) ([]chat.ConversationSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []chat.ConversationSummary
	for _, c := range r.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		sum := chat.ConversationSummary{
			Conversation: c,
			PartTitle:    r.parts[c.PartID].Title,
			Counterpart:  r.profileLocked(c.Counterpart(userID)),
		}
		if msgs := r.messages[c.ID]; len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			sum.LastMessage = &last
		}
		out = append(out, sum)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivity().After(out[j].LastActivity())
	})
	return out, nil
}

func (r *MemoryChatRepository) SaveMessage(_ context.Context, m chat.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[m.ConversationID]; !ok {
		return "", chat.ErrConversationNotFound
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], m)
	return m.ID, nil
}

func (r *MemoryChatRepository) GetMessagesByConversation(_ context.Context, conversationID string, limit int, offset int) ([]chat.Message, error) {
	limit, offset = pageBounds(limit, offset)

	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := r.messages[conversationID]

	end := len(msgs) - offset
	if end <= 0 {
		return []chat.Message{}, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]chat.Message, end-start)
	copy(out, msgs[start:end])
	return out, nil
}

func (r *MemoryChatRepository) GetProfile(_ context.Context, userID string) (chat.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profileLocked(userID), nil
}

func (r *MemoryChatRepository) GetPart(_ context.Context, partID string) (chat.Part, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parts[partID]
	if !ok {
		return chat.Part{ID: partID}, nil
	}
	return p, nil
}

func (r *MemoryChatRepository) findLocked(buyerID, sellerID, partID string) (chat.Conversation, bool) {
	for _, c := range r.conversations {
		if c.BuyerID == buyerID && c.SellerID == sellerID && c.PartID == partID {
			return c, true
		}
	}
	return chat.Conversation{}, false
}

func (r *MemoryChatRepository) profileLocked(userID string) chat.Profile {
	p, ok := r.profiles[userID]
	if !ok {
		return chat.Profile{UserID: userID}
	}
	return p
}

// pageBounds applies the shared paging defaults.
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
