package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
)

// MongoChatRepository stores conversations and messages in MongoDB. Ids are
// ULIDs, so _id order follows creation order within a millisecond.
type MongoChatRepository struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
	profiles      *mongo.Collection
	parts         *mongo.Collection
}

func NewMongoChatRepository(db *mongo.Database) *MongoChatRepository {
	return &MongoChatRepository{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
		profiles:      db.Collection("profiles"),
		parts:         db.Collection("parts"),
	}
}

var (
	_ repository.ChatRepository      = (*MongoChatRepository)(nil)
	_ repository.DirectoryRepository = (*MongoChatRepository)(nil)
)

// EnsureIndexes creates the uniqueness and lookup indexes the queries rely on.
func (r *MongoChatRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "buyer_id", Value: 1}, {Key: "seller_id", Value: 1}, {Key: "part_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "seller_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure conversation indexes: %w", err)
	}

	_, err = r.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure message index: %w", err)
	}
	return nil
}

func (r *MongoChatRepository) CreateConversation(ctx context.Context, c chat.Conversation) (chat.Conversation, error) {
	if c.ID == "" {
		c.ID = ulid.Make().String()
	}
	_, err := r.conversations.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		existing, findErr := r.FindConversation(ctx, c.BuyerID, c.SellerID, c.PartID)
		if findErr != nil {
			return chat.Conversation{}, findErr
		}
		return *existing, nil
	}
	if err != nil {
		return chat.Conversation{}, err
	}
	return c, nil
}

func (r *MongoChatRepository) FindConversation(ctx context.Context, buyerID, sellerID, partID string) (*chat.Conversation, error) {
	return r.findOneConversation(ctx, bson.M{"buyer_id": buyerID, "seller_id": sellerID, "part_id": partID})
}

func (r *MongoChatRepository) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	return r.findOneConversation(ctx, bson.M{"_id": conversationID})
}

func (r *MongoChatRepository) findOneConversation(ctx context.Context, filter bson.M) (*chat.Conversation, error) {
	var c chat.Conversation
	err := r.conversations.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, chat.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *MongoChatRepository) ListConversations(ctx context.Context, userID string) ([]chat.ConversationSummary, error) {
	cur, err := r.conversations.Find(ctx, bson.M{"$or": bson.A{
		bson.M{"buyer_id": userID},
		bson.M{"seller_id": userID},
	}})
	if err != nil {
		return nil, err
	}
	var convs []chat.Conversation
	if err := cur.All(ctx, &convs); err != nil {
		return nil, err
	}

	out := make([]chat.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		sum := chat.ConversationSummary{Conversation: c}

		part, err := r.GetPart(ctx, c.PartID)
		if err != nil {
			return nil, err
		}
		sum.PartTitle = part.Title

		if sum.Counterpart, err = r.GetProfile(ctx, c.Counterpart(userID)); err != nil {
			return nil, err
		}

		var last chat.Message
		err = r.messages.FindOne(ctx, bson.M{"conversation_id": c.ID},
			options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}),
		).Decode(&last)
		switch {
		case err == nil:
			sum.LastMessage = &last
		case !errors.Is(err, mongo.ErrNoDocuments):
			return nil, err
		}
		out = append(out, sum)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivity().After(out[j].LastActivity())
	})
	return out, nil
}

func (r *MongoChatRepository) SaveMessage(ctx context.Context, m chat.Message) (string, error) {
	if m.ID == "" {
		m.ID = ulid.Make().String()
	}
	if _, err := r.messages.InsertOne(ctx, m); err != nil {
		return "", err
	}
	return m.ID, nil
}

func (r *MongoChatRepository) GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error) {
	limit, offset = pageBounds(limit, offset)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	msgs := make([]chat.Message, 0, limit)
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *MongoChatRepository) GetProfile(ctx context.Context, userID string) (chat.Profile, error) {
	p := chat.Profile{UserID: userID}
	err := r.profiles.FindOne(ctx, bson.M{"_id": userID}).Decode(&p)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Profile{UserID: userID}, err
	}
	return p, nil
}

func (r *MongoChatRepository) GetPart(ctx context.Context, partID string) (chat.Part, error) {
	p := chat.Part{ID: partID}
	err := r.parts.FindOne(ctx, bson.M{"_id": partID}).Decode(&p)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Part{ID: partID}, err
	}
	return p, nil
}
