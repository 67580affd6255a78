package adapter_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/database"
	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/realtime"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/adapter"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
)

type fixture struct {
	buyer, seller, part string
}

// exerciseRepository runs the behaviors every adapter must share.
func exerciseRepository(t *testing.T, repo repository.ChatRepository, dir repository.DirectoryRepository, fx fixture) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	if _, err := repo.GetConversation(ctx, "missing-"+uuid.NewString()); !errors.Is(err, chat.ErrConversationNotFound) {
		t.Fatalf("expected not found for unknown conversation, got %v", err)
	}

	conv, err := chat.NewConversation(fx.buyer, fx.seller, fx.part, base)
	if err != nil {
		t.Fatalf("new conversation: %v", err)
	}
	created, err := repo.CreateConversation(ctx, *conv)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected conversation id to be assigned")
	}

	again, err := repo.CreateConversation(ctx, *conv)
	if err != nil {
		t.Fatalf("create conversation again: %v", err)
	}
	if again.ID != created.ID {
		t.Fatalf("expected idempotent create, got %s and %s", created.ID, again.ID)
	}

	found, err := repo.FindConversation(ctx, fx.buyer, fx.seller, fx.part)
	if err != nil || found.ID != created.ID {
		t.Fatalf("expected to find conversation %s, got %+v (%v)", created.ID, found, err)
	}

	for i := 0; i < 3; i++ {
		sender := fx.buyer
		if i%2 == 1 {
			sender = fx.seller
		}
		msg, err := chat.NewMessage(created, sender, fmt.Sprintf("message %d", i), base.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("new message: %v", err)
		}
		id, err := repo.SaveMessage(ctx, *msg)
		if err != nil || id == "" {
			t.Fatalf("save message: %q %v", id, err)
		}
	}

	page, err := repo.GetMessagesByConversation(ctx, created.ID, 2, 0)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(page) != 2 || page[0].Body != "message 1" || page[1].Body != "message 2" {
		t.Fatalf("expected newest two oldest-first, got %+v", page)
	}

	older, err := repo.GetMessagesByConversation(ctx, created.ID, 2, 2)
	if err != nil {
		t.Fatalf("get older messages: %v", err)
	}
	if len(older) != 1 || older[0].Body != "message 0" {
		t.Fatalf("expected the oldest message on the second page, got %+v", older)
	}

	list, err := repo.ListConversations(ctx, fx.seller)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	var sum *chat.ConversationSummary
	for i := range list {
		if list[i].Conversation.ID == created.ID {
			sum = &list[i]
		}
	}
	if sum == nil {
		t.Fatalf("expected conversation in seller list, got %+v", list)
	}
	if sum.PartTitle != "Brake pads" {
		t.Fatalf("expected part title, got %q", sum.PartTitle)
	}
	if sum.Counterpart.UserID != fx.buyer || sum.Counterpart.DisplayName != "Asha" {
		t.Fatalf("expected buyer as counterpart, got %+v", sum.Counterpart)
	}
	if sum.LastMessage == nil || sum.LastMessage.Body != "message 2" {
		t.Fatalf("expected last message preview, got %+v", sum.LastMessage)
	}

	profile, err := dir.GetProfile(ctx, fx.buyer)
	if err != nil || profile.DisplayName != "Asha" || profile.AvatarURL != "https://cdn.example/asha.png" {
		t.Fatalf("unexpected profile %+v (%v)", profile, err)
	}
	unknown, err := dir.GetProfile(ctx, "nobody-"+uuid.NewString())
	if err != nil || unknown.DisplayName != "" {
		t.Fatalf("expected zero profile for unknown user, got %+v (%v)", unknown, err)
	}
	part, err := dir.GetPart(ctx, fx.part)
	if err != nil || part.Title != "Brake pads" {
		t.Fatalf("unexpected part %+v (%v)", part, err)
	}
}

func newFixture() fixture {
	return fixture{buyer: "buyer-" + uuid.NewString(), seller: "seller-" + uuid.NewString(), part: "part-" + uuid.NewString()}
}

func TestMemoryChatRepository(t *testing.T) {
	repo := adapter.NewMemoryChatRepository()
	fx := newFixture()
	repo.PutProfile(chat.Profile{UserID: fx.buyer, DisplayName: "Asha", AvatarURL: "https://cdn.example/asha.png"})
	repo.PutPart(chat.Part{ID: fx.part, Title: "Brake pads", SellerID: fx.seller})

	exerciseRepository(t, repo, repo, fx)

	if _, err := repo.SaveMessage(context.Background(), chat.Message{ConversationID: "missing", SenderID: "x", Body: "y"}); !errors.Is(err, chat.ErrConversationNotFound) {
		t.Fatalf("expected save into missing conversation to fail, got %v", err)
	}
}

func TestMemoryListOrdersByActivity(t *testing.T) {
	ctx := context.Background()
	repo := adapter.NewMemoryChatRepository()
	base := time.Now().UTC()

	older, _ := repo.CreateConversation(ctx, chat.Conversation{BuyerID: "b", SellerID: "s", PartID: "p1", CreatedAt: base})
	newer, _ := repo.CreateConversation(ctx, chat.Conversation{BuyerID: "b", SellerID: "s", PartID: "p2", CreatedAt: base.Add(time.Minute)})

	list, _ := repo.ListConversations(ctx, "b")
	if len(list) != 2 || list[0].Conversation.ID != newer.ID {
		t.Fatalf("expected newest conversation first, got %+v", list)
	}

	_, _ = repo.SaveMessage(ctx, chat.Message{ConversationID: older.ID, SenderID: "s", Body: "bump", CreatedAt: base.Add(time.Hour)})
	list, _ = repo.ListConversations(ctx, "b")
	if list[0].Conversation.ID != older.ID {
		t.Fatalf("expected recently messaged conversation first, got %+v", list)
	}
}

func TestPgChatRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DB_URL")
	if dsn == "" {
		t.Skip("TEST_DB_URL not set; skipping postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	repo := adapter.NewPgChatRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := repo.EnsureInsertTrigger(ctx, true); err != nil {
		t.Fatalf("ensure insert trigger: %v", err)
	}

	fx := newFixture()
	if _, err := pool.Exec(ctx, `INSERT INTO profiles (id, display_name, avatar_url) VALUES ($1, 'Asha', 'https://cdn.example/asha.png')`, fx.buyer); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO parts (id, title, seller_id) VALUES ($1, 'Brake pads', $2)`, fx.part, fx.seller); err != nil {
		t.Fatalf("seed part: %v", err)
	}

	// The insert trigger must reach a listener before the shared checks write messages.
	hub := realtime.NewHub(nil)
	got := make(chan realtime.InsertEvent, 8)
	listenCtx, stopListening := context.WithCancel(ctx)
	defer stopListening()
	go func() { _ = realtime.NewPgListener(pool, hub, nil).Run(listenCtx) }()
	time.Sleep(200 * time.Millisecond)

	exerciseRepository(t, repo, repo, fx)

	conv, err := repo.FindConversation(ctx, fx.buyer, fx.seller, fx.part)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	hub.Subscribe(realtime.Topic{Table: "messages", Column: "conversation_id", Value: conv.ID}, func(ev realtime.InsertEvent) {
		got <- ev
	})
	msg, _ := chat.NewMessage(*conv, fx.seller, "via trigger", time.Now())
	if _, err := repo.SaveMessage(ctx, *msg); err != nil {
		t.Fatalf("save: %v", err)
	}

	select {
	case ev := <-got:
		if ev.Record["body"] != "via trigger" {
			t.Fatalf("unexpected trigger record %v", ev.Record)
		}
		if _, ok := ev.Record["created_at"].(string); !ok {
			t.Fatalf("expected snake_case created_at string, got %T", ev.Record["created_at"])
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for insert notification")
	}

	// Longest allowed body, multibyte and escape-heavy, far past the NOTIFY payload cap.
	long := strings.Repeat("ब\"", chat.MaxBodyLength/2)
	msg, err = chat.NewMessage(*conv, fx.buyer, long, time.Now())
	if err != nil {
		t.Fatalf("new long message: %v", err)
	}
	if _, err := repo.SaveMessage(ctx, *msg); err != nil {
		t.Fatalf("save long message: %v", err)
	}
	select {
	case ev := <-got:
		if ev.Record["body"] != long {
			t.Fatalf("expected full long body in loaded record, got %d bytes", len(fmt.Sprint(ev.Record["body"])))
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for long insert notification")
	}
}

func TestPgCreateConversationConcurrent(t *testing.T) {
	dsn := os.Getenv("TEST_DB_URL")
	if dsn == "" {
		t.Skip("TEST_DB_URL not set; skipping postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	repo := adapter.NewPgChatRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	fx := newFixture()
	conv, err := chat.NewConversation(fx.buyer, fx.seller, fx.part, time.Now())
	if err != nil {
		t.Fatalf("new conversation: %v", err)
	}

	const workers = 8
	ids := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			c, err := repo.CreateConversation(ctx, *conv)
			if err != nil {
				errs <- err
				return
			}
			ids <- c.ID
		}()
	}
	var first string
	for i := 0; i < workers; i++ {
		select {
		case err := <-errs:
			t.Fatalf("concurrent create: %v", err)
		case id := <-ids:
			if first == "" {
				first = id
			}
			if id != first {
				t.Fatalf("expected one conversation, got %s and %s", first, id)
			}
		}
	}
}

func TestMongoChatRepository(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set; skipping mongo integration test")
	}
	ctx := context.Background()
	name := "partout_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	store, err := database.ConnectMongo(ctx, uri, name, 5*time.Second)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() {
		_ = store.Database.Drop(ctx)
		_ = store.Close(ctx)
	}()

	repo := adapter.NewMongoChatRepository(store.Database)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	fx := newFixture()
	if _, err := store.Database.Collection("profiles").InsertOne(ctx, bson.M{"_id": fx.buyer, "display_name": "Asha", "avatar_url": "https://cdn.example/asha.png"}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if _, err := store.Database.Collection("parts").InsertOne(ctx, bson.M{"_id": fx.part, "title": "Brake pads", "seller_id": fx.seller}); err != nil {
		t.Fatalf("seed part: %v", err)
	}

	exerciseRepository(t, repo, repo, fx)
}
