package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/realtime"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
)

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

var (
	_ repository.ChatRepository      = (*PgChatRepository)(nil)
	_ repository.DirectoryRepository = (*PgChatRepository)(nil)
)

var errNilPool = errors.New("PgChatRepository: nil pool")

// schemaStatements create the tables this service reads and writes, plus the
// trigger function feeding realtime.PgListener. Profiles and parts are owned by
// the marketplace; the IF NOT EXISTS forms leave existing tables untouched.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id           text PRIMARY KEY,
		display_name text NOT NULL DEFAULT '',
		avatar_url   text NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS parts (
		id        text PRIMARY KEY,
		title     text NOT NULL DEFAULT '',
		seller_id text NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id         text PRIMARY KEY DEFAULT gen_random_uuid()::text,
		buyer_id   text NOT NULL,
		seller_id  text NOT NULL,
		part_id    text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		UNIQUE (buyer_id, seller_id, part_id)
	)`,
	`CREATE INDEX IF NOT EXISTS conversations_seller_idx ON conversations (seller_id)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              text PRIMARY KEY DEFAULT gen_random_uuid()::text,
		conversation_id text NOT NULL REFERENCES conversations (id),
		sender_id       text NOT NULL,
		body            text NOT NULL,
		created_at      timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_created_idx ON messages (conversation_id, created_at DESC)`,
	// NOTIFY payloads are capped near 8000 bytes, so only keys travel;
	// realtime.PgListener loads the row.
	fmt.Sprintf(`CREATE OR REPLACE FUNCTION notify_message_insert() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('%s', json_build_object(
			'type', 'INSERT',
			'table', TG_TABLE_NAME,
			'record', json_build_object('id', NEW.id, 'conversation_id', NEW.conversation_id),
			'commit_timestamp', now()
		)::text);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`, realtime.InsertNotifyChannel),
}

// EnsureSchema applies schemaStatements in one transaction.
func (r *PgChatRepository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin schema: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: apply schema: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// EnsureInsertTrigger installs the messages insert trigger when enabled and
// drops it otherwise.
func (r *PgChatRepository) EnsureInsertTrigger(ctx context.Context, enabled bool) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	if _, err := r.pool.Exec(ctx, `DROP TRIGGER IF EXISTS messages_notify_insert ON messages`); err != nil {
		return fmt.Errorf("postgres: drop insert trigger: %w", err)
	}
	if !enabled {
		return nil
	}
	if _, err := r.pool.Exec(ctx, `CREATE TRIGGER messages_notify_insert AFTER INSERT ON messages
		FOR EACH ROW EXECUTE FUNCTION notify_message_insert()`); err != nil {
		return fmt.Errorf("postgres: create insert trigger: %w", err)
	}
	return nil
}

func (r *PgChatRepository) CreateConversation(ctx context.Context, c chat.Conversation) (chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return chat.Conversation{}, errNilPool
	}
	out := c
	err := r.pool.QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO conversations (buyer_id, seller_id, part_id, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (buyer_id, seller_id, part_id) DO NOTHING
			RETURNING id, created_at
		)
		SELECT id, created_at FROM ins
		UNION ALL
		SELECT id, created_at FROM conversations
		WHERE buyer_id = $1 AND seller_id = $2 AND part_id = $3
		LIMIT 1
	`, c.BuyerID, c.SellerID, c.PartID, c.CreatedAt).Scan(&out.ID, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// A concurrent insert won the conflict after this statement's snapshot.
		existing, findErr := r.FindConversation(ctx, c.BuyerID, c.SellerID, c.PartID)
		if findErr != nil {
			return chat.Conversation{}, findErr
		}
		return *existing, nil
	}
	if err != nil {
		return chat.Conversation{}, err
	}
	return out, nil
}

func (r *PgChatRepository) FindConversation(ctx context.Context, buyerID, sellerID, partID string) (*chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	return r.scanConversation(r.pool.QueryRow(ctx, `
		SELECT id, buyer_id, seller_id, part_id, created_at
		FROM conversations
		WHERE buyer_id = $1 AND seller_id = $2 AND part_id = $3
	`, buyerID, sellerID, partID))
}

func (r *PgChatRepository) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	return r.scanConversation(r.pool.QueryRow(ctx, `
		SELECT id, buyer_id, seller_id, part_id, created_at
		FROM conversations
		WHERE id = $1
	`, conversationID))
}

func (r *PgChatRepository) scanConversation(row pgx.Row) (*chat.Conversation, error) {
	var c chat.Conversation
	err := row.Scan(&c.ID, &c.BuyerID, &c.SellerID, &c.PartID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgChatRepository) ListConversations(ctx context.Context, userID string) ([]chat.ConversationSummary, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.buyer_id, c.seller_id, c.part_id, c.created_at,
		       COALESCE(p.title, ''),
		       COALESCE(pr.display_name, ''), COALESCE(pr.avatar_url, ''),
		       lm.id, lm.sender_id, lm.body, lm.created_at
		FROM conversations c
		LEFT JOIN parts p ON p.id = c.part_id
		LEFT JOIN profiles pr ON pr.id = CASE WHEN c.buyer_id = $1 THEN c.seller_id ELSE c.buyer_id END
		LEFT JOIN LATERAL (
			SELECT m.id, m.sender_id, m.body, m.created_at
			FROM messages m
			WHERE m.conversation_id = c.id
			ORDER BY m.created_at DESC
			LIMIT 1
		) lm ON true
		WHERE c.buyer_id = $1 OR c.seller_id = $1
		ORDER BY COALESCE(lm.created_at, c.created_at) DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.ConversationSummary
	for rows.Next() {
		var (
			sum        chat.ConversationSummary
			lastID     *string
			lastSender *string
			lastBody   *string
			lastAt     *time.Time
		)
		c := &sum.Conversation
		if err := rows.Scan(&c.ID, &c.BuyerID, &c.SellerID, &c.PartID, &c.CreatedAt,
			&sum.PartTitle, &sum.Counterpart.DisplayName, &sum.Counterpart.AvatarURL,
			&lastID, &lastSender, &lastBody, &lastAt); err != nil {
			return nil, err
		}
		sum.Counterpart.UserID = c.Counterpart(userID)
		if lastID != nil && lastSender != nil && lastBody != nil && lastAt != nil {
			sum.LastMessage = &chat.Message{
				ID:             *lastID,
				ConversationID: c.ID,
				SenderID:       *lastSender,
				Body:           *lastBody,
				CreatedAt:      *lastAt,
			}
		}
		out = append(out, sum)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *PgChatRepository) SaveMessage(ctx context.Context, m chat.Message) (string, error) {
	if r == nil || r.pool == nil {
		return "", errNilPool
	}
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.ConversationID, m.SenderID, m.Body, m.CreatedAt).Scan(&id)
	return id, err
}

func (r *PgChatRepository) GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	limit, offset = pageBounds(limit, offset)
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]chat.Message, 0, limit)
	for rows.Next() {
		var msg chat.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	// newest-first from the index; callers render oldest-first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *PgChatRepository) GetProfile(ctx context.Context, userID string) (chat.Profile, error) {
	if r == nil || r.pool == nil {
		return chat.Profile{}, errNilPool
	}
	p := chat.Profile{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT display_name, avatar_url FROM profiles WHERE id = $1
	`, userID).Scan(&p.DisplayName, &p.AvatarURL)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return p, err
	}
	return p, nil
}

func (r *PgChatRepository) GetPart(ctx context.Context, partID string) (chat.Part, error) {
	if r == nil || r.pool == nil {
		return chat.Part{}, errNilPool
	}
	p := chat.Part{ID: partID}
	err := r.pool.QueryRow(ctx, `
		SELECT title, seller_id FROM parts WHERE id = $1
	`, partID).Scan(&p.Title, &p.SellerID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return p, err
	}
	return p, nil
}
