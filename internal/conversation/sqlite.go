package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pulseloop/pulseloop/internal/db"
	pf "github.com/pulseloop/pulseloop/internal/platform"
)

// SQLiteStore is the reference Store implementation on the shared sqlite
// database.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a store over an opened database.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, c *Conversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations
			(id, interaction_type, platform, channel_id, thread_id, user_id, subject_name,
			 status, message_count, scheduled_at, initiated_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Type), string(c.Platform), c.ChannelID, c.ThreadID, c.UserID,
		c.SubjectName, string(c.Status), c.MessageCount, c.ScheduledAt, c.InitiatedAt, c.ClosedAt)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, interaction_type, platform, channel_id, thread_id, user_id, subject_name,
		       status, message_count, scheduled_at, initiated_at, closed_at
		FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

func (s *SQLiteStore) FindActive(ctx context.Context, p string, channelID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, interaction_type, platform, channel_id, thread_id, user_id, subject_name,
		       status, message_count, scheduled_at, initiated_at, closed_at
		FROM conversations
		WHERE platform = ? AND channel_id = ? AND status IN ('initiated','in_progress','closing')
		ORDER BY scheduled_at DESC LIMIT 1`, p, channelID)
	return scanConversation(row)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) UpdateTurn(ctx context.Context, id string, status Status, messageCount int) error {
	var initiated, closed string
	switch status {
	case StatusInitiated:
		initiated = ", initiated_at = datetime('now')"
	case StatusClosed, StatusExpired:
		closed = ", closed_at = datetime('now')"
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET status = ?, message_count = ?, updated_at = datetime('now')`+initiated+closed+`
		WHERE id = ?`,
		string(status), messageCount, id)
	if err != nil {
		return fmt.Errorf("updating turn: %w", err)
	}
	return checkAffected(res)
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, m Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender, text, platform_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, string(m.Sender), m.Text, m.PlatformMessageID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender, text, platform_message_id, created_at
		FROM messages WHERE conversation_id = ? ORDER BY rowid`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var sender string
		if err := rows.Scan(&m.ID, &m.ConversationID, &sender, &m.Text, &m.PlatformMessageID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Sender = Sender(sender)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	// updated_at is written with datetime('now'); compare in the same
	// textual format.
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET status = 'expired', closed_at = datetime('now'), updated_at = datetime('now')
		WHERE status NOT IN ('closed','expired') AND updated_at < ?`,
		cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("expiring conversations: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanConversation(row *sql.Row) (*Conversation, error) {
	var c Conversation
	var itype, platform, status string
	var initiated, closed sql.NullTime
	err := row.Scan(&c.ID, &itype, &platform, &c.ChannelID, &c.ThreadID, &c.UserID,
		&c.SubjectName, &status, &c.MessageCount, &c.ScheduledAt, &initiated, &closed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	c.Type = InteractionType(itype)
	c.Platform = pf.Platform(platform)
	c.Status = Status(status)
	if initiated.Valid {
		c.InitiatedAt = &initiated.Time
	}
	if closed.Valid {
		c.ClosedAt = &closed.Time
	}
	return &c, nil
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
