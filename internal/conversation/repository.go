package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fitcoach-platform/fitcoach/internal/metrics"
)

// ErrStorage marks failures of the durable message store. Callers treat
// these as non-fatal to the conversation turn; the message is lost but the
// reply still goes out.
var ErrStorage = errors.New("conversation storage failure")

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// Store is the append-only conversation archive. Messages are never updated
// in place; Prune is the only destructive operation.
type Store interface {
	Append(ctx context.Context, msg *Message) (int64, error)
	Recent(ctx context.Context, userID, sessionID string, since time.Time) ([]Message, error)
	All(ctx context.Context) ([]Message, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Append persists a user or assistant turn and returns its assigned id.
// System-role messages are transient prompt scaffolding and are skipped.
func (s *PostgresStore) Append(ctx context.Context, msg *Message) (int64, error) {
	if msg.Role == RoleSystem {
		return 0, nil
	}
	if msg.Content == "" {
		return 0, fmt.Errorf("appending message: empty content")
	}

	topics := msg.Topics
	if len(topics) == 0 {
		topics = []string{"general"}
	}
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return 0, fmt.Errorf("encoding topics: %w", err)
	}

	importance := msg.Importance
	if importance == 0 {
		importance = 1.0
	}
	recordedAt := msg.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	var embedding any
	if len(msg.Embedding) > 0 {
		embedding = pgvector.NewVector(msg.Embedding)
	}

	query := `
		INSERT INTO messages (user_id, session_id, role, content, recorded_at, embedding, topics, importance_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err = s.pool.QueryRow(ctx, query,
		msg.UserID, msg.SessionID, msg.Role, msg.Content,
		recordedAt, embedding, topicsJSON, importance,
	).Scan(&id)
	if err != nil {
		return 0, storageErr("inserting message", err)
	}

	msg.ID = id
	msg.RecordedAt = recordedAt
	metrics.MessagesStoredTotal.Inc()
	return id, nil
}

// Recent returns one user's messages recorded at or after since, newest
// first. An empty sessionID scans the whole user history.
func (s *PostgresStore) Recent(ctx context.Context, userID, sessionID string, since time.Time) ([]Message, error) {
	query := `
		SELECT id, user_id, session_id, role, content, recorded_at, embedding, topics, importance_score
		FROM messages
		WHERE user_id = $1 AND recorded_at >= $2`
	args := []any{userID, since}
	if sessionID != "" {
		query += ` AND session_id = $3`
		args = append(args, sessionID)
	}
	query += ` ORDER BY recorded_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("querying recent messages", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// All returns every stored message ordered by id. Used to rebuild the
// in-memory vector index from scratch.
func (s *PostgresStore) All(ctx context.Context) ([]Message, error) {
	query := `
		SELECT id, user_id, session_id, role, content, recorded_at, embedding, topics, importance_score
		FROM messages
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, storageErr("querying all messages", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Prune deletes messages recorded before the cutoff and returns the count
// removed. The vector index must be rebuilt afterwards.
func (s *PostgresStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE recorded_at < $1`, before)
	if err != nil {
		return 0, storageErr("pruning messages", err)
	}
	n := tag.RowsAffected()
	metrics.MessagesPrunedTotal.Add(float64(n))
	return n, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanMessages(rows rowScanner) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var (
			m          Message
			embedding  *pgvector.Vector
			topicsJSON []byte
		)
		err := rows.Scan(&m.ID, &m.UserID, &m.SessionID, &m.Role, &m.Content,
			&m.RecordedAt, &embedding, &topicsJSON, &m.Importance)
		if err != nil {
			return nil, storageErr("scanning message row", err)
		}
		if embedding != nil {
			m.Embedding = embedding.Slice()
		}
		if len(topicsJSON) > 0 {
			if err := json.Unmarshal(topicsJSON, &m.Topics); err != nil {
				return nil, fmt.Errorf("decoding topics: %w", err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating message rows", err)
	}
	return out, nil
}
