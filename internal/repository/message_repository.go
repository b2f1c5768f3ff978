package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"crmtriage/internal/models"
)

type messageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *sql.DB) MessageRepository {
	return &messageRepository{db: db}
}

// ListByBoard retrieves a board's messages with their responses
func (r *messageRepository) ListByBoard(ctx context.Context, boardID string) ([]models.Message, error) {
	query := `
		SELECT id, customer_id, campaign_id, brand_id, body, status, tags, version, created_at
		FROM messages
		WHERE board_id = $1
		ORDER BY position, created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	index := make(map[string]int)
	for rows.Next() {
		var m models.Message
		var tags pq.StringArray
		err := rows.Scan(
			&m.ID,
			&m.CustomerID,
			&m.CampaignID,
			&m.BrandID,
			&m.Body,
			&m.Status,
			&tags,
			&m.Version,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Tags = models.NewTagSet(tags...)
		m.Responses = []models.Response{}
		index[m.ID] = len(messages)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	// Attach response threads
	if err := r.attachResponses(ctx, boardID, messages, index); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) attachResponses(ctx context.Context, boardID string, messages []models.Message, index map[string]int) error {
	query := `
		SELECT r.message_id, r.text, r.author, r.authored_at
		FROM message_responses r
		JOIN messages m ON m.id = r.message_id
		WHERE m.board_id = $1
		ORDER BY r.message_id, r.seq
	`

	rows, err := r.db.QueryContext(ctx, query, boardID)
	if err != nil {
		return fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID string
		var resp models.Response
		if err := rows.Scan(&messageID, &resp.Text, &resp.Author, &resp.AuthoredAt); err != nil {
			return fmt.Errorf("failed to scan response: %w", err)
		}
		if i, ok := index[messageID]; ok {
			messages[i].Responses = append(messages[i].Responses, resp)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate responses: %w", err)
	}
	return nil
}

// SaveSnapshot upserts the message row, inserts responses not stored yet
// and rewrites the positions of every bucket the event touched, in one
// transaction. Older or repeated events leave the row untouched.
func (r *messageRepository) SaveSnapshot(ctx context.Context, event *models.ChangeEvent) (bool, error) {
	msg := event.Message

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Upsert the row; the version guard skips stale events
	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, board_id, customer_id, campaign_id, brand_id, body, status, tags, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			tags = EXCLUDED.tags,
			version = EXCLUDED.version,
			updated_at = NOW()
		WHERE messages.version < EXCLUDED.version
	`,
		msg.ID,
		event.BoardID,
		msg.CustomerID,
		msg.CampaignID,
		msg.BrandID,
		msg.Body,
		msg.Status,
		pq.Array([]string(msg.Tags)),
		msg.Version,
		msg.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert message: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	// Insert responses, keyed by append sequence
	if len(msg.Responses) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO message_responses (message_id, seq, text, author, authored_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (message_id, seq) DO NOTHING
		`)
		if err != nil {
			return false, fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for seq, resp := range msg.Responses {
			if _, err := stmt.ExecContext(ctx, msg.ID, seq, resp.Text, resp.Author, resp.AuthoredAt); err != nil {
				return false, fmt.Errorf("failed to insert response: %w", err)
			}
		}
	}

	// Rewrite positions of the touched buckets in a fixed order
	statuses := make([]string, 0, len(event.BucketOrder))
	for status := range event.BucketOrder {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		_, err := tx.ExecContext(ctx, `
			UPDATE messages
			SET position = array_position($2::text[], id) - 1
			WHERE board_id = $1 AND id = ANY($2::text[])
		`, event.BoardID, pq.Array(event.BucketOrder[status]))
		if err != nil {
			return false, fmt.Errorf("failed to reorder bucket %s: %w", status, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}
