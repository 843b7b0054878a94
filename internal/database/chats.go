package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"chatsink/internal/errors"
	"chatsink/internal/models"
)

// GetChatByKey retrieves a chat by its canonical key, members
// included. Returns (nil, nil) when absent.
func (d *Database) GetChatByKey(ctx context.Context, chatKey string) (*models.Chat, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, chat_key, name, is_group, last_message_id, unread_count,
		       archived, metadata, created_at, updated_at
		FROM chats
		WHERE chat_key = ?`, chatKey)

	chat, err := scanChat(row)
	if err != nil || chat == nil {
		return chat, err
	}

	chat.Members, err = d.loadMembers(ctx, d.db, chat.ID)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// GetChat retrieves a chat by id, members included. Returns (nil, nil)
// when absent.
func (d *Database) GetChat(ctx context.Context, id int64) (*models.Chat, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, chat_key, name, is_group, last_message_id, unread_count,
		       archived, metadata, created_at, updated_at
		FROM chats
		WHERE id = ?`, id)

	chat, err := scanChat(row)
	if err != nil || chat == nil {
		return chat, err
	}

	chat.Members, err = d.loadMembers(ctx, d.db, chat.ID)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// CreateChatWithMembers inserts a chat together with its initial
// membership rows in one transaction. A chat_key collision surfaces as
// a conflict error so callers can re-resolve the winner.
func (d *Database) CreateChatWithMembers(ctx context.Context, chat *models.Chat, members []models.ChatMember) (*models.Chat, error) {
	metadata, err := marshalJSONMap(chat.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat metadata: %w", err)
	}

	var id int64
	err = retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, `
			INSERT INTO chats (chat_key, name, is_group, metadata)
			VALUES (?, ?, ?, ?)`,
			chat.ChatKey, chat.Name, chat.IsGroup, metadata,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return errors.NewConflictError("chat "+chat.ChatKey, err)
			}
			return fmt.Errorf("failed to insert chat: %w", err)
		}

		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get insert id: %w", err)
		}

		for _, m := range members {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chat_members (chat_id, participant, is_admin)
				VALUES (?, ?, ?)`,
				id, m.Participant, m.IsAdmin,
			); err != nil {
				return fmt.Errorf("failed to insert member %s: %w", m.Participant, err)
			}
		}

		return tx.Commit()
	}, "create chat")
	if err != nil {
		return nil, err
	}

	return d.GetChat(ctx, id)
}

// AddChatMembers adds participants to an existing chat. Re-adding a
// current member is a no-op.
func (d *Database) AddChatMembers(ctx context.Context, chatID int64, participants []string) (*models.Chat, error) {
	err := retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.beginImmediate(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		for _, p := range participants {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chat_members (chat_id, participant)
				VALUES (?, ?)
				ON CONFLICT(chat_id, participant) DO NOTHING`,
				chatID, p,
			); err != nil {
				return fmt.Errorf("failed to add member %s: %w", p, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE chats SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, chatID,
		); err != nil {
			return fmt.Errorf("failed to touch chat: %w", err)
		}

		return tx.Commit()
	}, "add chat members")
	if err != nil {
		return nil, err
	}

	return d.GetChat(ctx, chatID)
}

// RemoveChatMembers removes participants from a chat atomically. If the
// last member leaves, the chat row is deleted; if the last admin
// leaves a non-empty group, the longest-standing remaining member is
// promoted. Removing a non-member is a no-op.
func (d *Database) RemoveChatMembers(ctx context.Context, chatID int64, participants []string) (*models.RemovalResult, error) {
	result := &models.RemovalResult{}

	err := retryableDBOperationNoReturn(ctx, func() error {
		*result = models.RemovalResult{}

		tx, err := d.beginImmediate(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(participants)), ",")
		args := make([]interface{}, 0, len(participants)+1)
		args = append(args, chatID)
		for _, p := range participants {
			args = append(args, p)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chat_members WHERE chat_id = ? AND participant IN (`+placeholders+`)`,
			args...,
		); err != nil {
			return fmt.Errorf("failed to remove members: %w", err)
		}

		var remaining int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM chat_members WHERE chat_id = ?`, chatID,
		).Scan(&remaining); err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		result.Remaining = remaining

		if remaining == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID); err != nil {
				return fmt.Errorf("failed to delete empty chat: %w", err)
			}
			result.Deleted = true
			return tx.Commit()
		}

		var admins int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM chat_members WHERE chat_id = ? AND is_admin = 1`, chatID,
		).Scan(&admins); err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}

		if admins == 0 {
			// Promote the longest-standing member, identified by the
			// lowest membership rowid.
			var promoted string
			if err := tx.QueryRowContext(ctx, `
				SELECT participant FROM chat_members
				WHERE chat_id = ?
				ORDER BY id ASC LIMIT 1`, chatID,
			).Scan(&promoted); err != nil {
				return fmt.Errorf("failed to pick promotion candidate: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE chat_members SET is_admin = 1
				WHERE chat_id = ? AND participant = ?`,
				chatID, promoted,
			); err != nil {
				return fmt.Errorf("failed to promote member: %w", err)
			}
			result.Promoted = promoted
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE chats SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, chatID,
		); err != nil {
			return fmt.Errorf("failed to touch chat: %w", err)
		}

		return tx.Commit()
	}, "remove chat members")
	if err != nil {
		return nil, err
	}

	if !result.Deleted {
		result.Chat, err = d.GetChat(ctx, chatID)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// SetMemberMute sets or clears a member's mute horizon.
func (d *Database) SetMemberMute(ctx context.Context, chatID int64, participant string, mutedUntil *time.Time) error {
	return retryableDBOperationNoReturn(ctx, func() error {
		result, err := d.db.ExecContext(ctx, `
			UPDATE chat_members SET muted_until = ?
			WHERE chat_id = ? AND participant = ?`,
			mutedUntil, chatID, participant,
		)
		if err != nil {
			return fmt.Errorf("failed to update mute: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return errors.NewNotFoundError("chat member", participant)
		}
		return nil
	}, "set member mute")
}

// MarkChatRead stamps a member's read horizon and resets the chat's
// unread counter.
func (d *Database) MarkChatRead(ctx context.Context, chatID int64, participant string, at time.Time) error {
	return retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.beginImmediate(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		result, err := tx.ExecContext(ctx, `
			UPDATE chat_members SET read_at = ?
			WHERE chat_id = ? AND participant = ?`,
			at.UTC(), chatID, participant,
		)
		if err != nil {
			return fmt.Errorf("failed to update read horizon: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return errors.NewNotFoundError("chat member", participant)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE chats SET unread_count = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, chatID,
		); err != nil {
			return fmt.Errorf("failed to reset unread count: %w", err)
		}

		return tx.Commit()
	}, "mark chat read")
}

func (d *Database) beginImmediate(ctx context.Context) (*sql.Tx, error) {
	// The _txlock=immediate DSN option makes BeginTx issue BEGIN
	// IMMEDIATE, so the write lock is held from the first statement.
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapDBError("begin transaction", err)
	}
	return tx, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChat(row rowScanner) (*models.Chat, error) {
	chat := &models.Chat{}
	var metadata string

	err := row.Scan(
		&chat.ID,
		&chat.ChatKey,
		&chat.Name,
		&chat.IsGroup,
		&chat.LastMessageID,
		&chat.UnreadCount,
		&chat.Archived,
		&metadata,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("scan chat", err)
	}

	if err := unmarshalJSONMap(metadata, &chat.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat metadata: %w", err)
	}
	return chat, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (d *Database) loadMembers(ctx context.Context, q querier, chatID int64) ([]models.ChatMember, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT chat_id, participant, is_admin, muted_until, read_at, joined_at
		FROM chat_members
		WHERE chat_id = ?
		ORDER BY id ASC`, chatID)
	if err != nil {
		return nil, wrapDBError("query members", err)
	}
	defer func() { _ = rows.Close() }()

	var members []models.ChatMember
	for rows.Next() {
		var m models.ChatMember
		if err := rows.Scan(&m.ChatID, &m.Participant, &m.IsAdmin, &m.MutedUntil, &m.ReadAt, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
