package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"chatsink/internal/migrations"
	"chatsink/internal/models"
	"chatsink/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the durable message/chat store backed by SQLite. All
// participant/admin mutations on a single chat serialize through
// BEGIN IMMEDIATE transactions; independent chats proceed in parallel.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	// _txlock=immediate makes every transaction take the write lock up
	// front, so membership mutations on one chat serialize at BEGIN
	// instead of failing mid-transaction on lock upgrade.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// CreateMessage persists a new message and, in the same transaction,
// advances the owning chat's last-message pointer and unread counter.
func (d *Database) CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	encryptedContent, err := d.encryptor.EncryptIfEnabled(msg.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt content: %w", err)
	}
	encryptedSender, err := d.encryptor.EncryptIfEnabled(msg.Sender)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt sender: %w", err)
	}

	reactions, err := marshalJSONMap(stringMapToAny(msg.Reactions))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reactions: %w", err)
	}
	metadata, err := marshalJSONMap(msg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var id int64
	err = retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, `
			INSERT INTO messages (
				chat_id, sender, type, content, media_path, mime_type,
				transport_id, sending_time, status, reactions, metadata
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ChatID, encryptedSender, msg.Type, encryptedContent,
			msg.MediaPath, msg.MimeType, msg.TransportID,
			msg.SendingTime.UTC(), msg.Status, reactions, metadata,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get insert id: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE chats
			SET last_message_id = ?, unread_count = unread_count + 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			id, msg.ChatID,
		); err != nil {
			return fmt.Errorf("failed to update chat pointers: %w", err)
		}

		return tx.Commit()
	}, "create message")
	if err != nil {
		return nil, err
	}

	return d.GetMessage(ctx, id)
}

// GetMessage retrieves a message by its surrogate id. Returns
// (nil, nil) when absent.
func (d *Database) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, chat_id, sender, type, content, media_path, mime_type,
		       transport_id, sending_time, status, read_at, reactions, metadata,
		       created_at, updated_at
		FROM messages
		WHERE id = ?`, id)

	return d.scanMessage(row)
}

func (d *Database) scanMessage(row *sql.Row) (*models.Message, error) {
	msg := &models.Message{}
	var encryptedSender, encryptedContent string
	var reactions, metadata string

	err := row.Scan(
		&msg.ID,
		&msg.ChatID,
		&encryptedSender,
		&msg.Type,
		&encryptedContent,
		&msg.MediaPath,
		&msg.MimeType,
		&msg.TransportID,
		&msg.SendingTime,
		&msg.Status,
		&msg.ReadAt,
		&reactions,
		&metadata,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("scan message", err)
	}

	msg.Sender, err = d.encryptor.DecryptIfEnabled(encryptedSender)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt sender: %w", err)
	}
	msg.Content, err = d.encryptor.DecryptIfEnabled(encryptedContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt content: %w", err)
	}

	if err := json.Unmarshal([]byte(reactions), &msg.Reactions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reactions: %w", err)
	}
	if len(msg.Reactions) == 0 {
		msg.Reactions = nil
	}
	if err := json.Unmarshal([]byte(metadata), &msg.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if len(msg.Metadata) == 0 {
		msg.Metadata = nil
	}

	return msg, nil
}

// UpdateMessageOverlay rewrites the mutable status overlay of a
// message: status, read stamp and metadata.
func (d *Database) UpdateMessageOverlay(ctx context.Context, id int64, status models.MessageStatus, readAt *time.Time, metadata map[string]interface{}) error {
	meta, err := marshalJSONMap(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return retryableDBOperationNoReturn(ctx, func() error {
		result, err := d.db.ExecContext(ctx, `
			UPDATE messages
			SET status = ?, read_at = ?, metadata = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			status, readAt, meta, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update message overlay: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("no message found with id: %d", id)
		}
		return nil
	}, "update message overlay")
}

// SetMessageReactions replaces the reaction set of a message.
func (d *Database) SetMessageReactions(ctx context.Context, id int64, reactions map[string]string) error {
	payload, err := marshalJSONMap(stringMapToAny(reactions))
	if err != nil {
		return fmt.Errorf("failed to marshal reactions: %w", err)
	}

	return retryableDBOperationNoReturn(ctx, func() error {
		result, err := d.db.ExecContext(ctx, `
			UPDATE messages
			SET reactions = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			payload, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update reactions: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("no message found with id: %d", id)
		}
		return nil
	}, "set message reactions")
}

// CleanupOldMessages removes messages older than the retention period.
func (d *Database) CleanupOldMessages(retentionDays int) error {
	_, err := d.db.Exec(`
		DELETE FROM messages
		WHERE created_at < datetime('now', '-' || ? || ' days')`, retentionDays)
	if err != nil {
		return wrapDBError("cleanup old messages", err)
	}
	return nil
}

func marshalJSONMap(m map[string]interface{}) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSONMap(raw string, dst *map[string]interface{}) error {
	if raw == "" || raw == "{}" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func stringMapToAny(m map[string]string) map[string]interface{} {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
