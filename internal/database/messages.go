package database

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/models"
	"chatapp-backend/internal/snowflake"
	"context"
	"database/sql"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

type AttachmentInput struct {
	Filename string
	FileType string
	URL      string
}

// CreateMessage stores a message and its attachments in one transaction.
// A missing channel is NotFound and leaves no rows behind.
func (s *Store) CreateMessage(ctx context.Context, channelID int64, userID int64, content string, attachments []AttachmentInput) (models.Message, error) {
	messageID, err := s.newID()
	if err != nil {
		return models.Message{}, err
	}

	message := models.Message{
		ID:          messageID,
		ChannelID:   channelID,
		UserID:      userID,
		Content:     content,
		CreatedAt:   snowflake.Time(messageID),
		Attachments: []models.Attachment{},
	}

	for _, a := range attachments {
		attachmentID, err := s.newID()
		if err != nil {
			return models.Message{}, err
		}
		message.Attachments = append(message.Attachments, models.Attachment{
			ID:        attachmentID,
			MessageID: messageID,
			Filename:  a.Filename,
			FileType:  a.FileType,
			URL:       a.URL,
		})
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM channels WHERE id = ?)", channelID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperr.NotFoundf("Channel not found")
		}

		_, err := tx.ExecContext(ctx, "INSERT INTO messages (id, channel_id, user_id, content, edited_at) VALUES (?, ?, ?, ?, NULL)",
			messageID, channelID, userID, content)
		if err != nil {
			return err
		}

		for _, a := range message.Attachments {
			_, err := tx.ExecContext(ctx, "INSERT INTO attachments (id, message_id, filename, file_type, url) VALUES (?, ?, ?, ?, ?)",
				a.ID, messageID, a.Filename, a.FileType, a.URL)
			if err != nil {
				return err
			}
		}

		row := tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users u WHERE u.id = ?", userID)
		message.User, err = scanUser(row)
		return notFoundOr(err, "User not found")
	})
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}

const messageColumns = "m.id, m.channel_id, m.user_id, m.content, m.edited_at"

func scanMessage(row scanner) (models.Message, error) {
	var message models.Message
	var editedAt sql.NullInt64
	user, err := scanUserAfter(row, &message.ID, &message.ChannelID, &message.UserID, &message.Content, &editedAt)
	if err != nil {
		return models.Message{}, err
	}
	message.CreatedAt = snowflake.Time(message.ID)
	message.EditedAt = fromMillis(editedAt)
	message.User = user
	message.Attachments = []models.Attachment{}
	return message, nil
}

func (s *Store) MessageByID(ctx context.Context, messageID int64) (models.Message, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+messageColumns+", "+userColumns+" FROM messages m JOIN users u ON u.id = m.user_id WHERE m.id = ?", messageID)
	message, err := scanMessage(row)
	if err != nil {
		return models.Message{}, notFoundOr(err, "Message not found")
	}

	messages := []models.Message{message}
	if err := s.loadAttachments(ctx, messages); err != nil {
		return models.Message{}, err
	}
	return messages[0], nil
}

// Messages returns up to limit messages older than before, newest first.
// before=0 starts at the newest message.
func (s *Store) Messages(ctx context.Context, channelID int64, before int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	} else if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	query := "SELECT " + messageColumns + ", " + userColumns + " FROM messages m JOIN users u ON u.id = m.user_id WHERE m.channel_id = ?"
	args := []any{channelID}
	if before > 0 {
		query += " AND m.id < ?"
		args = append(args, before)
	}
	query += " ORDER BY m.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fail(err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fail(err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(err)
	}
	rows.Close()

	if err := s.loadAttachments(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) loadAttachments(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	index := make(map[int64]int, len(messages))
	ids := make([]int64, len(messages))
	for i, m := range messages {
		index[m.ID] = i
		ids[i] = m.ID
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, message_id, filename, file_type, url FROM attachments WHERE message_id IN ("+placeholders(len(ids))+") ORDER BY id", int64Args(ids)...)
	if err != nil {
		return fail(err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Filename, &a.FileType, &a.URL); err != nil {
			return fail(err)
		}
		i := index[a.MessageID]
		messages[i].Attachments = append(messages[i].Attachments, a)
	}
	return fail(rows.Err())
}

func (s *Store) EditMessage(ctx context.Context, messageID int64, content string) (models.Message, error) {
	editedAt := s.now().UTC()

	result, err := s.db.ExecContext(ctx, "UPDATE messages SET content = ?, edited_at = ? WHERE id = ?", content, millis(editedAt), messageID)
	if err != nil {
		return models.Message{}, fail(err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return models.Message{}, apperr.NotFoundf("Message not found")
	}
	return s.MessageByID(ctx, messageID)
}

// DeleteMessage returns the deleted message so its attachment blobs can be removed
func (s *Store) DeleteMessage(ctx context.Context, messageID int64) (models.Message, error) {
	message, err := s.MessageByID(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", messageID)
	if err != nil {
		return models.Message{}, fail(err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return models.Message{}, apperr.NotFoundf("Message not found")
	}
	return message, nil
}

func (s *Store) CountMessages(ctx context.Context, channelID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE channel_id = ?", channelID).Scan(&count)
	return count, fail(err)
}
