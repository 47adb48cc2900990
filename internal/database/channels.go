package database

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/models"
	"context"
	"database/sql"
)

const categoryColumns = "c.id, c.server_id, c.name, c.position"

func scanCategory(row scanner) (models.Category, error) {
	var category models.Category
	err := row.Scan(&category.ID, &category.ServerID, &category.Name, &category.Position)
	return category, err
}

func (s *Store) CreateCategory(ctx context.Context, serverID int64, name string, position int) (models.Category, error) {
	categoryID, err := s.newID()
	if err != nil {
		return models.Category{}, err
	}

	_, err = s.db.ExecContext(ctx, "INSERT INTO categories (id, server_id, name, position) VALUES (?, ?, ?, ?)", categoryID, serverID, name, position)
	if err != nil {
		return models.Category{}, fail(err)
	}

	return models.Category{ID: categoryID, ServerID: serverID, Name: name, Position: position}, nil
}

func (s *Store) CategoryByID(ctx context.Context, categoryID int64) (models.Category, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories c WHERE c.id = ?", categoryID)
	category, err := scanCategory(row)
	if err != nil {
		return models.Category{}, notFoundOr(err, "Category not found")
	}
	return category, nil
}

// Categories are ordered by position, ties by creation
func (s *Store) Categories(ctx context.Context, serverID int64) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories c WHERE c.server_id = ? ORDER BY c.position, c.id", serverID)
	if err != nil {
		return nil, fail(err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fail(err)
		}
		categories = append(categories, category)
	}
	return categories, fail(rows.Err())
}

// DeleteCategory detaches the category's channels instead of deleting them
func (s *Store) DeleteCategory(ctx context.Context, categoryID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE channels SET category_id = NULL WHERE category_id = ?", categoryID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", categoryID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFoundf("Category not found")
		}
		return nil
	})
}

const channelColumns = "c.id, c.server_id, c.category_id, c.name, c.type, COALESCE(c.topic, ''), c.position, c.private"

func scanChannel(row scanner) (models.Channel, error) {
	var channel models.Channel
	var categoryID sql.NullInt64
	err := row.Scan(&channel.ID, &channel.ServerID, &categoryID, &channel.Name, &channel.Type, &channel.Topic, &channel.Position, &channel.Private)
	if err != nil {
		return models.Channel{}, err
	}
	if categoryID.Valid {
		channel.CategoryID = &categoryID.Int64
	}
	return channel, nil
}

type ChannelInput struct {
	Name       string
	Type       string
	Topic      string
	Private    bool
	CategoryID *int64
}

// CreateChannel appends the channel after the server's last one. A category
// has to belong to the same server.
func (s *Store) CreateChannel(ctx context.Context, serverID int64, in ChannelInput) (models.Channel, error) {
	if in.Type == "" {
		in.Type = models.ChannelTypeText
	}

	channelID, err := s.newID()
	if err != nil {
		return models.Channel{}, err
	}

	channel := models.Channel{
		ID:         channelID,
		ServerID:   serverID,
		CategoryID: in.CategoryID,
		Name:       in.Name,
		Type:       in.Type,
		Topic:      in.Topic,
		Private:    in.Private,
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if in.CategoryID != nil {
			if err := categoryInServer(ctx, tx, *in.CategoryID, serverID); err != nil {
				return err
			}
		}

		err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position) + 1, 0) FROM channels WHERE server_id = ?", serverID).Scan(&channel.Position)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO channels (id, server_id, category_id, name, type, topic, position, private) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			channel.ID, serverID, nullableID(in.CategoryID), channel.Name, channel.Type, channel.Topic, channel.Position, channel.Private)
		return err
	})
	if err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func categoryInServer(ctx context.Context, q querier, categoryID int64, serverID int64) error {
	var categoryServerID int64
	err := q.QueryRowContext(ctx, "SELECT server_id FROM categories WHERE id = ?", categoryID).Scan(&categoryServerID)
	if err != nil {
		return notFoundOr(err, "Category not found")
	}
	if categoryServerID != serverID {
		return apperr.NotFoundf("Category not found")
	}
	return nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func (s *Store) ChannelByID(ctx context.Context, channelID int64) (models.Channel, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+channelColumns+" FROM channels c WHERE c.id = ?", channelID)
	channel, err := scanChannel(row)
	if err != nil {
		return models.Channel{}, notFoundOr(err, "Channel not found")
	}
	return channel, nil
}

// Channels are ordered by position, ties by creation
func (s *Store) Channels(ctx context.Context, serverID int64) ([]models.Channel, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+channelColumns+" FROM channels c WHERE c.server_id = ? ORDER BY c.position, c.id", serverID)
	if err != nil {
		return nil, fail(err)
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, fail(err)
		}
		channels = append(channels, channel)
	}
	return channels, fail(rows.Err())
}

type ChannelPatch struct {
	Name     *string
	Topic    *string
	Private  *bool
	Position *int
	// CategoryID moves the channel, ClearCategory detaches it
	CategoryID    *int64
	ClearCategory bool
}

func (s *Store) UpdateChannel(ctx context.Context, channelID int64, patch ChannelPatch) (models.Channel, error) {
	var channel models.Channel

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+channelColumns+" FROM channels c WHERE c.id = ?", channelID)
		current, err := scanChannel(row)
		if err != nil {
			return notFoundOr(err, "Channel not found")
		}

		if patch.Name != nil {
			current.Name = *patch.Name
		}
		if patch.Topic != nil {
			current.Topic = *patch.Topic
		}
		if patch.Private != nil {
			current.Private = *patch.Private
		}
		if patch.Position != nil {
			current.Position = *patch.Position
		}
		if patch.ClearCategory {
			current.CategoryID = nil
		} else if patch.CategoryID != nil {
			if err := categoryInServer(ctx, tx, *patch.CategoryID, current.ServerID); err != nil {
				return err
			}
			current.CategoryID = patch.CategoryID
		}

		_, err = tx.ExecContext(ctx, "UPDATE channels SET name = ?, topic = ?, private = ?, position = ?, category_id = ? WHERE id = ?",
			current.Name, current.Topic, current.Private, current.Position, nullableID(current.CategoryID), channelID)
		channel = current
		return err
	})
	return channel, err
}

// DeleteChannel cascades to the channel's messages and returns the
// attachment urls that are no longer referenced
func (s *Store) DeleteChannel(ctx context.Context, channelID int64) ([]string, error) {
	var urls []string

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		urls, err = attachmentURLs(ctx, tx, `
			SELECT a.url FROM attachments a
			JOIN messages m ON m.id = a.message_id
			WHERE m.channel_id = ?`, channelID)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM channels WHERE id = ?", channelID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFoundf("Channel not found")
		}
		return nil
	})
	return urls, err
}
