package database

import (
	"chatapp-backend/internal/models"
	"chatapp-backend/internal/snowflake"
	"context"
	"database/sql"
)

const (
	DefaultTextCategory  = "TEXTKANÄLE"
	DefaultVoiceCategory = "SPRACHKANÄLE"
	DefaultTextChannel   = "allgemein"
	DefaultVoiceChannel  = "Allgemein"
	DefaultTemplate      = "custom"
)

const serverColumns = "s.id, s.owner_id, s.name, COALESCE(s.description, ''), s.icon, s.template, s.boost_level, s.boost_count"

func scanServer(row scanner) (models.Server, error) {
	var server models.Server
	err := row.Scan(&server.ID, &server.OwnerID, &server.Name, &server.Description, &server.Icon, &server.Template, &server.BoostLevel, &server.BoostCount)
	if err != nil {
		return models.Server{}, err
	}
	server.CreatedAt = snowflake.Time(server.ID)
	return server, nil
}

type ServerInput struct {
	Name        string
	Description string
	Icon        string
	Template    string
}

// CreateServer inserts the server, its two default categories and channels
// and the owner's membership in one transaction
func (s *Store) CreateServer(ctx context.Context, ownerID int64, in ServerInput) (models.Server, error) {
	if in.Template == "" {
		in.Template = DefaultTemplate
	}

	ids := make([]int64, 6)
	for i := range ids {
		id, err := s.newID()
		if err != nil {
			return models.Server{}, err
		}
		ids[i] = id
	}
	serverID, textCategoryID, voiceCategoryID, textChannelID, voiceChannelID, memberID := ids[0], ids[1], ids[2], ids[3], ids[4], ids[5]

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO servers (id, owner_id, name, description, icon, template) VALUES (?, ?, ?, ?, ?, ?)",
			serverID, ownerID, in.Name, in.Description, in.Icon, in.Template)
		if err != nil {
			return err
		}

		categories := []struct {
			id       int64
			name     string
			position int
		}{
			{textCategoryID, DefaultTextCategory, 0},
			{voiceCategoryID, DefaultVoiceCategory, 1},
		}
		for _, c := range categories {
			if _, err := tx.ExecContext(ctx, "INSERT INTO categories (id, server_id, name, position) VALUES (?, ?, ?, ?)", c.id, serverID, c.name, c.position); err != nil {
				return err
			}
		}

		channels := []struct {
			id         int64
			categoryID int64
			name       string
			kind       string
		}{
			{textChannelID, textCategoryID, DefaultTextChannel, models.ChannelTypeText},
			{voiceChannelID, voiceCategoryID, DefaultVoiceChannel, models.ChannelTypeVoice},
		}
		for _, c := range channels {
			_, err := tx.ExecContext(ctx, "INSERT INTO channels (id, server_id, category_id, name, type, topic, position, private) VALUES (?, ?, ?, ?, ?, '', 0, ?)",
				c.id, serverID, c.categoryID, c.name, c.kind, false)
			if err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO server_members (id, server_id, user_id, nickname, member_rank, joined_at) VALUES (?, ?, ?, '', ?, ?)",
			memberID, serverID, ownerID, models.RankAdmin, millis(s.now()))
		return err
	})
	if err != nil {
		s.sugar.Errorf("Creating server [%s] for user ID [%d] failed: %v", in.Name, ownerID, err)
		return models.Server{}, err
	}

	s.sugar.Infof("User ID [%d] created server [%s] with ID [%d]", ownerID, in.Name, serverID)
	return models.Server{
		ID:          serverID,
		OwnerID:     ownerID,
		Name:        in.Name,
		Description: in.Description,
		Icon:        in.Icon,
		Template:    in.Template,
		CreatedAt:   snowflake.Time(serverID),
	}, nil
}

func (s *Store) ServerByID(ctx context.Context, serverID int64) (models.Server, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+serverColumns+" FROM servers s WHERE s.id = ?", serverID)
	server, err := scanServer(row)
	if err != nil {
		return models.Server{}, notFoundOr(err, "Server not found")
	}
	return server, nil
}

// ServersOfUser lists every server the user is a member of
func (s *Store) ServersOfUser(ctx context.Context, userID int64) ([]models.Server, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+serverColumns+`
		FROM servers s
		JOIN server_members m ON m.server_id = s.id
		WHERE m.user_id = ?
		ORDER BY m.joined_at, s.id`, userID)
	if err != nil {
		return nil, fail(err)
	}
	defer rows.Close()

	servers := []models.Server{}
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, fail(err)
		}
		servers = append(servers, server)
	}
	return servers, fail(rows.Err())
}

// ServerOwner returns NotFound for missing servers
func (s *Store) ServerOwner(ctx context.Context, serverID int64) (int64, error) {
	var ownerID int64
	err := s.db.QueryRowContext(ctx, "SELECT owner_id FROM servers WHERE id = ?", serverID).Scan(&ownerID)
	if err != nil {
		return 0, notFoundOr(err, "Server not found")
	}
	return ownerID, nil
}

type ServerPatch struct {
	Name        *string
	Description *string
	Icon        *string
}

// UpdateServer returns the updated server and the icon it replaced
func (s *Store) UpdateServer(ctx context.Context, serverID int64, patch ServerPatch) (models.Server, string, error) {
	var server models.Server
	var previousIcon string

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+serverColumns+" FROM servers s WHERE s.id = ?", serverID)
		current, err := scanServer(row)
		if err != nil {
			return notFoundOr(err, "Server not found")
		}
		previousIcon = current.Icon

		if patch.Name != nil {
			current.Name = *patch.Name
		}
		if patch.Description != nil {
			current.Description = *patch.Description
		}
		if patch.Icon != nil {
			current.Icon = *patch.Icon
		}

		_, err = tx.ExecContext(ctx, "UPDATE servers SET name = ?, description = ?, icon = ? WHERE id = ?",
			current.Name, current.Description, current.Icon, serverID)
		server = current
		return err
	})
	if err != nil {
		return models.Server{}, "", err
	}

	if previousIcon == server.Icon {
		previousIcon = ""
	}
	return server, previousIcon, nil
}

// DeleteServer removes the server row, foreign keys cascade to categories,
// channels, messages, attachments, members and roles. The deleted server and
// every attachment url it owned are returned for blob cleanup.
func (s *Store) DeleteServer(ctx context.Context, serverID int64) (models.Server, []string, error) {
	var server models.Server
	var urls []string

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+serverColumns+" FROM servers s WHERE s.id = ?", serverID)
		var err error
		if server, err = scanServer(row); err != nil {
			return notFoundOr(err, "Server not found")
		}

		urls, err = attachmentURLs(ctx, tx, `
			SELECT a.url FROM attachments a
			JOIN messages m ON m.id = a.message_id
			JOIN channels c ON c.id = m.channel_id
			WHERE c.server_id = ?`, serverID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "DELETE FROM servers WHERE id = ?", serverID)
		return err
	})
	if err != nil {
		return models.Server{}, nil, err
	}

	s.sugar.Infof("Server ID [%d] was deleted", serverID)
	return server, urls, nil
}

func attachmentURLs(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}
