package database

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/models"
	"chatapp-backend/internal/snowflake"
	"context"
	"database/sql"
)

const userColumns = "u.id, u.username, u.email, u.display_name, u.avatar, u.status"

func scanUser(row scanner, extra ...any) (models.User, error) {
	var user models.User
	dest := append([]any{&user.ID, &user.UserName, &user.Email, &user.DisplayName, &user.Avatar, &user.Status}, extra...)
	if err := row.Scan(dest...); err != nil {
		return models.User{}, err
	}
	user.CreatedAt = snowflake.Time(user.ID)
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, username string, email string, passwordHash []byte) (models.User, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", username).Scan(&taken)
	if err != nil {
		return models.User{}, fail(err)
	}
	if taken {
		return models.User{}, apperr.Conflict("Username is already taken")
	}

	err = s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)", email).Scan(&taken)
	if err != nil {
		return models.User{}, fail(err)
	}
	if taken {
		return models.User{}, apperr.Conflict("Email is already registered")
	}

	userID, err := s.newID()
	if err != nil {
		return models.User{}, err
	}

	_, err = s.db.ExecContext(ctx, "INSERT INTO users (id, email, username, display_name, avatar, status, password) VALUES (?, ?, ?, ?, '', ?, ?)",
		userID, email, username, username, models.StatusOffline, passwordHash)
	if err != nil {
		// lost a race against a concurrent registration
		if isUniqueViolation(err) {
			return models.User{}, apperr.Conflict("Username or email is already registered")
		}
		return models.User{}, fail(err)
	}

	s.sugar.Infof("User [%s] registered with ID [%d]", username, userID)
	return models.User{
		ID:          userID,
		UserName:    username,
		Email:       email,
		DisplayName: username,
		Status:      models.StatusOffline,
		CreatedAt:   snowflake.Time(userID),
	}, nil
}

func (s *Store) UserByID(ctx context.Context, userID int64) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users u WHERE u.id = ?", userID)
	user, err := scanUser(row)
	if err != nil {
		return models.User{}, notFoundOr(err, "User not found")
	}
	return user, nil
}

// UserByUsername is the only read that includes the password hash
func (s *Store) UserByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+", u.password FROM users u WHERE u.username = ?", username)

	var passwordHash []byte
	user, err := scanUser(row, &passwordHash)
	if err != nil {
		return models.User{}, notFoundOr(err, "User not found")
	}
	user.PasswordHash = passwordHash
	return user, nil
}

func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", userID).Scan(&exists)
	if err != nil {
		return false, fail(err)
	}
	return exists, nil
}

func (s *Store) UsersByIDs(ctx context.Context, userIDs []int64) (map[int64]models.User, error) {
	users := make(map[int64]models.User, len(userIDs))
	if len(userIDs) == 0 {
		return users, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users u WHERE u.id IN ("+placeholders(len(userIDs))+")", int64Args(userIDs)...)
	if err != nil {
		return nil, fail(err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fail(err)
		}
		users[user.ID] = user
	}
	return users, fail(rows.Err())
}

func (s *Store) SetUserStatus(ctx context.Context, userID int64, status string) error {
	result, err := s.db.ExecContext(ctx, "UPDATE users SET status = ? WHERE id = ?", status, userID)
	if err != nil {
		return fail(err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		// mysql reports 0 for unchanged rows too
		exists, err := s.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFoundf("User not found")
		}
	}
	return nil
}

func (s *Store) SetUserAvatar(ctx context.Context, userID int64, avatar string) (previous string, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT avatar FROM users WHERE id = ?", userID).Scan(&previous); err != nil {
			return notFoundOr(err, "User not found")
		}
		_, err := tx.ExecContext(ctx, "UPDATE users SET avatar = ? WHERE id = ?", avatar, userID)
		return err
	})
	return previous, err
}

func (s *Store) SetDisplayName(ctx context.Context, userID int64, displayName string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET display_name = ? WHERE id = ?", displayName, userID)
	return fail(err)
}
