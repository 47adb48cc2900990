package database

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/models"
	"chatapp-backend/internal/snowflake"
	"context"
	"database/sql"
	"errors"
)

func orderedPair(a int64, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

const friendColumns = "f.id, f.user1_id, f.user2_id, f.status"

func scanFriend(row scanner, extra ...any) (models.FriendAssociation, error) {
	var f models.FriendAssociation
	dest := append([]any{&f.ID, &f.User1ID, &f.User2ID, &f.Status}, extra...)
	if err := row.Scan(dest...); err != nil {
		return models.FriendAssociation{}, err
	}
	f.CreatedAt = snowflake.Time(f.ID)
	return f, nil
}

// SendFriendRequest creates a pending association from sender to receiver.
// Any existing association for the pair, whatever its status or direction,
// is a conflict.
func (s *Store) SendFriendRequest(ctx context.Context, senderID int64, receiverID int64) (models.FriendAssociation, error) {
	if senderID == receiverID {
		return models.FriendAssociation{}, apperr.Invalid("You can't add yourself as a friend")
	}

	low, high := orderedPair(senderID, receiverID)

	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM friend_associations WHERE pair_low = ? AND pair_high = ?)", low, high).Scan(&exists)
	if err != nil {
		return models.FriendAssociation{}, fail(err)
	}
	if exists {
		return models.FriendAssociation{}, apperr.Conflict("Friend request already exists")
	}

	requestID, err := s.newID()
	if err != nil {
		return models.FriendAssociation{}, err
	}

	_, err = s.db.ExecContext(ctx, "INSERT INTO friend_associations (id, user1_id, user2_id, pair_low, pair_high, status) VALUES (?, ?, ?, ?, ?, ?)",
		requestID, senderID, receiverID, low, high, models.FriendPending)
	if err != nil {
		// a concurrent request for the same pair won
		if isUniqueViolation(err) {
			return models.FriendAssociation{}, apperr.Conflict("Friend request already exists")
		}
		return models.FriendAssociation{}, fail(err)
	}

	return models.FriendAssociation{
		ID:        requestID,
		User1ID:   senderID,
		User2ID:   receiverID,
		Status:    models.FriendPending,
		CreatedAt: snowflake.Time(requestID),
	}, nil
}

func (s *Store) FriendAssociationByID(ctx context.Context, requestID int64) (models.FriendAssociation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+friendColumns+" FROM friend_associations f WHERE f.id = ?", requestID)
	f, err := scanFriend(row)
	if err != nil {
		return models.FriendAssociation{}, notFoundOr(err, "Friend request not found")
	}
	return f, nil
}

// pendingFor loads a pending request and checks the user is its receiver
func pendingFor(ctx context.Context, q querier, requestID int64, receiverID int64) (models.FriendAssociation, error) {
	row := q.QueryRowContext(ctx, "SELECT "+friendColumns+" FROM friend_associations f WHERE f.id = ?", requestID)
	f, err := scanFriend(row)
	if err != nil {
		return models.FriendAssociation{}, notFoundOr(err, "Friend request not found")
	}
	if f.Status != models.FriendPending {
		return models.FriendAssociation{}, apperr.NotFoundf("Friend request not found")
	}
	if f.User2ID != receiverID {
		return models.FriendAssociation{}, apperr.Forbidden("Not authorized to answer this friend request")
	}
	return f, nil
}

// AcceptFriendRequest turns the pending row into the single accepted
// association of the pair
func (s *Store) AcceptFriendRequest(ctx context.Context, requestID int64, receiverID int64) (models.FriendAssociation, error) {
	var f models.FriendAssociation
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if f, err = pendingFor(ctx, tx, requestID, receiverID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE friend_associations SET status = ? WHERE id = ? AND status = ?", models.FriendAccepted, requestID, models.FriendPending)
		f.Status = models.FriendAccepted
		return err
	})
	if err != nil {
		return models.FriendAssociation{}, err
	}
	return f, nil
}

// RejectFriendRequest deletes the pending row, the pair can start over
func (s *Store) RejectFriendRequest(ctx context.Context, requestID int64, receiverID int64) (models.FriendAssociation, error) {
	var f models.FriendAssociation
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if f, err = pendingFor(ctx, tx, requestID, receiverID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "DELETE FROM friend_associations WHERE id = ?", requestID)
		return err
	})
	if err != nil {
		return models.FriendAssociation{}, err
	}
	return f, nil
}

// PendingRequests lists requests addressed to the user with their sender
func (s *Store) PendingRequests(ctx context.Context, userID int64) ([]models.FriendAssociation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+friendColumns+`, `+userColumns+`
		FROM friend_associations f
		JOIN users u ON u.id = f.user1_id
		WHERE f.user2_id = ? AND f.status = ?
		ORDER BY f.id`, userID, models.FriendPending)
	if err != nil {
		return nil, fail(err)
	}
	defer rows.Close()

	requests := []models.FriendAssociation{}
	for rows.Next() {
		var sender models.User
		f, err := scanFriend(rows, &sender.ID, &sender.UserName, &sender.Email, &sender.DisplayName, &sender.Avatar, &sender.Status)
		if err != nil {
			return nil, fail(err)
		}
		sender.CreatedAt = snowflake.Time(sender.ID)
		f.Sender = &sender
		requests = append(requests, f)
	}
	return requests, fail(rows.Err())
}

// Friends lists the users with an accepted association to userID
func (s *Store) Friends(ctx context.Context, userID int64) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM friend_associations f
		JOIN users u ON u.id = CASE WHEN f.user1_id = ? THEN f.user2_id ELSE f.user1_id END
		WHERE (f.user1_id = ? OR f.user2_id = ?) AND f.status = ?
		ORDER BY u.username`, userID, userID, userID, models.FriendAccepted)
	if err != nil {
		return nil, fail(err)
	}
	defer rows.Close()

	friends := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fail(err)
		}
		friends = append(friends, user)
	}
	return friends, fail(rows.Err())
}

func (s *Store) AssociationBetween(ctx context.Context, a int64, b int64) (models.FriendAssociation, error) {
	low, high := orderedPair(a, b)
	row := s.db.QueryRowContext(ctx, "SELECT "+friendColumns+" FROM friend_associations f WHERE f.pair_low = ? AND f.pair_high = ?", low, high)
	f, err := scanFriend(row)
	if err != nil {
		return models.FriendAssociation{}, notFoundOr(err, "Friend not found")
	}
	return f, nil
}

func (s *Store) RemoveFriend(ctx context.Context, userID int64, friendID int64) error {
	low, high := orderedPair(userID, friendID)
	result, err := s.db.ExecContext(ctx, "DELETE FROM friend_associations WHERE pair_low = ? AND pair_high = ? AND status = ?", low, high, models.FriendAccepted)
	if err != nil {
		return fail(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fail(err)
	}
	if affected == 0 {
		return apperr.NotFoundf("Friend not found")
	}
	return nil
}

// BlockUser makes blockerID the first user of the pair's association and
// sets it to blocked, creating the row when the pair had none. A pair that
// is already blocked keeps its first blocker.
func (s *Store) BlockUser(ctx context.Context, blockerID int64, targetID int64) (models.FriendAssociation, error) {
	if blockerID == targetID {
		return models.FriendAssociation{}, apperr.Invalid("You can't block yourself")
	}

	low, high := orderedPair(blockerID, targetID)
	newID, err := s.newID()
	if err != nil {
		return models.FriendAssociation{}, err
	}

	f := models.FriendAssociation{User1ID: blockerID, User2ID: targetID, Status: models.FriendBlocked}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var existingID, existingBlocker int64
		var existingStatus string
		err := tx.QueryRowContext(ctx, "SELECT id, user1_id, status FROM friend_associations WHERE pair_low = ? AND pair_high = ?", low, high).
			Scan(&existingID, &existingBlocker, &existingStatus)
		switch {
		case err == nil && existingStatus == models.FriendBlocked:
			f.ID = existingID
			if existingBlocker != blockerID {
				f.User1ID, f.User2ID = targetID, blockerID
			}
			return nil
		case err == nil:
			f.ID = existingID
			_, err = tx.ExecContext(ctx, "UPDATE friend_associations SET user1_id = ?, user2_id = ?, status = ? WHERE id = ?", blockerID, targetID, models.FriendBlocked, existingID)
			return err
		case errors.Is(err, sql.ErrNoRows):
			f.ID = newID
			_, err = tx.ExecContext(ctx, "INSERT INTO friend_associations (id, user1_id, user2_id, pair_low, pair_high, status) VALUES (?, ?, ?, ?, ?, ?)",
				newID, blockerID, targetID, low, high, models.FriendBlocked)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return models.FriendAssociation{}, err
	}
	f.CreatedAt = snowflake.Time(f.ID)
	return f, nil
}
