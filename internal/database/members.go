package database

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/models"
	"chatapp-backend/internal/permissions"
	"chatapp-backend/internal/snowflake"
	"context"
	"database/sql"
	"errors"
	"time"
)

// AddMember joins a user to an existing server with the member rank
func (s *Store) AddMember(ctx context.Context, serverID int64, userID int64) (models.ServerMember, error) {
	if _, err := s.ServerOwner(ctx, serverID); err != nil {
		return models.ServerMember{}, err
	}

	isMember, err := s.IsMember(ctx, serverID, userID)
	if err != nil {
		return models.ServerMember{}, err
	}
	if isMember {
		return models.ServerMember{}, apperr.Conflict("Already a member of this server")
	}

	memberID, err := s.newID()
	if err != nil {
		return models.ServerMember{}, err
	}
	joinedAt := s.now().UTC()

	_, err = s.db.ExecContext(ctx, "INSERT INTO server_members (id, server_id, user_id, nickname, member_rank, joined_at) VALUES (?, ?, ?, '', ?, ?)",
		memberID, serverID, userID, models.RankMember, millis(joinedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return models.ServerMember{}, apperr.Conflict("Already a member of this server")
		}
		return models.ServerMember{}, fail(err)
	}

	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return models.ServerMember{}, err
	}

	return models.ServerMember{
		ID:       memberID,
		ServerID: serverID,
		UserID:   userID,
		Rank:     models.RankMember,
		JoinedAt: time.UnixMilli(millis(joinedAt)).UTC(),
		User:     user,
		Roles:    []models.Role{},
	}, nil
}

func (s *Store) RemoveMember(ctx context.Context, serverID int64, userID int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM server_members WHERE server_id = ? AND user_id = ?", serverID, userID)
	if err != nil {
		return fail(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fail(err)
	}
	if affected == 0 {
		return apperr.NotFoundf("Member not found")
	}
	return nil
}

func (s *Store) IsMember(ctx context.Context, serverID int64, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM server_members WHERE server_id = ? AND user_id = ?)", serverID, userID).Scan(&exists)
	if err != nil {
		return false, fail(err)
	}
	return exists, nil
}

// MemberRoleMasks returns the permission masks of every role the member holds.
// A member without roles gets an empty slice, a non member isMember=false.
func (s *Store) MemberRoleMasks(ctx context.Context, serverID int64, userID int64) ([]permissions.Permission, bool, error) {
	var memberID int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM server_members WHERE server_id = ? AND user_id = ?", serverID, userID).Scan(&memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fail(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.permissions FROM roles r
		JOIN member_roles mr ON mr.role_id = r.id
		WHERE mr.member_id = ?`, memberID)
	if err != nil {
		return nil, true, fail(err)
	}
	defer rows.Close()

	masks := []permissions.Permission{}
	for rows.Next() {
		var mask int64
		if err := rows.Scan(&mask); err != nil {
			return nil, true, fail(err)
		}
		masks = append(masks, permissions.Permission(mask))
	}
	return masks, true, fail(rows.Err())
}

// Members lists the members of a server with their user and roles,
// ordered by join time
func (s *Store) Members(ctx context.Context, serverID int64) ([]models.ServerMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.server_id, m.user_id, m.nickname, m.member_rank, m.joined_at, `+userColumns+`
		FROM server_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.server_id = ?
		ORDER BY m.joined_at, m.id`, serverID)
	if err != nil {
		return nil, fail(err)
	}
	defer rows.Close()

	members := []models.ServerMember{}
	index := make(map[int64]int)
	for rows.Next() {
		var member models.ServerMember
		var joinedAt int64
		user, err := scanUserAfter(rows, &member.ID, &member.ServerID, &member.UserID, &member.Nickname, &member.Rank, &joinedAt)
		if err != nil {
			return nil, fail(err)
		}
		member.JoinedAt = time.UnixMilli(joinedAt).UTC()
		member.User = user
		member.Roles = []models.Role{}

		index[member.ID] = len(members)
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(err)
	}
	rows.Close()

	roleRows, err := s.db.QueryContext(ctx, `
		SELECT mr.member_id, `+roleColumns+`
		FROM member_roles mr
		JOIN roles r ON r.id = mr.role_id
		JOIN server_members m ON m.id = mr.member_id
		WHERE m.server_id = ?
		ORDER BY r.id`, serverID)
	if err != nil {
		return nil, fail(err)
	}
	defer roleRows.Close()

	for roleRows.Next() {
		var memberID int64
		role, err := scanRole(roleRows, &memberID)
		if err != nil {
			return nil, fail(err)
		}
		if i, ok := index[memberID]; ok {
			members[i].Roles = append(members[i].Roles, role)
		}
	}
	return members, fail(roleRows.Err())
}

// scanUserAfter scans leading columns into prefix and the user columns after them
func scanUserAfter(row scanner, prefix ...any) (models.User, error) {
	var user models.User
	dest := append(prefix, &user.ID, &user.UserName, &user.Email, &user.DisplayName, &user.Avatar, &user.Status)
	if err := row.Scan(dest...); err != nil {
		return models.User{}, err
	}
	user.CreatedAt = snowflake.Time(user.ID)
	return user, nil
}

// AssignRole attaches a role to a member. The role has to belong to the
// same server as the membership, a role from another server is NotFound.
func (s *Store) AssignRole(ctx context.Context, serverID int64, userID int64, roleID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		memberID, err := memberIDOf(ctx, tx, serverID, userID)
		if err != nil {
			return err
		}

		var roleServerID int64
		err = tx.QueryRowContext(ctx, "SELECT server_id FROM roles WHERE id = ?", roleID).Scan(&roleServerID)
		if err != nil {
			return notFoundOr(err, "Role not found")
		}
		if roleServerID != serverID {
			s.sugar.Warnf("Refused to assign role ID [%d] of server ID [%d] to a member of server ID [%d]", roleID, roleServerID, serverID)
			return apperr.NotFoundf("Role not found")
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO member_roles (member_id, role_id) VALUES (?, ?)", memberID, roleID)
		if err != nil && isUniqueViolation(err) {
			return apperr.Conflict("Member already has this role")
		}
		return err
	})
}

func (s *Store) UnassignRole(ctx context.Context, serverID int64, userID int64, roleID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		memberID, err := memberIDOf(ctx, tx, serverID, userID)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM member_roles WHERE member_id = ? AND role_id = ?", memberID, roleID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFoundf("Member doesn't have this role")
		}
		return nil
	})
}

func memberIDOf(ctx context.Context, q querier, serverID int64, userID int64) (int64, error) {
	var memberID int64
	err := q.QueryRowContext(ctx, "SELECT id FROM server_members WHERE server_id = ? AND user_id = ?", serverID, userID).Scan(&memberID)
	if err != nil {
		return 0, notFoundOr(err, "Member not found")
	}
	return memberID, nil
}
