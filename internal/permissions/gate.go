package permissions

import (
	"chatapp-backend/internal/apperr"
	"context"

	"go.uber.org/zap"
)

// MembershipSource is the part of the store the gate reads from.
// ServerOwner returns an apperr NotFound when the server doesn't exist,
// MemberRoleMasks reports isMember=false instead of an error for non members.
type MembershipSource interface {
	ServerOwner(ctx context.Context, serverID int64) (int64, error)
	MemberRoleMasks(ctx context.Context, serverID int64, userID int64) (masks []Permission, isMember bool, err error)
}

type Gate struct {
	source MembershipSource
	sugar  *zap.SugaredLogger
}

func NewGate(source MembershipSource, sugar *zap.SugaredLogger) *Gate {
	return &Gate{source: source, sugar: sugar}
}

// Require is called at the top of every mutating operation. It never panics,
// every missing record ends in a rejection.
func (g *Gate) Require(ctx context.Context, userID int64, serverID int64, required Permission) error {
	if userID == 0 {
		return apperr.Unauthenticated("Not authenticated")
	}

	ownerID, err := g.source.ServerOwner(ctx, serverID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return err
		}
		return apperr.Persistence(err)
	}
	if ownerID == userID {
		return nil
	}

	masks, isMember, err := g.source.MemberRoleMasks(ctx, serverID, userID)
	if err != nil {
		return apperr.Persistence(err)
	}
	if !isMember {
		g.sugar.Warnf("User ID [%d] tried to use [%s] in server ID [%d] they aren't a member of", userID, required, serverID)
		return apperr.Forbidden("Not a member of this server")
	}

	if !Allowed(false, masks, required) {
		g.sugar.Warnf("User ID [%d] lacks [%s] in server ID [%d]", userID, required, serverID)
		return apperr.Forbidden("Insufficient permissions")
	}
	return nil
}

// RequireMember only checks that the user belongs to the server, owners always do
func (g *Gate) RequireMember(ctx context.Context, userID int64, serverID int64) error {
	if userID == 0 {
		return apperr.Unauthenticated("Not authenticated")
	}

	ownerID, err := g.source.ServerOwner(ctx, serverID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return err
		}
		return apperr.Persistence(err)
	}
	if ownerID == userID {
		return nil
	}

	_, isMember, err := g.source.MemberRoleMasks(ctx, serverID, userID)
	if err != nil {
		return apperr.Persistence(err)
	}
	if !isMember {
		return apperr.Forbidden("Not a member of this server")
	}
	return nil
}

// RequireGrantable rejects a mask with bits the user doesn't hold themselves.
// Owners and administrators may grant anything.
func (g *Gate) RequireGrantable(ctx context.Context, userID int64, serverID int64, mask Permission) error {
	if userID == 0 {
		return apperr.Unauthenticated("Not authenticated")
	}

	ownerID, err := g.source.ServerOwner(ctx, serverID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return err
		}
		return apperr.Persistence(err)
	}
	if ownerID == userID {
		return nil
	}

	masks, isMember, err := g.source.MemberRoleMasks(ctx, serverID, userID)
	if err != nil {
		return apperr.Persistence(err)
	}
	if !isMember {
		return apperr.Forbidden("Not a member of this server")
	}

	held := Effective(masks)
	if held&Administrator != 0 {
		return nil
	}
	if missing := mask &^ held; missing != 0 {
		g.sugar.Warnf("User ID [%d] tried to grant [%s] in server ID [%d] without holding it", userID, missing, serverID)
		return apperr.Forbidden("You can't grant permissions you don't have")
	}
	return nil
}

// Check is the boolean form, any failure counts as a denial
func (g *Gate) Check(ctx context.Context, userID int64, serverID int64, required Permission) bool {
	return g.Require(ctx, userID, serverID, required) == nil
}
