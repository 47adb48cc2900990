package handlers

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/hub"
	"chatapp-backend/internal/permissions"
	"chatapp-backend/internal/rooms"
	"net/http"
)

type assignRoleRequest struct {
	RoleID hub.ID `json:"role_id" validate:"required"`
}

func (h *Handler) GetMemberList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.RequireMember(ctx, userIDFrom(r), serverID); err != nil {
		h.writeError(w, err)
		return
	}

	members, err := h.store.Members(ctx, serverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, members)
}

func (h *Handler) KickMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	targetID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userIDFrom(r), serverID, permissions.KickMembers); err != nil {
		h.writeError(w, err)
		return
	}

	ownerID, err := h.store.ServerOwner(ctx, serverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if targetID == ownerID {
		h.writeError(w, apperr.Forbidden("The owner can't be kicked"))
		return
	}

	if err := h.store.RemoveMember(ctx, serverID, targetID); err != nil {
		h.writeError(w, err)
		return
	}
	h.sugar.Infof("User ID [%d] kicked user ID [%d] from server ID [%d]", userIDFrom(r), targetID, serverID)

	h.hub.EvictFromServer(serverID, targetID, h.channelIDs(ctx, serverID))
	h.hub.EmitToRoom(rooms.ServerRoom(serverID), hub.MemberLeft, hub.MemberEvent{ServerID: serverID, UserID: targetID})
	h.respondMessage(w, "Member kicked")
}

func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	targetID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userIDFrom(r), serverID, permissions.ManageRoles); err != nil {
		h.writeError(w, err)
		return
	}

	var req assignRoleRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	role, err := h.store.RoleByID(ctx, int64(req.RoleID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if role.ServerID != serverID {
		h.writeError(w, apperr.NotFoundf("Role not found"))
		return
	}
	if err := h.gate.RequireGrantable(ctx, userIDFrom(r), serverID, role.Permissions); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.store.AssignRole(ctx, serverID, targetID, role.ID); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondMessage(w, "Role assigned")
}

func (h *Handler) UnassignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	targetID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userIDFrom(r), serverID, permissions.ManageRoles); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.store.UnassignRole(ctx, serverID, targetID, roleID); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondMessage(w, "Role removed")
}
