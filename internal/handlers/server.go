package handlers

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/database"
	"chatapp-backend/internal/hub"
	"chatapp-backend/internal/models"
	"chatapp-backend/internal/permissions"
	"chatapp-backend/internal/rooms"
	"chatapp-backend/internal/validator"
	"net/http"
	"strings"
)

type serverForm struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1024"`
	Template    string `json:"template" validate:"max=32"`
}

type serverPatchForm struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=100"`
	Description *string `json:"description" validate:"omitnil,max=1024"`
}

type serverDetails struct {
	models.Server
	Categories []models.Category     `json:"categories"`
	Channels   []models.Channel      `json:"channels"`
	Members    []models.ServerMember `json:"members"`
}

// CreateServer takes a form with name, description, template and an icon file
func (h *Handler) CreateServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)

	if err := h.parseForm(w, r); err != nil {
		h.writeError(w, err)
		return
	}

	form := serverForm{
		Name:        strings.TrimSpace(r.FormValue("name")),
		Description: r.FormValue("description"),
		Template:    r.FormValue("template"),
	}
	if err := validator.Struct(form); err != nil {
		h.writeError(w, err)
		return
	}

	icon, err := h.storeUpload(ctx, r, "icon")
	if err != nil {
		h.writeError(w, err)
		return
	}

	server, err := h.store.CreateServer(ctx, userID, database.ServerInput{
		Name:        form.Name,
		Description: form.Description,
		Icon:        icon,
		Template:    form.Template,
	})
	if err != nil {
		h.deleteBlobs(ctx, icon)
		h.writeError(w, err)
		return
	}
	h.sugar.Infof("User ID [%d] created server ID [%d]", userID, server.ID)

	h.respond(w, http.StatusCreated, server)
}

func (h *Handler) GetServerList(w http.ResponseWriter, r *http.Request) {
	servers, err := h.store.ServersOfUser(r.Context(), userIDFrom(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, servers)
}

func (h *Handler) GetServer(w http.ResponseWriter, r *http.Request) {
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

	var details serverDetails
	if details.Server, err = h.store.ServerByID(ctx, serverID); err != nil {
		h.writeError(w, err)
		return
	}
	if details.Categories, err = h.store.Categories(ctx, serverID); err != nil {
		h.writeError(w, err)
		return
	}
	if details.Channels, err = h.store.Channels(ctx, serverID); err != nil {
		h.writeError(w, err)
		return
	}
	if details.Members, err = h.store.Members(ctx, serverID); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, details)
}

func (h *Handler) UpdateServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userIDFrom(r), serverID, permissions.ManageServer); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.parseForm(w, r); err != nil {
		h.writeError(w, err)
		return
	}

	var form serverPatchForm
	if name, sent := formValue(r, "name"); sent {
		name = strings.TrimSpace(name)
		form.Name = &name
	}
	if description, sent := formValue(r, "description"); sent {
		form.Description = &description
	}
	if err := validator.Struct(form); err != nil {
		h.writeError(w, err)
		return
	}

	patch := database.ServerPatch{Name: form.Name, Description: form.Description}
	icon, err := h.storeUpload(ctx, r, "icon")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if icon != "" {
		patch.Icon = &icon
	}

	server, previousIcon, err := h.store.UpdateServer(ctx, serverID, patch)
	if err != nil {
		h.deleteBlobs(ctx, icon)
		h.writeError(w, err)
		return
	}
	h.deleteBlobs(ctx, previousIcon)

	h.hub.EmitToRoom(rooms.ServerRoom(serverID), hub.ServerUpdated, server)
	h.respond(w, http.StatusOK, server)
}

// DeleteServer removes the rows first and the files after, a failed file
// delete leaves an orphan but never a server pointing at a missing icon
func (h *Handler) DeleteServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)

	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	ownerID, err := h.store.ServerOwner(ctx, serverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ownerID != userID {
		h.sugar.Warnf("User ID [%d] tried to delete server ID [%d] they don't own", userID, serverID)
		h.writeError(w, apperr.Forbidden("Only the owner can delete this server"))
		return
	}

	channelIDs := h.channelIDs(ctx, serverID)
	server, attachments, err := h.store.DeleteServer(ctx, serverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.deleteBlobs(ctx, append(attachments, server.Icon)...)

	h.hub.EmitToRoom(rooms.ServerRoom(serverID), hub.ServerDeleted, hub.ServerEvent{ServerID: serverID})
	h.hub.CloseServer(serverID, channelIDs)
	h.respondMessage(w, "Server deleted")
}

func (h *Handler) JoinServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	member, err := h.store.AddMember(r.Context(), serverID, userIDFrom(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.hub.EmitToRoom(rooms.ServerRoom(serverID), hub.MemberJoined, member)
	h.respond(w, http.StatusCreated, member)
}

func (h *Handler) LeaveServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)

	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	ownerID, err := h.store.ServerOwner(ctx, serverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ownerID == userID {
		h.writeError(w, apperr.Invalid("The owner can't leave their own server"))
		return
	}

	if err := h.store.RemoveMember(ctx, serverID, userID); err != nil {
		h.writeError(w, err)
		return
	}

	h.hub.EvictFromServer(serverID, userID, h.channelIDs(ctx, serverID))
	h.hub.EmitToRoom(rooms.ServerRoom(serverID), hub.MemberLeft, hub.MemberEvent{ServerID: serverID, UserID: userID})
	h.respondMessage(w, "Left server")
}
