package handlers

import (
	"bytes"
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/database"
	"chatapp-backend/internal/hub"
	"chatapp-backend/internal/permissions"
	"chatapp-backend/internal/rooms"
	"net/http"

	"github.com/goccy/go-json"
)

type createChannelRequest struct {
	Name       string  `json:"name" validate:"required,max=100"`
	Type       string  `json:"type" validate:"omitempty,oneof=text voice"`
	Topic      string  `json:"topic" validate:"max=1024"`
	Private    bool    `json:"private"`
	CategoryID *hub.ID `json:"category_id"`
}

// category_id: absent keeps the category, null detaches, an id moves
type updateChannelRequest struct {
	Name       *string         `json:"name" validate:"omitnil,min=1,max=100"`
	Topic      *string         `json:"topic" validate:"omitnil,max=1024"`
	Private    *bool           `json:"private"`
	Position   *int            `json:"position" validate:"omitnil,min=0"`
	CategoryID json.RawMessage `json:"category_id"`
}

type createCategoryRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Position *int   `json:"position" validate:"omitnil,min=0"`
}

func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userIDFrom(r), serverID, permissions.ManageChannels); err != nil {
		h.writeError(w, err)
		return
	}

	var req createChannelRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	in := database.ChannelInput{Name: req.Name, Type: req.Type, Topic: req.Topic, Private: req.Private}
	if req.CategoryID != nil && *req.CategoryID != 0 {
		categoryID := int64(*req.CategoryID)
		in.CategoryID = &categoryID
	}

	channel, err := h.store.CreateChannel(ctx, serverID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.hub.EmitToRoom(rooms.ServerRoom(serverID), hub.ChannelCreated, channel)
	h.respond(w, http.StatusCreated, channel)
}

func (h *Handler) GetChannelList(w http.ResponseWriter, r *http.Request) {
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

	channels, err := h.store.Channels(ctx, serverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, channels)
}

func (h *Handler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID, err := pathID(r, "channelID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	channel, err := h.store.ChannelByID(ctx, channelID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userIDFrom(r), channel.ServerID, permissions.ManageChannels); err != nil {
		h.writeError(w, err)
		return
	}

	var req updateChannelRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	patch := database.ChannelPatch{Name: req.Name, Topic: req.Topic, Private: req.Private, Position: req.Position}
	switch raw := bytes.TrimSpace(req.CategoryID); {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		patch.ClearCategory = true
	default:
		var categoryID hub.ID
		if err := json.Unmarshal(raw, &categoryID); err != nil || categoryID == 0 {
			h.writeError(w, apperr.Invalid("Invalid category ID"))
			return
		}
		id := int64(categoryID)
		patch.CategoryID = &id
	}

	updated, err := h.store.UpdateChannel(ctx, channelID, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.hub.EmitToRoom(rooms.ServerRoom(updated.ServerID), hub.ChannelUpdated, updated)
	h.respond(w, http.StatusOK, updated)
}

func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID, err := pathID(r, "channelID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	channel, err := h.store.ChannelByID(ctx, channelID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userIDFrom(r), channel.ServerID, permissions.ManageChannels); err != nil {
		h.writeError(w, err)
		return
	}

	attachments, err := h.store.DeleteChannel(ctx, channelID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.deleteBlobs(ctx, attachments...)

	h.hub.EmitToRoom(rooms.ServerRoom(channel.ServerID), hub.ChannelDeleted, hub.ChannelRef{ServerID: channel.ServerID, ChannelID: channelID})
	h.respondMessage(w, "Channel deleted")
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	serverID, err := pathID(r, "serverID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userIDFrom(r), serverID, permissions.ManageChannels); err != nil {
		h.writeError(w, err)
		return
	}

	var req createCategoryRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	// appended after the existing ones unless a position was asked for
	var position int
	if req.Position != nil {
		position = *req.Position
	} else {
		categories, err := h.store.Categories(ctx, serverID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		position = len(categories)
	}

	category, err := h.store.CreateCategory(ctx, serverID, req.Name, position)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, category)
}

func (h *Handler) GetCategoryList(w http.ResponseWriter, r *http.Request) {
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

	categories, err := h.store.Categories(ctx, serverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, categories)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	category, err := h.store.CategoryByID(ctx, categoryID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userIDFrom(r), category.ServerID, permissions.ManageChannels); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.store.DeleteCategory(ctx, categoryID); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondMessage(w, "Category deleted")
}
