package handlers

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/blobstore"
	"chatapp-backend/internal/database"
	"chatapp-backend/internal/hub"
	"chatapp-backend/internal/metrics"
	"chatapp-backend/internal/models"
	"chatapp-backend/internal/permissions"
	"chatapp-backend/internal/rooms"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
)

const blobstoreRoute = blobstore.URLPrefix + "{name}"

type editMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// GetMessageList pages backwards with ?before=<message id>&limit=<n>
func (h *Handler) GetMessageList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID, err := pathID(r, "channelID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	before, err := queryInt(r, "before")
	if err != nil {
		h.writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, err)
		return
	}

	channel, err := h.store.ChannelByID(ctx, channelID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.RequireMember(ctx, userIDFrom(r), channel.ServerID); err != nil {
		h.writeError(w, err)
		return
	}

	messages, err := h.store.Messages(ctx, channelID, before, int(min(limit, database.MaxHistoryLimit)))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, messages)
}

// CreateMessage takes a form with content and any number of files[]
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)

	channelID, err := pathID(r, "channelID")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.parseForm(w, r); err != nil {
		h.writeError(w, err)
		return
	}

	content := r.FormValue("content")
	files := formFiles(r, "files[]", "files")
	if strings.TrimSpace(content) == "" && len(files) == 0 {
		h.writeError(w, apperr.Invalid("Message content is required"))
		return
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		h.writeError(w, apperr.Invalid("content must be at most 4000 characters"))
		return
	}
	if len(files) > maxFilesPerMessage {
		h.writeError(w, apperr.Invalid("Too many files"))
		return
	}

	channel, err := h.store.ChannelByID(ctx, channelID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.gate.Require(ctx, userID, channel.ServerID, permissions.SendMessages); err != nil {
		h.writeError(w, err)
		return
	}
	if len(files) > 0 {
		if err := h.gate.Require(ctx, userID, channel.ServerID, permissions.AttachFiles); err != nil {
			h.writeError(w, err)
			return
		}
	}

	var attachments []database.AttachmentInput
	var urls []string
	for _, header := range files {
		blob, err := h.storeFile(ctx, header, h.attachments)
		if err != nil {
			h.deleteBlobs(ctx, urls...)
			h.writeError(w, err)
			return
		}
		url := blobstore.URL(blob.Ref)
		urls = append(urls, url)
		attachments = append(attachments, database.AttachmentInput{
			Filename: header.Filename,
			FileType: blob.ContentType,
			URL:      url,
		})
	}

	message, err := h.store.CreateMessage(ctx, channelID, userID, content, attachments)
	if err != nil {
		h.deleteBlobs(ctx, urls...)
		h.writeError(w, err)
		return
	}
	metrics.MessagesTotal.Inc()

	h.hub.EmitToRoom(rooms.ChannelRoom(channelID), hub.NewMessage, hub.NewMessageEvent(message))
	h.respond(w, http.StatusCreated, message)
}

func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)

	messageID, err := pathID(r, "messageID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req editMessageRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	message, err := h.store.MessageByID(ctx, messageID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if message.UserID != userID {
		h.writeError(w, apperr.Forbidden("You can only edit your own messages"))
		return
	}

	edited, err := h.store.EditMessage(ctx, messageID, req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.hub.EmitToRoom(rooms.ChannelRoom(edited.ChannelID), hub.MessageEdited, hub.NewMessageEvent(edited))
	h.respond(w, http.StatusOK, edited)
}

// DeleteMessage is allowed for the author and for MANAGE_MESSAGES
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)

	messageID, err := pathID(r, "messageID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	message, err := h.store.MessageByID(ctx, messageID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if message.UserID != userID {
		channel, err := h.store.ChannelByID(ctx, message.ChannelID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if err := h.gate.Require(ctx, userID, channel.ServerID, permissions.ManageMessages); err != nil {
			h.writeError(w, err)
			return
		}
	}

	deleted, err := h.store.DeleteMessage(ctx, messageID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, a := range deleted.Attachments {
		h.deleteBlobs(ctx, a.URL)
	}

	h.hub.EmitToRoom(rooms.ChannelRoom(deleted.ChannelID), hub.MessageDeleted, hub.MessageDeletedEvent{MessageID: messageID, ChannelID: deleted.ChannelID})
	h.respondMessage(w, "Message deleted")
}

func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	f, err := h.blobs.Open(name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		h.writeError(w, apperr.Persistence(err))
		return
	}

	contentType := blobstore.ContentType(name)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	if !blobstore.Inline(contentType) {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	http.ServeContent(w, r, name, stat.ModTime(), f)
}
