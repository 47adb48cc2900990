package handlers

import (
	"chatapp-backend/internal/hub"
	"chatapp-backend/internal/models"
	"net/http"
)

type addFriendRequest struct {
	Username string `json:"username" validate:"required"`
}

type answerFriendRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

type friend struct {
	models.User
	Online bool `json:"online"`
}

func (h *Handler) GetFriendList(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Friends(r.Context(), userIDFrom(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	friends := make([]friend, 0, len(users))
	for _, user := range users {
		user.Email = ""
		friends = append(friends, friend{User: user, Online: h.hub.IsOnline(user.ID)})
	}
	h.respond(w, http.StatusOK, friends)
}

func (h *Handler) AddFriend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)

	var req addFriendRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	receiver, err := h.store.UserByUsername(ctx, req.Username)
	if err != nil {
		h.writeError(w, err)
		return
	}

	request, err := h.store.SendFriendRequest(ctx, userID, receiver.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sender, err := h.store.UserByID(ctx, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sender.Email = ""
	request.Sender = &sender

	h.hub.EmitToUser(receiver.ID, hub.FriendRequest, request)
	h.respond(w, http.StatusCreated, request)
}

func (h *Handler) GetFriendRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.store.PendingRequests(r.Context(), userIDFrom(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, request := range requests {
		request.Sender.Email = ""
	}
	h.respond(w, http.StatusOK, requests)
}

// AnswerFriendRequest lets the receiver accept or reject, a rejected
// request is deleted so it can be sent again
func (h *Handler) AnswerFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)

	requestID, err := pathID(r, "requestID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req answerFriendRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if req.Action == "reject" {
		if _, err := h.store.RejectFriendRequest(ctx, requestID, userID); err != nil {
			h.writeError(w, err)
			return
		}
		h.respondMessage(w, "Friend request rejected")
		return
	}

	association, err := h.store.AcceptFriendRequest(ctx, requestID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.hub.EmitToUser(association.User1ID, hub.FriendRequestAccepted, association)
	h.respond(w, http.StatusOK, association)
}

func (h *Handler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	friendID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.store.RemoveFriend(r.Context(), userIDFrom(r), friendID); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondMessage(w, "Friend removed")
}

func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	targetID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if _, err := h.store.UserByID(ctx, targetID); err != nil {
		h.writeError(w, err)
		return
	}

	association, err := h.store.BlockUser(ctx, userIDFrom(r), targetID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, association)
}
