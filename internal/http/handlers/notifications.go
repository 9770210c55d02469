package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/raksha/internal/config"
	"github.com/geocoder89/raksha/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type PushTokenStore interface {
	SetPushToken(ctx context.Context, id, token string) error
}

type NotificationsHandler struct {
	users PushTokenStore
}

func NewNotificationsHandler(users PushTokenStore) *NotificationsHandler {
	return &NotificationsHandler{users: users}
}

// RegisterToken stores the caller's Expo push token. A token already held by
// another account moves to the caller.
func (h *NotificationsHandler) RegisterToken(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	var req user.PushTokenRequest
	if !BindOptionalJSON(ctx, &req) {
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		RespondBadRequest(ctx, "Push token is required.", nil)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.users.SetPushToken(cctx, userID, token); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found.")
			return
		}
		RespondInternal(ctx, "notifications.token", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"msg": "Push token registered successfully."})
}
