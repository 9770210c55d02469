package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/raksha/internal/config"
	"github.com/geocoder89/raksha/internal/domain/user"
	"github.com/geocoder89/raksha/internal/sos"
	"github.com/gin-gonic/gin"
)

type UserMutator interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	Mutate(ctx context.Context, id string, fn func(*user.User) error) (user.User, error)
}

type SOSTrigger interface {
	Trigger(ctx context.Context, userID string) (sos.Plan, error)
}

const sosMessage = "SOS alert triggered successfully. Trusted contacts notified (simulated SMS/Email, and push if app user)."

// sosTimeout covers the contact lookups and the push batch.
const sosTimeout = 30 * time.Second

type SafetyHandler struct {
	users UserMutator
	sos   SOSTrigger
	now   func() time.Time
}

func NewSafetyHandler(users UserMutator, sos SOSTrigger) *SafetyHandler {
	return &SafetyHandler{users: users, sos: sos, now: time.Now}
}

func (h *SafetyHandler) UpdateLocation(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	var req user.UpdateLocationRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	var loc user.Location
	_, err := h.users.Mutate(cctx, userID, func(u *user.User) error {
		loc = u.SetLocation(*req.Latitude, *req.Longitude, h.now())
		return nil
	})
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "safety.location", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"msg":      "Location updated successfully",
		"location": loc,
	})
}

// SOS answers success whenever the caller exists; delivery problems are logged only.
func (h *SafetyHandler) SOS(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), sosTimeout)
	defer cancel()

	if _, err := h.sos.Trigger(cctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "safety.sos", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"msg": sosMessage})
}
