package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/raksha/internal/config"
	"github.com/geocoder89/raksha/internal/domain/user"
	"github.com/gin-gonic/gin"
)

const (
	msgContactRequired       = "Name and at least one of Phone or Email are required for trusted contact."
	msgContactUpdateRequired = "Name and at least one of Phone or Email are required for trusted contact update."
	msgContactNotFound       = "Trusted contact not found."
)

// ContactsHandler manages the caller's trusted contacts. Every answer carries
// the full, ordered contact list.
type ContactsHandler struct {
	users UserMutator
	now   func() time.Time
}

func NewContactsHandler(users UserMutator) *ContactsHandler {
	return &ContactsHandler{users: users, now: time.Now}
}

func (h *ContactsHandler) Add(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	var req user.ContactRequest
	if !BindJSONWithMessage(ctx, &req, msgContactRequired) {
		return
	}

	if !req.Valid() {
		RespondBadRequest(ctx, msgContactRequired, nil)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.Mutate(cctx, userID, func(u *user.User) error {
		_, err := u.AddContact(req, h.now())
		return err
	})
	if err != nil {
		h.respondMutateError(ctx, "contacts.add", err, msgContactRequired)
		return
	}

	ctx.JSON(http.StatusCreated, u.Contacts())
}

func (h *ContactsHandler) Update(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	var req user.ContactRequest
	if !BindJSONWithMessage(ctx, &req, msgContactUpdateRequired) {
		return
	}

	if !req.Valid() {
		RespondBadRequest(ctx, msgContactUpdateRequired, nil)
		return
	}

	contactID := ctx.Param("id")

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.Mutate(cctx, userID, func(u *user.User) error {
		_, err := u.UpdateContact(contactID, req, h.now())
		return err
	})
	if err != nil {
		h.respondMutateError(ctx, "contacts.update", err, msgContactUpdateRequired)
		return
	}

	ctx.JSON(http.StatusOK, u.Contacts())
}

// Delete is idempotent: an unknown contact id leaves the list unchanged.
func (h *ContactsHandler) Delete(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	contactID := ctx.Param("id")

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.Mutate(cctx, userID, func(u *user.User) error {
		u.RemoveContact(contactID, h.now())
		return nil
	})
	if err != nil {
		h.respondMutateError(ctx, "contacts.delete", err, "")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"msg":             "Trusted contact removed successfully.",
		"trustedContacts": u.Contacts(),
	})
}

func (h *ContactsHandler) List(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		h.respondMutateError(ctx, "contacts.list", err, "")
		return
	}

	ctx.JSON(http.StatusOK, u.Contacts())
}

func (h *ContactsHandler) respondMutateError(ctx *gin.Context, op string, err error, validationMsg string) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, user.ErrContactNotFound):
		RespondNotFound(ctx, msgContactNotFound)
	case errors.Is(err, user.ErrContactChannelRequired):
		RespondBadRequest(ctx, validationMsg, nil)
	default:
		RespondInternal(ctx, op, err)
	}
}
