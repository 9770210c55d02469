package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/raksha/internal/config"
	"github.com/geocoder89/raksha/internal/domain/user"
	"github.com/geocoder89/raksha/internal/security"
	"github.com/gin-gonic/gin"
)

const storeTimeout = 3 * time.Second

type UserStore interface {
	Create(ctx context.Context, u user.User) error
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

type UsersHandler struct {
	users  UserStore
	tokens TokenIssuer
	now    func() time.Time
}

func NewUsersHandler(users UserStore, tokens TokenIssuer) *UsersHandler {
	return &UsersHandler{users: users, tokens: tokens, now: time.Now}
}

func (h *UsersHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	// cheap pre-check; the store's unique index still decides races
	if _, err := h.users.GetByEmail(cctx, req.Email); err == nil {
		RespondBadRequest(ctx, "User already exists", nil)
		return
	} else if !errors.Is(err, user.ErrNotFound) {
		RespondInternal(ctx, "users.register.lookup", err)
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			RespondBadRequest(ctx, "Password must be at most 72 bytes", nil)
			return
		}
		RespondInternal(ctx, "users.register.hash", err)
		return
	}

	u := user.New(req, hash, h.now())

	if err := h.users.Create(cctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondBadRequest(ctx, "User already exists", nil)
			return
		}
		RespondInternal(ctx, "users.register.create", err)
		return
	}

	h.respondToken(ctx, u.ID)
}

func (h *UsersHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	found, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnauthorized(ctx, "Invalid Credentials")
			return
		}
		RespondInternal(ctx, "users.login.lookup", err)
		return
	}

	if err := security.CheckPassword(found.PasswordHash, req.Password); err != nil {
		RespondUnauthorized(ctx, "Invalid Credentials")
		return
	}

	h.respondToken(ctx, found.ID)
}

// Me returns the caller's own record.
func (h *UsersHandler) Me(ctx *gin.Context) {
	userID, ok := callerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "users.me", err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) respondToken(ctx *gin.Context, userID string) {
	token, err := h.tokens.GenerateToken(userID)
	if err != nil {
		RespondInternal(ctx, "users.token", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": token})
}
