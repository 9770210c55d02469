package handlers

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/raksha/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// APIError is the body of every non-2xx answer. Mobile clients read msg.
type APIError struct {
	Msg       string      `json:"msg"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, msg string, details interface{}) {
	ctx.JSON(status, APIError{
		Msg:       msg,
		RequestID: requestIDFrom(ctx),
		Details:   details,
	})
}

func RespondBadRequest(ctx *gin.Context, msg string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, msg, details)
}

func RespondUnauthorized(ctx *gin.Context, msg string) {
	RespondError(ctx, http.StatusUnauthorized, msg, nil)
}

func RespondNotFound(ctx *gin.Context, msg string) {
	RespondError(ctx, http.StatusNotFound, msg, nil)
}

// RespondInternal hides err from the client and logs it.
func RespondInternal(ctx *gin.Context, op string, err error) {
	slog.Default().ErrorContext(ctx.Request.Context(), "handler.error",
		"op", op,
		"err", err,
		"request_id", requestIDFrom(ctx),
	)
	RespondError(ctx, http.StatusInternalServerError, "Server Error", nil)
}

// callerID returns the authenticated user id or answers 401.
func callerID(ctx *gin.Context) (string, bool) {
	id, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "No token, authorization denied")
		return "", false
	}
	return id, true
}
