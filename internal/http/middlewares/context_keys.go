package middlewares

// gin context keys shared by middlewares and handlers
const (
	CtxUserID    = "auth.userID"
	CtxRequestID = "request_id"
)
