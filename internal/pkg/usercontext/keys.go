package usercontext

// Locals keys set by the API key middleware
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUserID      = "user_id"
	KeyUserEmail   = "user_email"
)
