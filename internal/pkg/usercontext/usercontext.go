package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext identifies the owner of the API key used for a request
type UserContext struct {
	UserID        uint   `json:"user_id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Authenticated bool   `json:"authenticated"`
}

// GetUserContext retrieves the user context from fiber context
// Returns an anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

// Set stores the user context and the flat compatibility locals
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserContext, uc)
	c.Locals(KeyUserID, uc.UserID)
	c.Locals(KeyUserEmail, uc.Email)
}

// GetUserID returns the current user's ID, or 0 for anonymous requests
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}
