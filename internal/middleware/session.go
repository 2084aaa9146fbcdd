package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	"github.com/dbdemo/showcase/internal/model"
	"github.com/dbdemo/showcase/internal/session"
	"github.com/dbdemo/showcase/pkg/response"
)

const (
	SessionCookie = "showcase_session"
	SessionLocal  = "session"
)

// Session assigns every browser a session id cookie and loads its session
// into the request locals
func Session(store session.Store, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// cookie values point into the request buffer and the id outlives it
		id := utils.CopyString(c.Cookies(SessionCookie))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}

		sess, err := session.LoadOrNew(c.UserContext(), store, id)
		if err != nil {
			return response.ServiceError(c, "Failed to load session")
		}

		c.Cookie(&fiber.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		c.Locals(SessionLocal, sess)

		return c.Next()
	}
}

// GetSession returns the session loaded by the Session middleware
func GetSession(c *fiber.Ctx) *model.Session {
	if sess, ok := c.Locals(SessionLocal).(*model.Session); ok {
		return sess
	}
	return nil
}

// GetSessionID returns the session id or an empty string
func GetSessionID(c *fiber.Ctx) string {
	if sess := GetSession(c); sess != nil {
		return sess.ID
	}
	return ""
}
