package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dbdemo/showcase/internal/model"
	"github.com/dbdemo/showcase/internal/session"
)

type brokenStore struct{}

func (brokenStore) Load(context.Context, string) (*model.Session, error) {
	return nil, errors.New("disk on fire")
}
func (brokenStore) Save(context.Context, *model.Session) error { return nil }
func (brokenStore) Delete(context.Context, string) error        { return nil }

func newSessionApp(store session.Store, extra ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers := append([]fiber.Handler{Session(store, time.Hour)}, extra...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		return c.SendString(GetSessionID(c))
	})
	app.Get("/", handlers...)
	return app
}

func get(t *testing.T, app *fiber.App, cookie *http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func cookieFrom(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	return nil
}

func TestSession_AssignsAndReusesCookie(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &model.Session{
		ID:    "3f1c2a56-9a0e-4c3b-8f43-2f4d7d0b9a11",
		JobID: "job-1",
	}))
	app := newSessionApp(store)

	resp := get(t, app, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	first := cookieFrom(resp)
	require.NotNil(t, first)
	assert.True(t, first.HttpOnly)
	assert.Equal(t, 3600, first.MaxAge)

	resp = get(t, app, first)
	assert.Equal(t, first.Value, cookieFrom(resp).Value)

	known := &http.Cookie{Name: SessionCookie, Value: "3f1c2a56-9a0e-4c3b-8f43-2f4d7d0b9a11"}
	resp = get(t, app, known)
	assert.Equal(t, known.Value, cookieFrom(resp).Value)
}

func TestSession_StoreFailure(t *testing.T) {
	resp := get(t, newSessionApp(brokenStore{}), nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestGetSession_Missing(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		assert.Nil(t, GetSession(c))
		return c.SendString(GetSessionID(c))
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit_DisabledWithoutRedis(t *testing.T) {
	app := newSessionApp(session.NewMemoryStore(), NewRateLimiter(nil).GenerateLimit(1))

	resp := get(t, app, nil)
	cookie := cookieFrom(resp)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(t, app, cookie).StatusCode)
	}
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRateLimit_PerSession(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	rdb := setupRedis(t)
	app := newSessionApp(session.NewMemoryStore(), NewRateLimiter(rdb).GenerateLimit(2))

	resp := get(t, app, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Remaining"))
	cookie := cookieFrom(resp)

	assert.Equal(t, http.StatusOK, get(t, app, cookie).StatusCode)

	resp = get(t, app, cookie)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// a fresh session has its own window
	assert.Equal(t, http.StatusOK, get(t, app, nil).StatusCode)
}
