package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbdemo/showcase/internal/client"
	"github.com/dbdemo/showcase/internal/config"
	"github.com/dbdemo/showcase/internal/middleware"
	"github.com/dbdemo/showcase/internal/poller"
	"github.com/dbdemo/showcase/internal/service"
	"github.com/dbdemo/showcase/internal/session"
	ws "github.com/dbdemo/showcase/internal/websocket"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

// remote fakes the generation queue
type remote struct {
	mu       sync.Mutex
	status   string
	workflow string
	submitOK bool
	srv      *httptest.Server
}

func newRemote(t *testing.T) *remote {
	t.Helper()
	r := &remote{status: "queued", submitOK: true}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/test", func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.submitOK {
			http.Error(w, "queue full", http.StatusServiceUnavailable)
			return
		}
		req.ParseMultipartForm(1 << 20)
		r.workflow = req.FormValue("workflow")
		w.Write([]byte(`{"job_id":"job-1","position_in_queue":3,"estimated_wait_seconds":90}`))
	})
	mux.HandleFunc("/api/result", func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.status == "done" {
			w.Write([]byte(`{"status":"done","image_url":"` + r.srv.URL + `/img/out.png"}`))
			return
		}
		w.Write([]byte(`{"status":"` + r.status + `"}`))
	})
	mux.HandleFunc("/api/notify", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"status":"PHONE_REGISTERED"}`))
	})
	mux.HandleFunc("/img/out.png", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	})
	r.srv = httptest.NewServer(mux)
	t.Cleanup(r.srv.Close)
	return r
}

func (r *remote) set(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

type testApp struct {
	app    *fiber.App
	remote *remote
	store  *session.MemoryStore
}

// setupApp builds the gateway against a fake queue with in-memory sessions
// and no Redis, so rate limiting and archiving are off
func setupApp(t *testing.T) *testApp {
	t.Helper()
	rm := newRemote(t)

	cfg := &config.Config{
		Remote:   config.RemoteConfig{BaseURL: rm.srv.URL + "/api", Timeout: 5},
		Carousel: config.CarouselConfig{Interval: 10 * time.Second},
		Session:  config.SessionConfig{Backend: "memory", TTL: time.Hour},
		RateLimit: config.RateLimitConfig{
			GeneratePerHour: 20,
		},
	}

	jobClient := client.NewJobClient(&cfg.Remote)
	store := session.NewMemoryStore()
	resultService := service.NewResultService(poller.New(jobClient, poller.DefaultPolicy()), jobClient, jobClient, nil)

	app := New(&Deps{
		Config:   cfg,
		Sessions: store,
		Generate: service.NewGenerateService(jobClient, store),
		Result:   resultService,
		Hub:      ws.NewHub(resultService.WatchJob),
		Services: Services{Remote: true},
	})
	return &testApp{app: app, remote: rm, store: store}
}

// doRequest is a helper to perform HTTP requests against the test app
func doRequest(t *testing.T, app *fiber.App, req *http.Request, cookie *http.Cookie) *http.Response {
	t.Helper()
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func generateRequest(t *testing.T, template string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if template != "" {
		require.NoError(t, mw.WriteField("template", template))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="me.png"`)
		h.Set("Content-Type", http.DetectContentType(image))
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		part.Write(image)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/generate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

// parseJSON parses response body into a map
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &result), "body: %s", body)
	return result
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode)
}

func errorCode(t *testing.T, resp *http.Response) (string, string) {
	t.Helper()
	body := parseJSON(t, resp)
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %v", body)
	return errObj["code"].(string), errObj["message"].(string)
}

func TestHealth(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	assert.Equal(t, "ok", body["status"])
	services := body["services"].(map[string]interface{})
	assert.Equal(t, true, services["remote"])
	assert.Equal(t, false, services["storage"])
}

func TestTemplates(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/templates", nil), nil)
	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	templates := body["templates"].([]interface{})
	require.Len(t, templates, 3)
	assert.Equal(t, "orfeu", templates[0].(map[string]interface{})["id"])
	assert.Equal(t, float64(10), body["intervalSeconds"])

	resp = doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/templates/1", nil), nil)
	assertStatus(t, resp, http.StatusOK)
	assert.Equal(t, "amstel", parseJSON(t, resp)["id"])

	resp = doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/templates/nope", nil), nil)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestGenerateThenResult(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, generateRequest(t, "caixa", pngBytes), nil)
	assertStatus(t, resp, http.StatusAccepted)
	cookie := sessionCookie(t, resp)

	body := parseJSON(t, resp)
	assert.Equal(t, "job-1", body["jobId"])
	assert.Equal(t, "#0C91DD", body["accentColor"])
	assert.Equal(t, "/result", body["redirect"])
	assert.Equal(t, float64(3), body["position"])
	assert.Equal(t, float64(90), body["eta"])
	assert.Equal(t, "caixa_production_model_v21.json", ta.remote.workflow)

	resp = doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/result", nil), cookie)
	assertStatus(t, resp, http.StatusOK)
	body = parseJSON(t, resp)
	assert.Equal(t, "job-1", body["jobId"])
	assert.Equal(t, "Na fila. Aguardando início do processamento...", body["text"])
	assert.Equal(t, true, body["pending"])

	ta.remote.set("done")
	resp = doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/result", nil), cookie)
	body = parseJSON(t, resp)
	assert.Equal(t, "Imagem pronta!", body["text"])
	assert.Equal(t, false, body["pending"])
	status := body["status"].(map[string]interface{})
	assert.Equal(t, ta.remote.srv.URL+"/img/out.png", status["imageUrl"])

	resp = doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/result/download", nil), cookie)
	assertStatus(t, resp, http.StatusOK)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename="[1-9][0-9]{4}_db_IA\.png"$`, resp.Header.Get("Content-Disposition"))
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, pngBytes, data)

	resp = doRequest(t, ta.app, httptest.NewRequest(http.MethodPost, "/api/result/share", nil), cookie)
	assertStatus(t, resp, http.StatusOK)
	body = parseJSON(t, resp)
	assert.Equal(t, ta.remote.srv.URL+"/img/out.png", body["url"])
	assert.Equal(t, false, body["archived"])
}

func TestResult_NoJob(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/result", nil), nil)
	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	assert.Equal(t, "Nenhum ID de job encontrado.", body["text"])

	resp = doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/result/download", nil), nil)
	assertStatus(t, resp, http.StatusNotFound)
	code, _ := errorCode(t, resp)
	assert.Equal(t, "NO_JOB", code)
}

func TestDownload_NotReady(t *testing.T) {
	ta := setupApp(t)
	cookie := sessionCookie(t, doRequest(t, ta.app, generateRequest(t, "orfeu", pngBytes), nil))

	resp := doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/result/download", nil), cookie)
	assertStatus(t, resp, http.StatusConflict)
	code, message := errorCode(t, resp)
	assert.Equal(t, "NOT_READY", code)
	assert.True(t, strings.HasPrefix(message, "Imagem não encontrada"))

	resp = doRequest(t, ta.app, httptest.NewRequest(http.MethodPost, "/api/result/share", nil), cookie)
	assertStatus(t, resp, http.StatusConflict)
}

func TestGenerate_SubmitFailure(t *testing.T) {
	ta := setupApp(t)
	ta.remote.submitOK = false

	resp := doRequest(t, ta.app, generateRequest(t, "orfeu", pngBytes), nil)
	assertStatus(t, resp, http.StatusBadGateway)
	code, message := errorCode(t, resp)
	assert.Equal(t, "UPSTREAM_ERROR", code)
	assert.True(t, strings.HasPrefix(message, "Erro ao enviar job: "), message)
	assert.Contains(t, message, "queue full")
}

func TestGenerate_Validation(t *testing.T) {
	ta := setupApp(t)

	cases := map[string]*http.Request{
		"missing template": generateRequest(t, "", pngBytes),
		"missing image":    generateRequest(t, "orfeu", nil),
		"unknown template": generateRequest(t, "banana", pngBytes),
		"not an image":     generateRequest(t, "orfeu", []byte("plain text, definitely not a picture")),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			resp := doRequest(t, ta.app, req, nil)
			assertStatus(t, resp, http.StatusBadRequest)
			code, _ := errorCode(t, resp)
			assert.Equal(t, "VALIDATION_ERROR", code)
		})
	}
	assert.Empty(t, ta.remote.workflow)
}

func TestNotify(t *testing.T) {
	ta := setupApp(t)
	cookie := sessionCookie(t, doRequest(t, ta.app, generateRequest(t, "orfeu", pngBytes), nil))

	req := httptest.NewRequest(http.MethodPost, "/api/notify", strings.NewReader(`{"phone":"+5511999990000"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := doRequest(t, ta.app, req, cookie)
	assertStatus(t, resp, http.StatusOK)
	assert.Equal(t, "PHONE_REGISTERED", parseJSON(t, resp)["status"])

	req = httptest.NewRequest(http.MethodPost, "/api/notify", strings.NewReader(`{"phone":"1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp = doRequest(t, ta.app, req, cookie)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestSessionCookie_Reused(t *testing.T) {
	ta := setupApp(t)
	first := sessionCookie(t, doRequest(t, ta.app, generateRequest(t, "orfeu", pngBytes), nil))

	resp := doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/result", nil), first)
	assert.Equal(t, first.Value, sessionCookie(t, resp).Value)

	bogus := &http.Cookie{Name: middleware.SessionCookie, Value: "not-a-uuid"}
	resp = doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/result", nil), bogus)
	assert.NotEqual(t, "not-a-uuid", sessionCookie(t, resp).Value)
}

func TestSession_UnknownCookieKeepsItsID(t *testing.T) {
	ta := setupApp(t)
	// a browser whose session expired server-side still carries a valid id
	id := uuid.New().String()
	cookie := &http.Cookie{Name: middleware.SessionCookie, Value: id}

	resp := doRequest(t, ta.app, generateRequest(t, "orfeu", pngBytes), cookie)
	assertStatus(t, resp, http.StatusAccepted)
	assert.Equal(t, id, sessionCookie(t, resp).Value)

	for i := 0; i < 5; i++ {
		other := &http.Cookie{Name: middleware.SessionCookie, Value: uuid.New().String()}
		doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/result", nil), other)
	}

	sess, err := ta.store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, "job-1", sess.JobID)

	resp = doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/result", nil), cookie)
	assertStatus(t, resp, http.StatusOK)
	assert.Equal(t, "job-1", parseJSON(t, resp)["jobId"])
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/ws/carousel", nil), nil)
	assertStatus(t, resp, http.StatusUpgradeRequired)
}

func TestUnknownRoute(t *testing.T) {
	ta := setupApp(t)

	resp := doRequest(t, ta.app, httptest.NewRequest(http.MethodGet, "/api/nope", nil), nil)
	assertStatus(t, resp, http.StatusNotFound)
	code, _ := errorCode(t, resp)
	assert.Equal(t, "NOT_FOUND", code)
}
