package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"snapgram/internal/config"
	"snapgram/internal/database"
	"snapgram/internal/media"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                   "test",
		Port:                  "0",
		JWTSecret:             "test-secret-that-is-at-least-32-chars",
		TokenTTLHours:         24,
		DBDriver:              "sqlite",
		SQLitePath:            ":memory:",
		AllowedOrigins:        "http://localhost:8081",
		AuthRateLimit:         10,
		AuthRateWindowSeconds: 60,
		MediaStorage:          "local",
		MediaMaxUploadBytes:   5 << 20,
	}
}

type testServer struct {
	*Server
	app *fiber.App
}

func newTestServer(t *testing.T, mutate ...func(*config.Config, *Deps)) *testServer {
	t.Helper()
	cfg := testConfig()

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	storage, err := media.NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	deps := Deps{DB: db, Storage: storage}
	for _, m := range mutate {
		m(cfg, &deps)
	}

	s, err := NewServer(cfg, deps)
	require.NoError(t, err)
	return &testServer{Server: s, app: s.App()}
}

func (ts *testServer) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, body
}

func newRawRequest(method, path, body, contentType string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	return req
}

func (ts *testServer) json(t *testing.T, method, path, token string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return ts.do(t, req)
}

type authResult struct {
	Token string `json:"token"`
	User  struct {
		ID        uint   `json:"id"`
		Username  string `json:"username"`
		Email     string `json:"email"`
		Avatar    string `json:"avatar"`
		Followers []uint `json:"followers"`
		Following []uint `json:"following"`
	} `json:"user"`
}

func (ts *testServer) register(t *testing.T, username string) authResult {
	t.Helper()
	resp, body := ts.json(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out authResult
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out.Error
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(32, 32)))
	return buf.Bytes()
}

// paddedJPEG returns a decodable JPEG grown to size with trailing bytes.
func paddedJPEG(t *testing.T, size int) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(64, 64), nil))
	data := buf.Bytes()
	if len(data) < size {
		data = append(data, make([]byte, size-len(data))...)
	}
	return data
}

type upload struct {
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, path, token, caption string, file *upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("caption", caption))
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, file.filename))
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(testConfig(), Deps{})
	assert.Error(t, err)
}

func TestHealthChecks(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.json(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"up"`)

	resp, body = ts.json(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"redis":"unavailable"`)
}

func TestReadinessCheck_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ts := newTestServer(t, func(_ *config.Config, d *Deps) { d.Redis = rdb })

	resp, _ := ts.json(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mr.Close()
	resp, body := ts.json(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), `"redis":"unhealthy"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/auth/me", "/api/posts/feed", "/api/posts/user/1", "/api/users/1"} {
		resp, body := ts.json(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.Equal(t, "Authorization required", errorMessage(t, body))
	}

	resp, body := ts.json(t, http.MethodGet, "/api/posts/feed", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid or expired token", errorMessage(t, body))
}

func TestUnknownAPIRoutesAreNotFound(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")

	for _, token := range []string{"", alice.Token} {
		resp, _ := ts.json(t, http.MethodGet, "/api/nope", token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	resp, body := ts.json(t, http.MethodGet, "/api/feature-flags", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Authorization required", errorMessage(t, body))
}

func TestBodyLimitFollowsMediaLimit(t *testing.T) {
	assert.Equal(t, 10<<20, bodyLimitFor(5<<20))
	assert.Equal(t, 24<<20, bodyLimitFor(12<<20))
}

func TestAuthRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ts := newTestServer(t, func(cfg *config.Config, d *Deps) {
		cfg.Env = "staging"
		cfg.AuthRateLimit = 2
		d.Redis = rdb
	})

	creds := fiber.Map{"email": "nobody@example.com", "password": "secret123"}
	for i := 0; i < 2; i++ {
		resp, _ := ts.json(t, http.MethodPost, "/api/auth/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := ts.json(t, http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestFeatureFlagsEndpoint(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config, _ *Deps) {
		cfg.FeatureFlags = "media_thumbnails=on,beta_feed=off"
	})
	alice := ts.register(t, "alice")

	resp, body := ts.json(t, http.MethodGet, "/api/feature-flags", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Evaluated["media_thumbnails"])
	assert.False(t, out.Evaluated["beta_feed"])
}

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "user ID", humanizeParam("userId"))
	assert.Equal(t, "post ID", humanizeParam("postId"))
	assert.Equal(t, "parent comment ID", humanizeParam("parentCommentId"))
	assert.Equal(t, "slug", humanizeParam("slug"))
}
