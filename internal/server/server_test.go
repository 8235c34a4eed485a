package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/shopfront/internal/config"
	"github.com/conneroisu/shopfront/internal/form"
	"github.com/conneroisu/shopfront/internal/inbox"
	"github.com/conneroisu/shopfront/internal/site"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	return &config.Config{
		Site: config.SiteConfig{
			Title:    "Acme Plumbing",
			URL:      "https://acme.example",
			Author:   "Acme Team",
			Language: "en-us",
			Pages:    []config.PageConfig{{Slug: "index", Title: "Acme Plumbing"}},
		},
		Content: config.ContentConfig{PostsDir: filepath.Join(root, "posts")},
		Build: config.BuildConfig{
			OutputDir: filepath.Join(root, "dist"),
			FeedFile:  "rss.xml",
			ImageDir:  "og",
		},
		Form: config.FormConfig{
			SuccessPath:   "/thank-you/",
			HoneypotField: "botcheck",
			Timeout:       time.Second,
		},
		Server: config.ServerConfig{
			Host:             "localhost",
			Port:             4321,
			Environment:      "development",
			ContactRateLimit: 10,
		},
		Brand: config.BrandConfig{
			Name:       "Acme",
			Background: "#0f172a",
			Accent:     "#f59e0b",
			Foreground: "#f8fafc",
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) *DevServer {
	t.Helper()

	builder, err := site.NewBuilder(cfg, nil)
	require.NoError(t, err)

	store, err := inbox.Open(context.Background(), inbox.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(cfg, builder, store, nil, opts...)
}

func serve(s *DevServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func postJSON(path string, body interface{}) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeContact(t *testing.T, rec *httptest.ResponseRecorder) ContactResponse {
	t.Helper()
	var resp ContactResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func validContact() map[string]interface{} {
	return map[string]interface{}{
		"name":     "Jane Doe",
		"email":    "jane@example.com",
		"service":  "Boiler repair",
		"message":  "My boiler makes a knocking noise.",
		"referrer": "https://acme.example/?utm_source=flyer&utm_campaign=spring",
	}
}

func TestContactJSONSuccessStoresSubmission(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := serve(s, postJSON("/api/contact", validContact()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeContact(t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, form.SuccessMessage, resp.Message)
	assert.Equal(t, "/thank-you/", resp.Redirect)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.RequestID)

	subs, err := s.inbox.List(context.Background(), inbox.ListOptions{})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Jane Doe", subs[0].Name)
	assert.Equal(t, "Boiler repair", subs[0].Service)
	assert.Equal(t, "flyer", subs[0].Attribution.Source)
	assert.Equal(t, "spring", subs[0].Attribution.Campaign)
	assert.Equal(t, "192.0.2.1", subs[0].RemoteAddr)
}

func TestContactFormEncoded(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	values := url.Values{}
	values.Set("name", "  Jane Doe  ")
	values.Set("email", "jane@example.com")
	values.Set("message", "Please send a quote\x00 for a new tap.")
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "https://acme.example/contact/?utm_medium=email")

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	subs, err := s.inbox.List(context.Background(), inbox.ListOptions{})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Jane Doe", subs[0].Name)
	assert.Equal(t, "Please send a quote for a new tap.", subs[0].Message)
	assert.Equal(t, "email", subs[0].Attribution.Medium)
}

func TestContactValidationErrors(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := serve(s, postJSON("/api/contact", map[string]string{"name": "J", "email": "nope"}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decodeContact(t, rec)
	assert.Equal(t, "idle", resp.Status)
	assert.Equal(t, "Please fix 3 errors in the form", resp.Announcement)
	assert.Contains(t, resp.Errors, "name")
	assert.Contains(t, resp.Errors, "email")
	assert.Contains(t, resp.Errors, "message")
	assert.NotContains(t, resp.Errors, "service")

	n, err := s.inbox.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestContactHoneypotAcknowledgedNotStored(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	body := validContact()
	body["botcheck"] = true
	rec := serve(s, postJSON("/api/contact", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decodeContact(t, rec).Status)

	n, err := s.inbox.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestContactForwardsToHostedRelay(t *testing.T) {
	var (
		mu       sync.Mutex
		received map[string]interface{}
		fail     bool
	)
	relayServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &received)
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"message":"quota exceeded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer relayServer.Close()

	cfg := testConfig(t)
	cfg.Form.Endpoint = relayServer.URL
	cfg.Form.AccessKey = "key-123"
	s := newTestServer(t, cfg)

	rec := serve(s, postJSON("/api/contact", validContact()))
	require.Equal(t, http.StatusOK, rec.Code)

	mu.Lock()
	assert.Equal(t, "key-123", received["access_key"])
	assert.Equal(t, "flyer", received["utm_source"])
	assert.Equal(t, "", received["botcheck"])
	fail = true
	mu.Unlock()

	rec = serve(s, postJSON("/api/contact", validContact()))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeContact(t, rec)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, form.FailureMessage, resp.Message)

	n, err := s.inbox.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "hosted relay submissions are not stored locally")
}

func TestContactUsesInjectedSubmitter(t *testing.T) {
	var calls int
	s := newTestServer(t, testConfig(t), WithSubmitter(form.SubmitterFunc(func(ctx context.Context, p form.Payload) error {
		calls++
		assert.Equal(t, "jane@example.com", p.Email)
		return nil
	})))

	rec := serve(s, postJSON("/api/contact", validContact()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestContactRateLimited(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.ContactRateLimit = 2
	s := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		rec := serve(s, postJSON("/api/contact", validContact()))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := serve(s, postJSON("/api/contact", validContact()))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, form.ErrRetryThrottled.Error(), decodeContact(t, rec).Message)

	other := postJSON("/api/contact", validContact())
	other.RemoteAddr = "198.51.100.7:5555"
	assert.Equal(t, http.StatusOK, serve(s, other).Code, "limits are per client")
}

func TestContactRejectsBadRequests(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/contact", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, serve(s, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, serve(s, req).Code)
}

func relayBody(extra map[string]interface{}) map[string]interface{} {
	body := map[string]interface{}{
		"name":       "Jane Doe",
		"email":      "jane@example.com",
		"message":    "Please call me about a quote.",
		"utm_source": "newsletter",
		"botcheck":   "",
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func TestRelayStoresSubmission(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := serve(s, postJSON("/relay", relayBody(nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp relayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	_, err := uuid.Parse(resp.ID)
	require.NoError(t, err)

	sub, err := s.inbox.Get(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "newsletter", sub.Attribution.Source)
}

func TestRelayDropsHoneypot(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := serve(s, postJSON("/relay", relayBody(map[string]interface{}{"botcheck": "buy now"})))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp relayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.ID)

	n, err := s.inbox.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelayChecksAccessKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Form.AccessKey = "key-123"
	s := newTestServer(t, cfg)

	rec := serve(s, postJSON("/relay", relayBody(map[string]interface{}{"access_key": "wrong"})))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(s, postJSON("/relay", relayBody(map[string]interface{}{"access_key": "key-123"})))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRelayRejectsBadRequests(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	assert.Equal(t, http.StatusMethodNotAllowed, serve(s, httptest.NewRequest(http.MethodGet, "/relay", nil)).Code)

	req := httptest.NewRequest(http.MethodPost, "/relay", strings.NewReader("not json"))
	assert.Equal(t, http.StatusBadRequest, serve(s, req).Code)

	noInbox := New(testConfig(t), nil, nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, serve(noInbox, postJSON("/relay", relayBody(nil))).Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		serve(noInbox, httptest.NewRequest(http.MethodGet, "/relay/submissions", nil)).Code)
}

func TestContactWithoutInboxFails(t *testing.T) {
	s := New(testConfig(t), nil, nil, nil)

	rec := serve(s, postJSON("/api/contact", validContact()))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "error", decodeContact(t, rec).Status)
}

func TestListSubmissions(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	ctx := context.Background()

	for _, name := range []string{"First Visitor", "Second Visitor"} {
		_, err := s.inbox.Save(ctx, inbox.Submission{Name: name, Email: "v@example.com", Message: "Hello there, friend."})
		require.NoError(t, err)
	}
	_, err := s.inbox.Save(ctx, inbox.Submission{Name: "Bot", Email: "b@example.com", Message: "spam spam spam", Spam: true})
	require.NoError(t, err)

	var body struct {
		Submissions []inbox.Submission `json:"submissions"`
		Count       int                `json:"count"`
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/relay/submissions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/relay/submissions?limit=1", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/relay/submissions?spam=true", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/relay/submissions?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSubmissionsEmpty(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/relay/submissions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"submissions":[],"count":0}`, rec.Body.String())
}

func TestStaticServesOutputWithoutCaching(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)

	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Build.OutputDir, "about"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Build.OutputDir, "index.html"),
		[]byte("<html><body><h1>Acme</h1></body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Build.OutputDir, "about", "index.html"),
		[]byte("<p>About us</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Build.OutputDir, "rss.xml"),
		[]byte("<rss></rss>"), 0o644))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	page := rec.Body.String()
	assert.Contains(t, page, `"/ws"`)
	assert.Less(t, strings.Index(page, "<script>"), strings.Index(page, "</body>"))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/about/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<p>About us</p><script>"))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/rss.xml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<rss></rss>", rec.Body.String())
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/missing.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/rss.xml", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestInjectLiveReload(t *testing.T) {
	out := string(injectLiveReload([]byte("<HTML><BODY>hi</BODY></HTML>"), nil))
	assert.True(t, strings.HasPrefix(out, "<HTML><BODY>hi<script>"))
	assert.True(t, strings.HasSuffix(out, "</script></BODY></HTML>"))

	out = string(injectLiveReload([]byte("fragment"), nil))
	assert.True(t, strings.HasPrefix(out, "fragment<script>"))

	out = string(injectLiveReload([]byte("<body>hi</body>"), errors.New("bad <post>")))
	assert.True(t, strings.HasPrefix(out, `<body>hi<div id="shopfront-error-overlay"`))
	assert.Contains(t, out, "bad &lt;post&gt;")
	assert.True(t, strings.HasSuffix(out, "</script></body>"))
}

func TestHealth(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)
	require.NoError(t, s.rebuild(context.Background(), nil))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	require.NotNil(t, health.Build)
	assert.Equal(t, int64(1), health.Build.SuccessfulBuilds)
	assert.Contains(t, health.Checks, "inbox")
	assert.Contains(t, health.Checks, "live_reload")

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRebuildFailureIsReported(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Content.PostsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Content.PostsDir, "broken.md"),
		[]byte("---\ntitle: No date\n---\n"), 0o644))
	s := newTestServer(t, cfg)

	err := s.handleFileChange(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, err, s.LastBuildError())

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(<-s.broadcast, &msg))
	assert.Equal(t, "build_error", msg.Type)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
}

func TestMiddleware(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	require.NoError(t, err)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", id)
	assert.Equal(t, id, serve(s, req).Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "not-a-uuid\n")
	assert.NotEqual(t, "not-a-uuid\n", serve(s, req).Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodOptions, "/api/contact", nil)
	req.Header.Set("Origin", "https://acme.example")
	rec = serve(s, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://acme.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	assert.Equal(t, "*", serve(s, req).Header().Get("Access-Control-Allow-Origin"))

	cfg.Server.Environment = "production"
	assert.Empty(t, serve(s, req).Header().Get("Access-Control-Allow-Origin"))
}
