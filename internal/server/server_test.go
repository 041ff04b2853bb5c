package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linklogger/internal/metrics"
	"linklogger/internal/models"
	"linklogger/internal/monitor"
	"linklogger/internal/storage"
)

type testEnv struct {
	dir    string
	server *Server
}

func newTestEnv(t *testing.T, links []string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	collector := metrics.NewCollector()

	stats, err := storage.NewStatsStore(filepath.Join(dir, "link_stats.json"), links, logger)
	require.NoError(t, err)
	activity, err := storage.NewActivityLog(filepath.Join(dir, "status_log.txt"), logger)
	require.NoError(t, err)
	rawLog, err := storage.NewCSVJournal(filepath.Join(dir, "log_click.csv"))
	require.NoError(t, err)
	validClicks, err := storage.NewCSVJournal(filepath.Join(dir, "click_validi.csv"))
	require.NoError(t, err)
	external, err := storage.NewCSVJournal(filepath.Join(dir, "external_status_log.csv"))
	require.NoError(t, err)

	prober := monitor.NewProber(nil)
	mon := monitor.New(links, monitor.Deps{
		Prober:   prober,
		Stats:    stats,
		Activity: activity,
		RawLog:   rawLog,
		External: external,
		Clicks:   monitor.NewClickRecorder(validClicks, stats, collector, logger),
		CPA:      monitor.NewCPATask(filepath.Join(dir, "cpa_links.json"), prober, activity, collector, logger),
		Metrics:  collector,
		Logger:   logger,
	})

	return &testEnv{dir: dir, server: New(":0", mon, collector, 20*time.Millisecond, logger)}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, body))
	return rec
}

func TestHome(t *testing.T) {
	env := newTestEnv(t, []string{"https://example.com"})

	rec := env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, readyMessage, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats_FreshStart(t *testing.T) {
	links := []string{"https://example.com/a", "https://example.com/b"}
	env := newTestEnv(t, links)

	rec := env.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "\n  \"https://example.com/a\": {\n    \"success\": 0,")

	var got models.LinkStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.LinkStats{
		"https://example.com/a": {},
		"https://example.com/b": {},
	}, got)
}

func TestLog_NoFileYet(t *testing.T) {
	env := newTestEnv(t, []string{"https://example.com"})

	rec := env.do(t, http.MethodGet, "/log", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, noLogMessage, rec.Body.String())
}

func TestCheck_ThenReadBack(t *testing.T) {
	var hits atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	env := newTestEnv(t, []string{target.URL})

	rec := env.do(t, http.MethodGet, "/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, checkDoneMessage, rec.Body.String())
	assert.Equal(t, int32(1), hits.Load())

	var got models.LinkStats
	require.NoError(t, json.Unmarshal(env.do(t, http.MethodGet, "/stats", nil).Body.Bytes(), &got))
	assert.Equal(t, models.Counter{Success: 1}, got[target.URL])

	rec = env.do(t, http.MethodGet, "/log", nil)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), target.URL+" - STATUS: 200 - LATENCY: ")

	rec = env.do(t, http.MethodGet, "/status", nil)
	assert.Contains(t, rec.Body.String(), target.URL+" - STATUS: 200")

	var uptime []metrics.LinkUptime
	require.NoError(t, json.Unmarshal(env.do(t, http.MethodGet, "/api/uptime", nil).Body.Bytes(), &uptime))
	require.Len(t, uptime, 1)
	assert.Equal(t, 100.0, uptime[0].UptimePercent)

	for _, name := range []string{"log_click.csv", "click_validi.csv", "status_log.txt", "link_stats.json"} {
		_, err := os.Stat(filepath.Join(env.dir, name))
		assert.NoError(t, err, name)
	}
}

func TestCPA_EmptyListWritesOneEntry(t *testing.T) {
	env := newTestEnv(t, []string{"https://example.com"})
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "cpa_links.json"), []byte("[]"), 0o644))

	rec := env.do(t, http.MethodGet, "/cpa", nil)
	assert.Equal(t, cpaDoneMessage, rec.Body.String())

	body := env.do(t, http.MethodGet, "/status", nil).Body.String()
	assert.Equal(t, 1, strings.Count(body, " - CPA - STATUS: NO LINKS"))
	assert.NotContains(t, body, "<br>")
}

func TestCPA_MissingListWritesOneEntry(t *testing.T) {
	env := newTestEnv(t, []string{"https://example.com"})

	env.do(t, http.MethodGet, "/cpa", nil)

	body := env.do(t, http.MethodGet, "/log", nil).Body.String()
	assert.Equal(t, 1, strings.Count(body, " - CPA - STATUS: READ ERROR: "))
	assert.NotContains(t, body, "<br>")
}

func TestStatusPost(t *testing.T) {
	tests := []struct {
		name string
		body io.Reader
		want string
	}{
		{name: "message", body: strings.NewReader(`{"msg": "deploy ok"}`), want: "deploy ok"},
		{name: "no msg field", body: strings.NewReader(`{"other": 1}`), want: monitor.DefaultExternalMessage},
		{name: "empty body", body: nil, want: monitor.DefaultExternalMessage},
		{name: "malformed body", body: strings.NewReader(`{"msg":`), want: monitor.DefaultExternalMessage},
		{name: "non-string msg", body: strings.NewReader(`{"msg": 12}`), want: monitor.DefaultExternalMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, []string{"https://example.com"})

			rec := env.do(t, http.MethodPost, "/status", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, statusReceivedText, rec.Body.String())

			data, err := os.ReadFile(filepath.Join(env.dir, "external_status_log.csv"))
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(string(data), ",EXTERNAL_STATUS,"+tt.want+"\n"), string(data))

			body := env.do(t, http.MethodGet, "/status", nil).Body.String()
			assert.True(t, strings.HasSuffix(body, " - EXTERNAL - STATUS: "+tt.want), body)
		})
	}
}

func TestStatusGet_LastFiveEscaped(t *testing.T) {
	env := newTestEnv(t, []string{"https://example.com"})

	for _, msg := range []string{"one", "two", "three", "four", "five", "<b>six</b>"} {
		env.do(t, http.MethodPost, "/status", strings.NewReader(`{"msg": "`+msg+`"}`))
	}

	body := env.do(t, http.MethodGet, "/status", nil).Body.String()
	parts := strings.Split(body, "<br>")
	require.Len(t, parts, 5)
	assert.True(t, strings.HasSuffix(parts[0], "STATUS: two"))
	assert.True(t, strings.HasSuffix(parts[4], "STATUS: &lt;b&gt;six&lt;/b&gt;"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, []string{"https://example.com"})
	env.do(t, http.MethodPost, "/status", strings.NewReader(`{"msg": "hi"}`))

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "linklogger_external_status_total 1")
}

func TestActivityWebSocket(t *testing.T) {
	env := newTestEnv(t, []string{"https://example.com"})
	env.do(t, http.MethodPost, "/status", strings.NewReader(`{"msg": "first"}`))

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/activity", nil)
	require.NoError(t, err)
	defer conn.Close()

	var snapshot activitySnapshot
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&snapshot))
	require.Len(t, snapshot.Entries, 1)
	assert.True(t, strings.HasSuffix(snapshot.Entries[0], "EXTERNAL - STATUS: first"))

	env.do(t, http.MethodPost, "/status", strings.NewReader(`{"msg": "second"}`))

	require.Eventually(t, func() bool {
		var next activitySnapshot
		if err := conn.ReadJSON(&next); err != nil {
			return false
		}
		return len(next.Entries) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLog_AfterOversizedStatus(t *testing.T) {
	env := newTestEnv(t, []string{"https://example.com"})

	big := strings.Repeat("x", maxStatusBody-20)
	rec := env.do(t, http.MethodPost, "/status", strings.NewReader(`{"msg": "`+big+`"}`))
	require.Equal(t, statusReceivedText, rec.Body.String())
	env.do(t, http.MethodPost, "/status", strings.NewReader(`{"msg": "small"}`))

	body := env.do(t, http.MethodGet, "/log", nil).Body.String()
	assert.NotEqual(t, noLogMessage, body)
	parts := strings.Split(body, "<br>")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasSuffix(parts[0], "EXTERNAL - STATUS: "+big))
	assert.True(t, strings.HasSuffix(parts[1], "EXTERNAL - STATUS: small"))
}

func TestLog_UnreadableFile(t *testing.T) {
	env := newTestEnv(t, []string{"https://example.com"})
	require.NoError(t, os.Mkdir(filepath.Join(env.dir, "status_log.txt"), 0o755))

	rec := env.do(t, http.MethodGet, "/log", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, logErrorMessage, rec.Body.String())
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		origin string
		want   bool
	}{
		{name: "no origin", host: "monitor.local:10000", origin: "", want: true},
		{name: "same host", host: "monitor.local:10000", origin: "http://monitor.local:10000", want: true},
		{name: "case differs", host: "Monitor.Local:10000", origin: "https://monitor.local:10000", want: true},
		{name: "other host", host: "monitor.local:10000", origin: "https://evil.example", want: false},
		{name: "other port", host: "monitor.local:10000", origin: "http://monitor.local:8080", want: false},
		{name: "opaque origin", host: "monitor.local:10000", origin: "null", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws/activity", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, sameOrigin(req))
		})
	}
}
