package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/batch-sub-translator/internal/jobs"
	"github.com/MimeLyc/batch-sub-translator/internal/service"
	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
	"github.com/MimeLyc/batch-sub-translator/internal/translator"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:02,000
Good morning

2
00:00:03,000 --> 00:00:04,000
How are you?

3
00:00:05,000 --> 00:00:06,000
See you later
`

// scriptedGateway prefixes every text with "fr:" and fails texts listed in
// failing until they are removed.
type scriptedGateway struct {
	mu      sync.Mutex
	failing map[string]bool
}

func (g *scriptedGateway) Translate(_ context.Context, req translator.Request) ([]translator.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]translator.Result, len(req.Texts))
	for i, text := range req.Texts {
		if g.failing[text] {
			out[i] = translator.Result{Error: "refused"}
			continue
		}
		out[i] = translator.Result{Text: "fr:" + text}
	}
	return out, nil
}

func (g *scriptedGateway) heal() {
	g.mu.Lock()
	g.failing = nil
	g.mu.Unlock()
}

type testServer struct {
	srv   *Server
	orch  *service.Orchestrator
	queue *jobs.Queue
	gw    *scriptedGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gw := &scriptedGateway{}
	orch := service.NewOrchestrator(gw, service.DefaultOptions())
	queue := jobs.NewQueue(1)
	srv := NewServer(orch, queue, WithStreamInterval(20*time.Millisecond), WithAllowedOrigins([]string{"http://localhost:*"}))
	queue.Start(srv.Execute)
	t.Cleanup(queue.Stop)
	return &testServer{srv: srv, orch: orch, queue: queue, gw: gw}
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) load(t *testing.T) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/session", loadSessionRequest{Filename: "movie.srt", Content: sampleSRT})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (ts *testServer) session(t *testing.T) sessionResponse {
	t.Helper()
	rec := ts.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (ts *testServer) runToEnd(t *testing.T) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/run", runRequest{TargetLanguage: "fr"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Eventually(t, func() bool {
		return ts.srv.sessionResponse().Outcome == service.OutcomeCompleted && ts.queueIdle()
	}, 2*time.Second, 10*time.Millisecond)
}

func (ts *testServer) queueIdle() bool {
	for _, a := range ts.queue.List() {
		if !a.Status.Terminal() {
			return false
		}
	}
	return true
}

func TestServer_LoadSessionJSON(t *testing.T) {
	ts := newTestServer(t)
	ts.load(t)

	resp := ts.session(t)
	assert.Equal(t, "movie.srt", resp.Filename)
	assert.Equal(t, subtitle.FormatSRT, resp.Format)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "How are you?", resp.Items[1].Text)
	assert.Equal(t, subtitle.StatusPending, resp.Items[1].Status)
	assert.Equal(t, service.StateIdle, resp.State)
}

func TestServer_LoadSessionMultipart(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "episode.srt")
	require.NoError(t, err)
	_, err = part.Write([]byte(sampleSRT))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/session", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "episode.srt", ts.session(t).Filename)
}

func TestServer_LoadSessionRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/session", loadSessionRequest{Filename: "notes.txt", Content: "hi"})
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/session", loadSessionRequest{Content: sampleSRT})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RunAndExport(t *testing.T) {
	ts := newTestServer(t)
	ts.load(t)
	ts.runToEnd(t)

	resp := ts.session(t)
	assert.Equal(t, "fr", resp.TargetLanguage)
	assert.Equal(t, 100, resp.Progress.Percent)
	for _, it := range resp.Items {
		assert.Equal(t, subtitle.StatusTranslated, it.Status)
	}

	rec := ts.do(t, http.MethodGet, "/api/export?mode=bilingual", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Good morning\nfr:Good morning")
	assert.Equal(t, `attachment; filename=movie_fr.srt`, rec.Header().Get("Content-Disposition"))

	rec = ts.do(t, http.MethodGet, "/api/export?mode=original", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "fr:")
	assert.Equal(t, `attachment; filename=movie.srt`, rec.Header().Get("Content-Disposition"))

	rec = ts.do(t, http.MethodGet, "/api/export?mode=karaoke", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	actions := ts.do(t, http.MethodGet, "/api/actions", nil)
	var list []jobs.Action
	require.NoError(t, json.Unmarshal(actions.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, jobs.KindRun, list[0].Kind)
	assert.Equal(t, jobs.StatusSuccess, list[0].Status)
}

func TestServer_RunValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/run", runRequest{TargetLanguage: "fr"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.load(t)
	rec = ts.do(t, http.MethodPost, "/api/run", runRequest{TargetLanguage: "!!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/export", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RetryFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.gw.failing = map[string]bool{"How are you?": true, "See you later": true}
	ts.load(t)
	ts.runToEnd(t)

	resp := ts.session(t)
	require.Len(t, resp.FailedBatches, 1)
	assert.Equal(t, []int{2, 3}, resp.FailedBatches[0].ErrorIDs)

	ts.gw.heal()
	rec := ts.do(t, http.MethodPost, "/api/items/2/retry", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Eventually(t, func() bool {
		return ts.srv.sessionResponse().Items[1].Status == subtitle.StatusTranslated
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, ts.session(t).FailedBatches, 1)

	rec = ts.do(t, http.MethodPost, "/api/batches/10-0/retry", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Eventually(t, func() bool {
		return len(ts.srv.sessionResponse().FailedBatches) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "fr:See you later", ts.session(t).Items[2].TranslatedText)
}

func TestServer_RetryAll(t *testing.T) {
	ts := newTestServer(t)
	ts.gw.failing = map[string]bool{"Good morning": true}
	ts.load(t)
	ts.runToEnd(t)
	require.Len(t, ts.session(t).FailedBatches, 1)

	ts.gw.heal()
	rec := ts.do(t, http.MethodPost, "/api/batches/retry-all", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool {
		return len(ts.srv.sessionResponse().FailedBatches) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_BadIdentifiers(t *testing.T) {
	ts := newTestServer(t)
	ts.load(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/items/abc/retry", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/items/0/retry", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/batches/ten/retry", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/api/items/9", updateItemRequest{TranslatedText: "x"}).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodDelete, "/api/session", nil).Code)
}

func TestServer_UpdateItemAndReset(t *testing.T) {
	ts := newTestServer(t)
	ts.load(t)

	rec := ts.do(t, http.MethodPut, "/api/items/1", updateItemRequest{TranslatedText: "Bonjour"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var item subtitle.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "Bonjour", item.TranslatedText)
	assert.Equal(t, subtitle.StatusTranslated, item.Status)

	rec = ts.do(t, http.MethodPut, "/api/items/1", updateItemRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Validation", body["type"])
	assert.NotEmpty(t, body["advice"])

	rec = ts.do(t, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, subtitle.StatusPending, ts.session(t).Items[0].Status)
}

func TestServer_PauseResumeCancelWhileIdle(t *testing.T) {
	ts := newTestServer(t)
	ts.load(t)

	for _, path := range []string{"/api/pause", "/api/resume", "/api/cancel"} {
		rec := ts.do(t, http.MethodPost, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"state":"idle"}`, rec.Body.String())
	}
}

func TestServer_SessionStream(t *testing.T) {
	ts := newTestServer(t)
	ts.load(t)
	httpSrv := httptest.NewServer(ts.srv.Handler())
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/api/session/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var payload string
	for scanner.Scan() {
		if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			payload = data
			break
		}
	}
	require.NotEmpty(t, payload)

	var snap sessionResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &snap))
	assert.Len(t, snap.Items, 3)
	assert.Equal(t, "movie.srt", snap.Filename)
}

func TestServer_CORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/run", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/run", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
