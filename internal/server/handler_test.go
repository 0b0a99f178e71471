package server

import (
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

	"artyats/internal/ai"
	"artyats/internal/analysis"
	"artyats/internal/chat"
	"artyats/internal/config"
	"artyats/internal/errors"
	"artyats/internal/extract"
	"artyats/internal/prompts"
	"artyats/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cannedReplies = map[string]string{
	prompts.NameScore:     `{"atsPassScore":70,"humanRecruiterScore":80,"atsRealScore":76}`,
	prompts.NameSuggest:   `{"suggestedEdits":"- **Before:** Python dev\n- **After:** Python engineer"}`,
	prompts.NameRationale: `{"positiveFactors":"- Python","negativeFactors":"- No cloud"}`,
	prompts.NameFeedback:  `{"feedback":"- Add metrics to your bullets."}`,
	prompts.NameRevise:    `{"revisedSummary":"Python engineer.","enhancedKeyTerms":["Python"],"explanation":"Shorter."}`,
	prompts.NameChat:      `{"answer":"Mention Kubernetes."}`,
}

// fakeBackend serves cannedReplies unless a failure is set for an operation.
type fakeBackend struct {
	mu       sync.Mutex
	failures map[string]error
	replies  map[string]string
}

func (b *fakeBackend) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failures[req.Operation]; err != nil {
		return nil, err
	}
	if text, ok := b.replies[req.Operation]; ok {
		return &ai.GenerateResponse{Text: text}, nil
	}
	return &ai.GenerateResponse{Text: cannedReplies[req.Operation]}, nil
}

type stubBackends struct {
	models []*ai.ModelInfo
}

func (s stubBackends) GetModelInfo(context.Context) []*ai.ModelInfo { return s.models }

func (s stubBackends) GetCircuitBreakerStats() map[string]any {
	return map[string]any{"score": map[string]any{"state": "closed"}}
}

func testConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{MinJobDescriptionLength: 100, ScoreTolerance: 1.0},
		Chat:     config.ChatConfig{MaxContextTurns: 10, MaxSessions: 10},
		Extract:  config.ExtractConfig{MaxDocumentSize: 1 << 20, MaxPDFPages: 10},
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: "0", MaxBodySize: 1 << 20},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, backend *fakeBackend) *Server {
	t.Helper()
	reg, err := prompts.NewRegistry()
	require.NoError(t, err)
	gen := ai.NewInvoker(reg, ai.WithDefaultBackend(backend))

	sessions := chat.NewManager(gen, cfg.Chat, nil)
	t.Cleanup(sessions.Close)

	s := NewServer(cfg, Deps{
		Orchestrator: analysis.NewOrchestrator(gen, cfg.Analysis, nil),
		Sessions:     sessions,
		Extractor:    extract.New(cfg.Extract, nil),
	}, "test", nil)
	t.Cleanup(func() {
		if s.RateLimiter != nil {
			s.RateLimiter.Close()
		}
	})
	return s
}

func jobDescription() string {
	return "Senior Python Engineer, 5+ years required. " + strings.Repeat("You will build backend services in Python. ", 3)
}

func analysisBody() map[string]any {
	return map[string]any{
		"candidateName":      "Sam",
		"employmentStatus":   "employed",
		"resumeText":         "5 years Python, led 3 projects",
		"jobDescriptionText": jobDescription(),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAnalyzeHandler(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeBackend{})

	rec := doJSON(t, s.Handler(), http.MethodPost, "/analyze", analysisBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result types.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 76.0, result.Scores.ATSRealScore)
	assert.True(t, result.ScoreConsistent)
	assert.Equal(t, "- No cloud", result.RatingExplanation.NegativeFactors)
}

func TestAnalyzeHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		failures map[string]error
		replies  map[string]string
		mutate   func(map[string]any)
		status   int
		code     string
	}{
		{
			name:   "short job description",
			mutate: func(b map[string]any) { b["jobDescriptionText"] = "Senior Python Engineer" },
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:     "backend timeout",
			failures: map[string]error{prompts.NameScore: context.DeadlineExceeded},
			status:   http.StatusServiceUnavailable,
			code:     errors.ErrCodeBackendTimeout,
		},
		{
			name:    "malformed model output",
			replies: map[string]string{prompts.NameSuggest: "not json"},
			status:  http.StatusBadGateway,
			code:    errors.ErrCodeMalformedOutput,
		},
		{
			name: "content blocked",
			failures: map[string]error{prompts.NameScore: errors.NewContentPolicyError(
				errors.ErrCodeContentBlocked, "response blocked by safety filters", nil)},
			status: http.StatusUnprocessableEntity,
			code:   errors.ErrCodeContentBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), &fakeBackend{failures: tt.failures, replies: tt.replies})
			body := analysisBody()
			if tt.mutate != nil {
				tt.mutate(body)
			}

			rec := doJSON(t, s.Handler(), http.MethodPost, "/analyze", body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.True(t, strings.HasPrefix(resp.Message, analysis.FailurePrefix), resp.Message)
		})
	}
}

func TestAnalyzeHandlerRejectsBadRequests(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeBackend{})
	h := s.Handler()

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("candidateName=Sam"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.ErrCodeInvalidRequest, decodeError(t, rec).Code)

	req = httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/analyze", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestBodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodySize = 64
	s := newTestServer(t, cfg, &fakeBackend{})

	rec := doJSON(t, s.Handler(), http.MethodPost, "/analyze", analysisBody())
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, errors.ErrCodeRequestTooLarge, decodeError(t, rec).Code)
}

func TestFeedbackAndReviseHandlers(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeBackend{})
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/feedback", map[string]any{
		"candidateName":       "Sam",
		"resumeText":          "5 years Python",
		"jobDescriptionText":  jobDescription(),
		"atsPassScore":        70,
		"humanRecruiterScore": 80,
		"strengths":           "- Python",
		"weaknesses":          "- No cloud",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var feedback types.FeedbackResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feedback))
	assert.Contains(t, feedback.Feedback, "metrics")

	rec = doJSON(t, h, http.MethodPost, "/revise", map[string]any{
		"candidateName":      "Sam",
		"resumeText":         "5 years Python",
		"jobDescriptionText": jobDescription(),
		"communicationStyle": "formal",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var revision types.RevisionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &revision))
	assert.Equal(t, []string{"Python"}, revision.EnhancedKeyTerms)
}

func TestChatSessionLifecycle(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeBackend{})
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/chat/sessions", CreateSessionRequest{
		ResumeText:         "5 years Python",
		JobDescriptionText: jobDescription(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)
	assert.Empty(t, created.History)

	path := "/chat/sessions/" + created.SessionID
	rec = doJSON(t, h, http.MethodPost, path+"/messages", AskRequest{Question: "What should I add?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var turn types.ChatTurn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	assert.Equal(t, types.RoleAssistant, turn.Role)
	assert.Equal(t, "Mention Kubernetes.", turn.Content)

	rec = doJSON(t, h, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.History, 2)
	assert.Equal(t, "What should I add?", got.History[0].Content)
	assert.False(t, got.Awaiting)

	rec = doJSON(t, h, http.MethodPost, path+"/messages", AskRequest{Question: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.ErrCodeSessionNotFound, decodeError(t, rec).Code)

	rec = doJSON(t, h, http.MethodPost, path+"/messages", AskRequest{Question: "Still there?"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatFailureKeepsHistory(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestServer(t, testConfig(), backend)
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/chat/sessions", CreateSessionRequest{
		ResumeText:         "5 years Python",
		JobDescriptionText: jobDescription(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	backend.mu.Lock()
	backend.failures = map[string]error{prompts.NameChat: context.DeadlineExceeded}
	backend.mu.Unlock()

	path := "/chat/sessions/" + created.SessionID
	rec = doJSON(t, h, http.MethodPost, path+"/messages", AskRequest{Question: "What should I add?"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(t, h, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got.History)
}

func TestChatSessionLimitConflict(t *testing.T) {
	cfg := testConfig()
	cfg.Chat.MaxSessions = 1
	s := newTestServer(t, cfg, &fakeBackend{})
	h := s.Handler()

	body := CreateSessionRequest{ResumeText: "5 years Python", JobDescriptionText: jobDescription()}
	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/chat/sessions", body).Code)

	rec := doJSON(t, h, http.MethodPost, "/chat/sessions", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errors.ErrCodeSessionLimit, decodeError(t, rec).Code)

	rec = doJSON(t, h, http.MethodPost, "/chat/sessions", CreateSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Server.APIKeys = []string{"secret-key-123456"}
	s := newTestServer(t, cfg, &fakeBackend{})
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/analyze", analysisBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)

	rec = doJSON(t, h, http.MethodPost, "/analyze", analysisBody(), "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/analyze", analysisBody(), "X-API-Key", "secret-key-123456")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/analyze", analysisBody(), "Authorization", "Bearer secret-key-123456")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays open")
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true}
	s := newTestServer(t, cfg, &fakeBackend{})
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/analyze", analysisBody())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/analyze", analysisBody())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec).Code)

	rec = doJSON(t, h, http.MethodPost, "/analyze", analysisBody(), "X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, http.StatusOK, rec.Code, "other clients have their own budget")
}

func multipartUpload(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestExtractHandler(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeBackend{})
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "resume.txt", []byte("Sam Doe\r\n\r\n\r\n\r\nPython engineer  \r\n")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Sam Doe\n\nPython engineer", resp.Text)
	assert.Equal(t, string(extract.FormatText), resp.Format)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "resume.doc", []byte("legacy")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.ErrCodeUnsupportedFormat, decodeError(t, rec).Code)

	rec = doJSON(t, h, http.MethodPost, "/extract", map[string]string{"file": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractHandlerUploadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxBodySize = 512
	s := newTestServer(t, cfg, &fakeBackend{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, multipartUpload(t, "resume.txt", bytes.Repeat([]byte("a"), 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeBackend{})
	s.backends = stubBackends{models: []*ai.ModelInfo{{Operation: "score", Name: "gemini-2.0-flash", Available: true}}}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "ai_models")
	assert.Contains(t, body, "circuit_breakers")

	s.backends = stubBackends{models: []*ai.ModelInfo{{Operation: "score", Name: "gemini-2.0-flash", Error: "not found"}}}
	rec = doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestHealthHandlerExpiringCertificate(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, "cert.pem", "key.pem", time.Now().Add(2*time.Hour))
	reloader, err := newCertReloader(config.TLSConfig{Mode: "server", CertFile: certFile, KeyFile: keyFile}, nil, errors.Nop())
	require.NoError(t, err)

	s := newTestServer(t, testConfig(), &fakeBackend{})
	s.certReloader = reloader

	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	certs, ok := body["certificates"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "critical", certs["status"])
}

func TestStatsHandler(t *testing.T) {
	cfg := testConfig()
	cfg.Chat.SessionTTL = time.Hour
	s := newTestServer(t, cfg, &fakeBackend{})
	h := s.Handler()

	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/chat/sessions",
		CreateSessionRequest{ResumeText: "5 years Python", JobDescriptionText: jobDescription()}).Code)

	rec := doJSON(t, h, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RateLimiting map[string]any `json:"rate_limiting"`
		Chat         struct {
			ActiveSessions int    `json:"active_sessions"`
			SessionTTL     string `json:"session_ttl"`
		} `json:"chat"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body.RateLimiting["enabled"])
	assert.Equal(t, 1, body.Chat.ActiveSessions)
	assert.Equal(t, "1h0m0s", body.Chat.SessionTTL)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.NewValidationError(errors.ErrCodeInvalidInput, "bad", nil), http.StatusBadRequest},
		{errors.NewValidationError(errors.ErrCodeDocumentTooLarge, "big", nil), http.StatusRequestEntityTooLarge},
		{errors.NewNotFoundError(errors.ErrCodeSessionNotFound, "gone", nil), http.StatusNotFound},
		{errors.NewConflictError(errors.ErrCodeRequestInFlight, "busy", nil), http.StatusConflict},
		{errors.NewContentPolicyError(errors.ErrCodeContentBlocked, "blocked", nil), http.StatusUnprocessableEntity},
		{errors.NewSchemaViolationError(errors.ErrCodeMalformedOutput, "junk", nil), http.StatusBadGateway},
		{errors.NewBackendUnavailableError(errors.ErrCodeCircuitOpen, "open", nil), http.StatusServiceUnavailable},
		{analysis.Fail(errors.NewBackendUnavailableError(errors.ErrCodeBackendTimeout, "slow", nil)), http.StatusServiceUnavailable},
		{errors.NewIOError(errors.ErrCodeFileNotReadable, "io", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, status, tt.err.Error())
	}
}

func TestDisplayServerInfo(t *testing.T) {
	cfg := testConfig()
	cfg.Server.APIKeys = []string{"k1"}
	s := newTestServer(t, cfg, &fakeBackend{})

	var buf bytes.Buffer
	s.displayServerInfo(&buf)
	out := buf.String()
	assert.Contains(t, out, "POST   /analyze")
	assert.Contains(t, out, "API authentication: ENABLED (1 keys configured)")
	assert.Contains(t, out, "TLS: DISABLED")
}
