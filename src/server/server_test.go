package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Protocol-Lattice/go-support-desk/src/metrics"
	"github.com/Protocol-Lattice/go-support-desk/src/models"
	"github.com/Protocol-Lattice/go-support-desk/src/ocr"
	"github.com/Protocol-Lattice/go-support-desk/src/support"
	"github.com/Protocol-Lattice/go-support-desk/src/transcript"
)

type stubLLM struct {
	calls  atomic.Int32
	err    error
	wait   bool
	prompt atomic.Value
}

func (s *stubLLM) Generate(ctx context.Context, p string) (models.Response, error) {
	s.calls.Add(1)
	s.prompt.Store(p)
	if s.wait {
		<-ctx.Done()
		return models.Response{}, ctx.Err()
	}
	if s.err != nil {
		return models.Response{}, s.err
	}
	return models.Response{Text: "Try turning it off and on again.", Provider: "fake", Model: "fake-1"}, nil
}

func newTestRouter(t *testing.T, llm models.LLM, opts Options, svcOpts ...support.Option) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := support.New(llm, svcOpts...)
	require.NoError(t, err)
	return NewRouter(svc, opts)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))))
	return buf.Bytes()
}

func multipartBody(t *testing.T, question, filename string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("question", question))
	if filename != "" {
		part, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, &stubLLM{}, Options{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIndexRendersForm(t *testing.T) {
	r := newTestRouter(t, &stubLLM{}, Options{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Get IT Support Response")
	assert.Contains(t, w.Body.String(), `name="image"`)
}

func TestCreateQueryJSON(t *testing.T) {
	llm := &stubLLM{}
	r := newTestRouter(t, llm, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"question":"printer won't turn on"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp queryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Try turning it off and on again.", resp.Answer)
	assert.Equal(t, "fake", resp.Provider)
	assert.NotEmpty(t, resp.ID)
	assert.EqualValues(t, 1, llm.calls.Load())
}

func TestCreateQueryEmptyQuestion(t *testing.T) {
	llm := &stubLLM{}
	r := newTestRouter(t, llm, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"question":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), support.EmptyQuestionWarning)
	assert.EqualValues(t, 0, llm.calls.Load())
}

func TestCreateQueryProviderFailure(t *testing.T) {
	llm := &stubLLM{err: &models.StatusError{Provider: "gemini-rest", StatusCode: 500, Body: "server error"}}
	r := newTestRouter(t, llm, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"question":"vpn"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadGateway, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Error 500: server error", resp.Error)
	assert.Equal(t, 500, resp.Status)
	assert.Equal(t, "server error", resp.Body)
}

func TestCreateQueryTimeout(t *testing.T) {
	llm := &stubLLM{wait: true}
	r := newTestRouter(t, llm, Options{}, support.WithTimeout(10*time.Millisecond))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"question":"slow"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestCreateQueryMultipartAttachment(t *testing.T) {
	llm := &stubLLM{}
	r := newTestRouter(t, llm, Options{})

	body, ct := multipartBody(t, "what does this dialog mean?", "shot.png", pngBytes(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	prompt, _ := llm.prompt.Load().(string)
	assert.Contains(t, prompt, ocr.StubText)
}

func TestCreateQueryRejectsBadAttachments(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		data     []byte
		max      int64
		want     int
	}{
		{"wrong extension", "notes.txt", []byte("hello"), 0, http.StatusUnsupportedMediaType},
		{"not an image", "fake.png", []byte("this is plain text, not a png"), 0, http.StatusUnsupportedMediaType},
		{"too large", "big.png", bytes.Repeat([]byte{0x89}, 2048), 1024, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &stubLLM{}
			r := newTestRouter(t, llm, Options{MaxUploadBytes: tc.max})
			body, ct := multipartBody(t, "help", tc.filename, tc.data)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code, w.Body.String())
			assert.EqualValues(t, 0, llm.calls.Load())
		})
	}
}

func TestSubmitFormRendersWarningAndAnswer(t *testing.T) {
	llm := &stubLLM{}
	r := newTestRouter(t, llm, Options{})

	body, ct := multipartBody(t, "  ", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `class="warning">Please enter your question!`)
	assert.EqualValues(t, 0, llm.calls.Load())

	body, ct = multipartBody(t, "monitor is blank", "screen.png", pngBytes(t))
	req = httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "IT Support Response")
	assert.Contains(t, w.Body.String(), "Try turning it off and on again.")
	assert.Contains(t, w.Body.String(), "screen.png (4&times;3)")
}

func TestSubmitFormShowsProviderErrorDistinctly(t *testing.T) {
	llm := &stubLLM{err: &models.StatusError{StatusCode: 500, Body: "server error"}}
	r := newTestRouter(t, llm, Options{})

	body, ct := multipartBody(t, "mail not syncing", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `class="error">Error 500: server error`)
	assert.NotContains(t, w.Body.String(), `class="answer"`)
}

func TestAPIKeyAuth(t *testing.T) {
	r := newTestRouter(t, &stubLLM{}, Options{APIKeys: []string{"desk-key"}})

	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong bearer", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer desk-key", http.StatusOK},
		{"x-api-key", "X-API-Key", "desk-key", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/transcripts", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestListTranscripts(t *testing.T) {
	store := transcript.NewMemoryStore(10)
	r := newTestRouter(t, &stubLLM{}, Options{}, support.WithTranscript(store))

	for _, q := range []string{"first", "second"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"question":"`+q+`"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/transcripts?limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Transcripts []transcript.Record `json:"transcripts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Transcripts, 1)
	assert.Equal(t, "second", resp.Transcripts[0].Question)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/transcripts?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := newTestRouter(t, &stubLLM{}, Options{Gatherer: reg}, support.WithMetrics(m))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `support_desk_dispatches_total{outcome="ok",provider="fake"} 1`)
}
