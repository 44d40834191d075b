package relaytwin_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vdavid/mailmate/internal/relaytwin"
)

func setupTwin(t *testing.T, opts relaytwin.Options) (*httptest.Server, *relaytwin.Store) {
	t.Helper()
	store := relaytwin.NewStore()
	srv := httptest.NewServer(relaytwin.NewRouter(store, opts))
	t.Cleanup(srv.Close)
	return srv, store
}

func multipartBody(t *testing.T, fields map[string]string, files ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, key := range []string{"email", "message", "subject"} {
		if v, ok := fields[key]; ok {
			require.NoError(t, w.WriteField(key, v))
		}
	}
	for _, name := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestSendEmailJSON(t *testing.T) {
	srv, store := setupTwin(t, relaytwin.Options{})

	resp, err := http.Post(srv.URL+relaytwin.SendEmailPath, "application/json",
		strings.NewReader(`{"email":"a@b.com","message":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["id"])

	subs := store.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "json", subs[0].Format)
	assert.Equal(t, "a@b.com", subs[0].Email)
	assert.Equal(t, "hi", subs[0].Message)
	assert.False(t, subs[0].HasSubject)
}

func TestSendEmailMultipartKeepsFileOrder(t *testing.T) {
	srv, store := setupTwin(t, relaytwin.Options{})

	body, contentType := multipartBody(t, map[string]string{
		"email":   "a@b.com",
		"message": "hi",
		"subject": "Hello",
	}, "a.txt", "b.txt", "a.txt")

	resp, err := http.Post(srv.URL+relaytwin.SendEmailPath, contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	subs := store.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "multipart", subs[0].Format)
	assert.True(t, subs[0].HasSubject)
	assert.Equal(t, "Hello", subs[0].Subject)
	require.Len(t, subs[0].Files, 3)
	assert.Equal(t, "a.txt", subs[0].Files[0].Name)
	assert.Equal(t, "b.txt", subs[0].Files[1].Name)
	assert.Equal(t, "a.txt", subs[0].Files[2].Name)
	assert.Equal(t, []byte("content of b.txt"), subs[0].Files[1].Content)
}

func TestSendEmailValidation(t *testing.T) {
	srv, store := setupTwin(t, relaytwin.Options{})

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"missing message", "application/json", `{"email":"a@b.com"}`, http.StatusUnprocessableEntity},
		{"malformed email", "application/json", `{"email":"nope","message":"hi"}`, http.StatusUnprocessableEntity},
		{"broken JSON", "application/json", `{`, http.StatusBadRequest},
		{"unsupported type", "text/plain", `hi`, http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+relaytwin.SendEmailPath, tt.contentType, strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	assert.Empty(t, store.Submissions())
}

func TestSendEmailRequiresAPIKey(t *testing.T) {
	srv, _ := setupTwin(t, relaytwin.Options{APIKey: "re_test"})

	resp, err := http.Post(srv.URL+relaytwin.SendEmailPath, "application/json",
		strings.NewReader(`{"email":"a@b.com","message":"hi"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+relaytwin.SendEmailPath,
		strings.NewReader(`{"email":"a@b.com","message":"hi"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer re_test")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFaultInjection(t *testing.T) {
	srv, store := setupTwin(t, relaytwin.Options{})

	resp, err := http.Post(srv.URL+"/admin/fault", "application/json",
		strings.NewReader(`{"status_code":429,"body":"quota exceeded"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+relaytwin.SendEmailPath, "application/json",
		strings.NewReader(`{"email":"a@b.com","message":"hi"}`))
	require.NoError(t, err)
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "quota exceeded", buf.String())
	assert.Empty(t, store.Submissions())

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/admin/fault", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Nil(t, store.Fault())
}

func TestFaultRejectsSuccessStatus(t *testing.T) {
	srv, _ := setupTwin(t, relaytwin.Options{})

	resp, err := http.Post(srv.URL+"/admin/fault", "application/json", strings.NewReader(`{"status_code":200}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDropConnection(t *testing.T) {
	srv, store := setupTwin(t, relaytwin.Options{})
	store.SetFault(&relaytwin.Fault{DropConnection: true})

	_, err := http.Post(srv.URL+relaytwin.SendEmailPath, "application/json",
		strings.NewReader(`{"email":"a@b.com","message":"hi"}`))
	assert.Error(t, err)
}

func TestDelayFaultConvertsMilliseconds(t *testing.T) {
	srv, store := setupTwin(t, relaytwin.Options{})

	resp, err := http.Post(srv.URL+"/admin/fault", "application/json", strings.NewReader(`{"delay_ms":5}`))
	require.NoError(t, err)
	resp.Body.Close()

	fault := store.Fault()
	require.NotNil(t, fault)
	assert.Equal(t, 5*time.Millisecond, fault.Delay)
}

func TestResetAndList(t *testing.T) {
	srv, store := setupTwin(t, relaytwin.Options{})
	store.Add(relaytwin.Submission{ID: "1", Email: "a@b.com", Message: "hi"})

	resp, err := http.Get(srv.URL + "/admin/submissions")
	require.NoError(t, err)
	var body struct {
		Data []relaytwin.Submission `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.Len(t, body.Data, 1)
	assert.Equal(t, "a@b.com", body.Data[0].Email)

	resp, err = http.Post(srv.URL+"/admin/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, store.Submissions())
}
