package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/vdavid/mailmate/internal/logger"
	"github.com/vdavid/mailmate/internal/models"
)

// Format selects the request body encoding.
type Format string

const (
	// FormatMultipart always sends multipart/form-data.
	FormatMultipart Format = "multipart"
	// FormatJSON sends {email, message} as JSON when the payload has nothing else,
	// and multipart otherwise.
	FormatJSON Format = "json"
	// FormatAuto sends multipart only when files or a subject are present.
	FormatAuto Format = "auto"
)

const maxResponseBytes = 1 << 20

// HTTPOptions configures an HTTPClient.
type HTTPOptions struct {
	Format  Format
	APIKey  string
	Timeout time.Duration
	// HTTPClient overrides the underlying client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// HTTPClient posts payloads to an HTTP relay.
type HTTPClient struct {
	client *http.Client
	format Format
	apiKey string
}

// NewHTTPClient creates a relay client.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	format := opts.Format
	if format == "" {
		format = FormatMultipart
	}
	return &HTTPClient{
		client: client,
		format: format,
		apiKey: opts.APIKey,
	}
}

// Send posts the payload and classifies any failure.
func (c *HTTPClient) Send(ctx context.Context, endpointURL string, payload models.Payload) (*ResponseInfo, error) {
	u, err := url.Parse(endpointURL)
	if err != nil {
		return nil, constructionError(fmt.Errorf("invalid endpoint URL: %w", err))
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, constructionError(fmt.Errorf("invalid endpoint URL %q", endpointURL))
	}

	body, contentType, err := c.encode(payload)
	if err != nil {
		return nil, constructionError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, constructionError(err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	logger.Debug("Transport: POST %s (%s, %d files)", u.Redacted(), contentType, len(payload.Files))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, noResponseError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, noResponseError(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:       KindServerRejected,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header.Clone(),
			Body:       respBody,
			Detail:     responseDetail(respBody, resp.Status),
		}
	}

	return &ResponseInfo{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
		Body:       respBody,
	}, nil
}

func (c *HTTPClient) encode(payload models.Payload) (io.Reader, string, error) {
	if c.format != FormatMultipart && payload.IsMinimal() {
		return encodeJSON(payload)
	}
	return encodeMultipart(payload)
}

type jsonBody struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

func encodeJSON(payload models.Payload) (io.Reader, string, error) {
	data, err := json.Marshal(jsonBody{Email: payload.Email, Message: payload.Message})
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode JSON body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMultipart(payload models.Payload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("email", payload.Email); err != nil {
		return nil, "", fmt.Errorf("failed to write email field: %w", err)
	}
	if err := w.WriteField("message", payload.Message); err != nil {
		return nil, "", fmt.Errorf("failed to write message field: %w", err)
	}
	if payload.HasSubject {
		if err := w.WriteField("subject", payload.Subject); err != nil {
			return nil, "", fmt.Errorf("failed to write subject field: %w", err)
		}
	}

	for _, file := range payload.Files {
		if err := writeFilePart(w, file); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, file *models.FileHandle) error {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(file.Name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create part for %q: %w", file.Name, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open attachment %q: %w", file.Name, err)
	}
	defer func() {
		_ = src.Close()
	}()

	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to read attachment %q: %w", file.Name, err)
	}
	return nil
}

// responseDetail picks the text shown to the user for a rejected request.
func responseDetail(body []byte, status string) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, key := range []string{"error", "message"} {
			if s, ok := parsed[key].(string); ok && s != "" {
				return s
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return status
}
