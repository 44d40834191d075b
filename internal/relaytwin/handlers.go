package relaytwin

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vdavid/mailmate/internal/logger"
)

type sendEmailRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
}

// SendEmail handles POST /api/send-email
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	if fault := h.store.Fault(); fault != nil {
		if h.applyFault(w, r, fault) {
			return
		}
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]any{"error": "Missing or invalid Content-Type"})
		return
	}

	var sub Submission
	switch mediaType {
	case "application/json":
		sub, err = h.decodeJSON(r)
	case "multipart/form-data":
		sub, err = h.decodeMultipart(r)
	default:
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]any{"error": "Unsupported Content-Type " + mediaType})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.validate.Struct(sendEmailRequest{Email: sub.Email, Message: sub.Message}); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "A valid email and a non-empty message are required"})
		return
	}

	sub.ID = uuid.NewString()
	sub.ReceivedAt = time.Now().UTC()
	h.store.Add(sub)

	logger.Info("RelayTwin: accepted %s submission %s for %s with %d files", sub.Format, sub.ID, sub.Email, len(sub.Files))
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      sub.ID,
		"message": "Email sent successfully",
	})
}

// applyFault reports whether the fault fully handled the request.
func (h *Handler) applyFault(w http.ResponseWriter, r *http.Request, fault *Fault) bool {
	if fault.Delay > 0 {
		select {
		case <-time.After(fault.Delay):
		case <-r.Context().Done():
			return true
		}
	}

	if fault.DropConnection {
		hj, ok := w.(http.Hijacker)
		if !ok {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "connection drop not supported"})
			return true
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
		return true
	}

	if fault.StatusCode == 0 {
		return false
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(fault.StatusCode)
	_, _ = io.WriteString(w, fault.Body)
	return true
}

func (h *Handler) decodeJSON(r *http.Request) (Submission, error) {
	var req sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return Submission{}, err
	}
	return Submission{Email: req.Email, Message: req.Message, Format: "json"}, nil
}

func (h *Handler) decodeMultipart(r *http.Request) (Submission, error) {
	if err := r.ParseMultipartForm(h.opts.MaxMemory); err != nil {
		return Submission{}, err
	}

	sub := Submission{
		Email:   r.FormValue("email"),
		Message: r.FormValue("message"),
		Format:  "multipart",
	}
	if values, ok := r.MultipartForm.Value["subject"]; ok && len(values) > 0 {
		sub.Subject = values[0]
		sub.HasSubject = true
	}

	for _, header := range r.MultipartForm.File["files"] {
		src, err := header.Open()
		if err != nil {
			return Submission{}, err
		}
		data, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			return Submission{}, err
		}
		sub.Files = append(sub.Files, StoredFile{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        len(data),
			Content:     data,
		})
	}

	return sub, nil
}

// ListSubmissions handles GET /admin/submissions
func (h *Handler) ListSubmissions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": h.store.Submissions()})
}

// SetFault handles POST /admin/fault
func (h *Handler) SetFault(w http.ResponseWriter, r *http.Request) {
	var fault Fault
	if err := json.NewDecoder(r.Body).Decode(&fault); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid fault: " + err.Error()})
		return
	}
	if fault.StatusCode != 0 && (fault.StatusCode < 400 || fault.StatusCode > 599) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "status_code must be a 4xx or 5xx code"})
		return
	}
	// delay_ms is given in milliseconds on the wire.
	fault.Delay *= time.Millisecond
	h.store.SetFault(&fault)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ClearFault handles DELETE /admin/fault
func (h *Handler) ClearFault(w http.ResponseWriter, _ *http.Request) {
	h.store.SetFault(nil)
	w.WriteHeader(http.StatusNoContent)
}

// Reset handles POST /admin/reset
func (h *Handler) Reset(w http.ResponseWriter, _ *http.Request) {
	h.store.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !strings.Contains(err.Error(), "closed") {
		logger.Error("RelayTwin: failed to write response: %v", err)
	}
}
