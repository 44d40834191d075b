package models

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// FileHandle is a user-selected file queued for sending.
// Handles are compared by pointer: two handles with the same name are still distinct entries.
type FileHandle struct {
	Name        string
	ContentType string
	Size        int64
	open        func() (io.ReadCloser, error)
}

// Open returns a reader over the file content.
func (f *FileHandle) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %q has no content", f.Name)
	}
	return f.open()
}

// ReadAll reads the whole file content.
func (f *FileHandle) ReadAll() ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", f.Name, err)
	}
	return data, nil
}

// NewFileFromBytes creates a handle over in-memory content.
func NewFileFromBytes(name string, data []byte) *FileHandle {
	content := append([]byte(nil), data...)
	return &FileHandle{
		Name:        name,
		ContentType: detectContentType(name, content),
		Size:        int64(len(content)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// NewFileFromPath creates a handle for a file on disk. The file is stat'ed now
// and opened only when the payload is built.
func NewFileFromPath(path string) (*FileHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat attachment: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("attachment %q is a directory", path)
	}

	name := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &FileHandle{
		Name:        name,
		ContentType: contentType,
		Size:        info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func detectContentType(name string, data []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}

// Payload is the outbound submission built from the form state.
type Payload struct {
	Email   string
	Message string
	// Subject is set only when the custom subject feature is on.
	Subject    string
	HasSubject bool
	Files      []*FileHandle
}

// IsMinimal reports whether the payload carries only email and message,
// which is the shape the legacy JSON body supports.
func (p Payload) IsMinimal() bool {
	return !p.HasSubject && len(p.Files) == 0
}

// FileNames returns the attachment names in order.
func (p Payload) FileNames() []string {
	names := make([]string, 0, len(p.Files))
	for _, f := range p.Files {
		names = append(names, f.Name)
	}
	return names
}
