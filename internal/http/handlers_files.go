package httpx

import (
	"net/http"

	"github.com/target/seclab-api/internal/service"
)

// FileHandlers serves files from the configured base directory.
type FileHandlers struct {
	Svc *service.FileService
}

type readFileRequest struct {
	Filename string `json:"filename"`
}

// Read returns a file's content by name.
// POST /api/files/read {"filename": "..."}.
func (h *FileHandlers) Read(w http.ResponseWriter, r *http.Request) {
	var req readFileRequest
	if !DecodeBody(w, r, &req) {
		return
	}
	content, err := h.Svc.Read(r.Context(), req.Filename)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, content)
}

// SetupSample writes the sample files.
// POST /api/files/setup-sample.
func (h *FileHandlers) SetupSample(w http.ResponseWriter, r *http.Request) {
	files, err := h.Svc.SetupSample(r.Context())
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "files": files})
}
