package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mediscanner/api/pkg/common/logger"
	"github.com/mediscanner/api/pkg/gateway/response"
)

const maxMultipartMemory = 8 << 20

type ObjectStore interface {
	Upload(ctx context.Context, folder, name, contentType string, body io.Reader) (Object, error)
	PresignUpload(ctx context.Context, name string) (UploadAuth, error)
}

type HTTPHandler struct {
	store        ObjectStore
	authenticate mux.MiddlewareFunc
}

// NewHTTPHandler serves the storage routes. A nil store makes every route
// answer 503.
func NewHTTPHandler(store ObjectStore, authenticate mux.MiddlewareFunc) *HTTPHandler {
	return &HTTPHandler{store: store, authenticate: authenticate}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	r := router.PathPrefix("/storage").Subrouter()
	r.Use(h.authenticate)
	r.HandleFunc("/auth", h.handleAuth).Methods(http.MethodGet)
	r.HandleFunc("/upload", h.handleUpload).Methods(http.MethodPost)
}

func (h *HTTPHandler) available(w http.ResponseWriter) bool {
	if h.store == nil {
		response.Error(w, http.StatusServiceUnavailable, ErrNotConfigured.Error(), nil)
		return false
	}
	return true
}

func (h *HTTPHandler) handleAuth(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "prescription.jpg"
	}

	auth, err := h.store.PresignUpload(r.Context(), name)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("failed to presign upload")
		response.Error(w, http.StatusInternalServerError, "Failed to generate authentication parameters", nil)
		return
	}
	response.JSON(w, http.StatusOK, auth)
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "File too large", nil)
			return
		}
		response.Error(w, http.StatusBadRequest, "multipart form with a file field is required", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "multipart form with a file field is required", nil)
		return
	}
	defer file.Close()

	obj, err := h.store.Upload(r.Context(), r.FormValue("folder"), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).WithField("filename", header.Filename).Error("upload failed")
		response.Error(w, http.StatusInternalServerError, "Failed to upload file", nil)
		return
	}

	logger.FromContext(r.Context()).WithField("file_id", obj.Key).Info("File uploaded")
	response.JSON(w, http.StatusOK, obj)
}
