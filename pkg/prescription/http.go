package prescription

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mediscanner/api/pkg/common/logger"
	"github.com/mediscanner/api/pkg/common/models"
	"github.com/mediscanner/api/pkg/gateway/auth"
	"github.com/mediscanner/api/pkg/gateway/response"
)

type HTTPHandler struct {
	service      *Service
	authenticate mux.MiddlewareFunc
	maxBody      int64
}

func NewHTTPHandler(service *Service, authenticate mux.MiddlewareFunc, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, authenticate: authenticate, maxBody: maxBody}
}

// Register mounts the /medicine routes on router. Every route requires an
// authenticated caller.
func (h *HTTPHandler) Register(router *mux.Router) {
	r := router.PathPrefix("/medicine").Subrouter()
	r.Use(h.authenticate)

	r.HandleFunc("/uploadMedicalPrescription", h.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/usersMedicalData", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/search", h.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/records", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/records/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/records/{id}", h.handleUpdate).Methods(http.MethodPatch)
	r.HandleFunc("/records/{id}", h.handleDelete).Methods(http.MethodDelete)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.FromContext(r.Context()).WithError(err).Warn("invalid request payload")
		response.Error(w, http.StatusBadRequest, "invalid request body", nil)
		return false
	}
	return true
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Could not validate credentials", nil)
		return
	}

	var req models.PrescriptionUploadRequest
	if !h.decode(w, r, &req) {
		return
	}

	records, err := h.service.Upload(r.Context(), id.UserID.String(), req)
	if err != nil {
		h.writeError(w, r, err, "Error processing images")
		return
	}

	response.JSON(w, http.StatusOK, models.PrescriptionResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully processed %d prescription image(s)", len(records)),
		Count:   len(records),
		Data:    records,
	})
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	q := r.URL.Query()

	skip, err := intParam(q.Get("skip"), 0)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "skip must be an integer", nil)
		return
	}
	limit, err := intParam(q.Get("limit"), DefaultListLimit)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "limit must be an integer", nil)
		return
	}

	records, err := h.service.List(r.Context(), id.UserID.String(), skip, limit)
	if err != nil {
		h.writeError(w, r, err, "Error fetching prescriptions")
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(records),
		"data":    records,
	})
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var in models.MedicalRecordInput
	if !h.decode(w, r, &in) {
		return
	}

	rec, err := h.service.Create(r.Context(), id.UserID.String(), in)
	if err != nil {
		h.writeError(w, r, err, "Error creating medical record")
		return
	}
	response.Success(w, http.StatusCreated, "Medical record created", rec)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	rec, err := h.service.Get(r.Context(), id.UserID.String(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err, "Error fetching medical record")
		return
	}
	response.Success(w, http.StatusOK, "Medical record retrieved", rec)
}

func (h *HTTPHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var patch models.PrescriptionPatch
	if !h.decode(w, r, &patch) {
		return
	}

	rec, err := h.service.Update(r.Context(), id.UserID.String(), mux.Vars(r)["id"], patch)
	if err != nil {
		h.writeError(w, r, err, "Error updating medical record")
		return
	}
	response.Success(w, http.StatusOK, "Medical record updated", rec)
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	if err := h.service.Delete(r.Context(), id.UserID.String(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err, "Error deleting medical record")
		return
	}
	response.Success(w, http.StatusOK, "Medical record deleted", nil)
}

func (h *HTTPHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 1)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "page must be an integer", nil)
		return
	}
	limit, err := intParam(q.Get("limit"), DefaultPageSize)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "limit must be an integer", nil)
		return
	}

	filter := SearchFilter{
		DoctorName:   strings.TrimSpace(q.Get("doctorName")),
		HospitalName: strings.TrimSpace(q.Get("hospitalName")),
		MedicineName: strings.TrimSpace(q.Get("medicineName")),
		Date:         strings.TrimSpace(q.Get("date")),
	}
	if filter.Date != "" {
		if _, err := time.Parse("2006-01-02", filter.Date); err != nil {
			response.Error(w, http.StatusBadRequest, "Date must be in YYYY-MM-DD format", nil)
			return
		}
	}
	if filter.CreatedFrom, err = timeParam(q.Get("dateFrom"), false); err != nil {
		response.Error(w, http.StatusBadRequest, "dateFrom must be YYYY-MM-DD or RFC3339", nil)
		return
	}
	if filter.CreatedTo, err = timeParam(q.Get("dateTo"), true); err != nil {
		response.Error(w, http.StatusBadRequest, "dateTo must be YYYY-MM-DD or RFC3339", nil)
		return
	}

	records, pagination, err := h.service.Search(r.Context(), id.UserID.String(), filter, page, limit)
	if err != nil {
		h.writeError(w, r, err, "Error searching medical records")
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"count":      len(records),
		"data":       records,
		"pagination": pagination,
	})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var fetchErr *FetchError
	switch {
	case IsValidationError(err):
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &fetchErr):
		response.Error(w, http.StatusBadRequest, fetchErr.Error(), nil)
	case errors.Is(err, ErrNotFound):
		response.Error(w, http.StatusNotFound, "Medical record not found", nil)
	default:
		logger.FromContext(r.Context()).WithError(err).Error(fallback)
		response.Error(w, http.StatusInternalServerError, fallback, nil)
	}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// timeParam accepts a date or an RFC3339 timestamp. A bare date used as an
// upper bound covers the whole day.
func timeParam(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}
