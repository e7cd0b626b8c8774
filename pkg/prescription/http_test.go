package prescription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mediscanner/api/pkg/common/models"
	"github.com/mediscanner/api/pkg/gateway/auth"
)

var testUserID = uuid.MustParse("6f1c2a9e-3b7d-4c55-9a10-2b3c4d5e6f70")

func fakeAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := auth.WithIdentity(r.Context(), models.Identity{UserID: testUserID, Email: "a@b.c", TokenID: "t"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestRouter(f *serviceFixture) *mux.Router {
	router := mux.NewRouter()
	NewHTTPHandler(f.service, fakeAuthenticate, 1<<20).Register(router)
	return router
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer test")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func TestHandleUploadReturnsRecords(t *testing.T) {
	f := newFixture()
	f.service.events = nil
	f.fetcher.On("Fetch", mock.Anything, "https://cdn/rx1.jpg").Return([]byte("imgA"), nil)
	f.fetcher.On("Fetch", mock.Anything, "https://cdn/rx2.png").Return([]byte("imgB"), nil)
	f.extractor.On("Extract", mock.Anything, []byte("imgA"), "rx1.jpg").Return(validModelOutput, nil)
	f.extractor.On("Extract", mock.Anything, []byte("imgB"), "rx2.png").Return("garbage", nil)

	rec, body := doRequest(t, newTestRouter(f), http.MethodPost, "/medicine/uploadMedicalPrescription", twoImageRequest())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Successfully processed 2 prescription image(s)", body["message"])
	assert.EqualValues(t, 2, body["count"])

	data := body["data"].([]interface{})
	first := data[0].(map[string]interface{})
	second := data[1].(map[string]interface{})
	assert.EqualValues(t, 0, first["serialNo"])
	assert.Equal(t, testUserID.String(), first["userId"])
	assert.NotEmpty(t, first["_id"])
	assert.Equal(t, "https://cdn/rx1.jpg", first["imageUrl"])
	assert.EqualValues(t, 1, second["serialNo"])
	assert.Nil(t, second["patientName"])
	assert.Equal(t, []interface{}{}, second["medicines"])
	assert.Equal(t, []interface{}{"rx2.png"}, second["reportImages"])
}

func TestHandleUploadRejectsBadExtension(t *testing.T) {
	f := newFixture()
	req := twoImageRequest()
	req.FileDetails[0].Name = "rx1.tiff"

	rec, body := doRequest(t, newTestRouter(f), http.MethodPost, "/medicine/uploadMedicalPrescription", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "rx1.tiff")
	f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestHandleUploadFetchFailureIsBadRequest(t *testing.T) {
	f := newFixture()
	f.fetcher.On("Fetch", mock.Anything, "https://cdn/rx1.jpg").
		Return(nil, &FetchError{URL: "https://cdn/rx1.jpg", Err: errors.New("timeout")})

	rec, body := doRequest(t, newTestRouter(f), http.MethodPost, "/medicine/uploadMedicalPrescription", twoImageRequest())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Failed to download image from URL: https://cdn/rx1.jpg", body["message"])
}

func TestHandleUploadEmptyList(t *testing.T) {
	f := newFixture()
	rec, _ := doRequest(t, newTestRouter(f), http.MethodPost, "/medicine/uploadMedicalPrescription",
		models.PrescriptionUploadRequest{PrescriptionURLs: []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUploadRequiresAuth(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/medicine/uploadMedicalPrescription", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	newTestRouter(f).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleRecordLifecycle(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)
	other, err := f.store.Insert(context.Background(), models.Prescription{UserID: "someone-else"})
	require.NoError(t, err)

	rec, body := doRequest(t, router, http.MethodPost, "/medicine/records", models.MedicalRecordInput{
		SerialNo: 1, Age: 30, Weight: 70, Height: 170, Temperature: 98.6,
		HospitalName: "General", DoctorName: "Dr. Who", Date: "2024-01-02",
		Medicines: []models.MedicineInput{{Name: "A", Quantity: 1, TimeOfIntake: "Morning", BeforeOrAfterMeals: "After"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["data"].(map[string]interface{})["_id"].(string)

	rec, body = doRequest(t, router, http.MethodGet, "/medicine/records/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dr. Who", body["data"].(map[string]interface{})["doctorName"])

	rec, body = doRequest(t, router, http.MethodPatch, "/medicine/records/"+id, map[string]interface{}{"doctorName": "Dr. House"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dr. House", body["data"].(map[string]interface{})["doctorName"])

	rec, _ = doRequest(t, router, http.MethodGet, "/medicine/records/"+other.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = doRequest(t, router, http.MethodGet, "/medicine/usersMedicalData?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, _ = doRequest(t, router, http.MethodDelete, "/medicine/records/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doRequest(t, router, http.MethodGet, "/medicine/records/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateRejectsInvalidRecord(t *testing.T) {
	f := newFixture()
	rec, body := doRequest(t, newTestRouter(f), http.MethodPost, "/medicine/records", map[string]interface{}{"serialNo": 0, "age": 200})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["message"], "age must be between 1 and 150")
}

func TestHandleSearch(t *testing.T) {
	f := newFixture()
	doctor := "Dr. Smith"
	for i := 0; i < 3; i++ {
		_, err := f.store.Insert(context.Background(), models.Prescription{UserID: testUserID.String(), DoctorName: &doctor})
		require.NoError(t, err)
	}
	router := newTestRouter(f)

	rec, body := doRequest(t, router, http.MethodGet, "/medicine/search?doctorName=SMITH&page=1&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
	pagination := body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 3, pagination["total"])
	assert.Equal(t, true, pagination["hasNext"])

	rec, _ = doRequest(t, router, http.MethodGet, "/medicine/search?dateFrom=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, router, http.MethodGet, "/medicine/search?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeParam(t *testing.T) {
	from, err := timeParam("2024-03-01", false)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T00:00:00Z", from.Format("2006-01-02T15:04:05Z07:00"))

	to, err := timeParam("2024-03-01", true)
	require.NoError(t, err)
	assert.Equal(t, 2024, to.Year())
	assert.Equal(t, 23, to.Hour())

	none, err := timeParam("", true)
	require.NoError(t, err)
	assert.Nil(t, none)
}
