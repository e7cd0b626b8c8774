package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mediscanner/api/pkg/common/models"
)

func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Success writes {success: true, message, data, timestamp}.
func Success(w http.ResponseWriter, status int, message string, data interface{}) {
	JSON(w, status, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// Error writes {success: false, message, details, timestamp}.
func Error(w http.ResponseWriter, status int, message string, details map[string]interface{}) {
	JSON(w, status, models.APIResponse{
		Success:   false,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}
