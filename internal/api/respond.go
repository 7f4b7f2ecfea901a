package api

import (
	"encoding/json"
	"net/http"

	"github.com/ppiankov/riskprobe/internal/model"
)

// errorResponse is the JSON error body
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// unavailableResponse still carries evidence quality and confidence
type unavailableResponse struct {
	Error           string                `json:"error"`
	EvidenceQuality model.EvidenceQuality `json:"evidence_quality"`
	Confidence      int                   `json:"confidence"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorResponse{Error: code, Description: description})
}

func writeUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, unavailableResponse{
		Error:           "service_unavailable",
		EvidenceQuality: model.QualityMinimal,
		Confidence:      0,
	})
}
