package handler

import (
	"encoding/json"
	"net/http"
)

// envelope is the response body shape shared by every registration endpoint.
type envelope struct {
	Status  int    `json:"status"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, data, "Success")
}

func writeEnvelope(w http.ResponseWriter, code int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Status: code, Data: data, Message: message})
}
