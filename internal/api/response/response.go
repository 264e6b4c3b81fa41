package response

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Error: message})
}

// WriteErrorDetail writes an error that carries upstream detail text.
func WriteErrorDetail(w http.ResponseWriter, status int, message, detail string) {
	WriteJSON(w, status, ErrorBody{Error: message, Detail: detail})
}

// WriteRawJSON writes an already-encoded JSON document without re-encoding it.
func WriteRawJSON(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// WriteBlob writes body byte for byte. No Content-Type is set here.
func WriteBlob(w http.ResponseWriter, status int, body []byte) {
	w.WriteHeader(status)
	w.Write(body)
}

// Generic messages for failures whose cause is never revealed to the caller.
const (
	MsgUnauthorized = "unauthorized"
	MsgInternal     = "internal server error"
)
