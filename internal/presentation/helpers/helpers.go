package helpers

import (
	"encoding/json"
	"io"
	"net/http"
)

func DecodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func HttpError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// HttpErrorWithData is for errors that carry a payload the client needs,
// e.g. the per-line report of a rejected checkout.
func HttpErrorWithData(w http.ResponseWriter, status int, msg string, data any) {
	WriteJSON(w, status, map[string]any{"error": msg, "data": data})
}
