package common

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

// ParseReqBody decodes a JSON request body into v.
func ParseReqBody(body io.Reader, v interface{}) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("common: failed parsing request body, %w", err)
	}
	return nil
}

// WriteMsg writes `{"error": msg}` with the given status code.
func WriteMsg(w http.ResponseWriter, msg string, code int) {
	w.WriteHeader(code)
	resp := struct {
		Error string `json:"error"`
	}{
		Error: msg,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("common: failed writing error response: %v", err)
	}
}

// WriteRespJSON writes v as a JSON response body.
func WriteRespJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("common: failed writing JSON response: %v", err)
		WriteMsg(w, "internal error", http.StatusInternalServerError)
	}
}
