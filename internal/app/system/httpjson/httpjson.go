// Package httpjson reads and writes JSON request/response bodies.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dalemusser/curriculum/internal/app/system/apperr"
)

// MaxBody caps request bodies. Group replace payloads for a full cohort
// stay well below this.
const MaxBody = 4 << 20

// Decode reads r's body into v. Unknown fields and trailing data are
// rejected as validation errors.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation(fmt.Sprintf("invalid JSON body: %v", err))
	}
	if dec.More() {
		return apperr.Validation("request body must contain a single JSON value")
	}
	return nil
}

// Write encodes v with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
