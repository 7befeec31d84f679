package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hongminglow/ekonzims-be/internal/http/respond"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into dst. An empty body is accepted when
// optional is set. It writes the 400 itself and reports false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
	return false
}
