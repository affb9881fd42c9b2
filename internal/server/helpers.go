package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/keldara/vaultcraft/internal/vaulterrors"
)

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := vaulterrors.Of(err)
	writeJSONStatus(w, vaulterrors.HTTPStatus(kind), errorResponse{Error: err.Error()})
}

func tooMany(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeJSONStatus(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
}
