package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ivankudzin/matchcore/internal/repo/repoerr"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

// writeStoreError answers 503 when the store is unreachable and 500 otherwise.
func writeStoreError(w http.ResponseWriter, err error, code, message string) {
	if errors.Is(err, repoerr.ErrUnavailable) {
		httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{
			Code:    "STORE_UNAVAILABLE",
			Message: "storage is unavailable",
		})
		return
	}
	writeInternal(w, code, message)
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}
