package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	reconcilesvc "github.com/ivankudzin/matchcore/internal/services/reconcile"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

type AdminHandler struct {
	reconcile *reconcilesvc.Service
}

func NewAdminHandler(reconcile *reconcilesvc.Service) *AdminHandler {
	return &AdminHandler{reconcile: reconcile}
}

// Reconcile runs a repair pass. Without apply=true nothing is written.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.reconcile == nil {
		writeInternal(w, "RECONCILE_UNAVAILABLE", "reconcile service is not configured")
		return
	}

	query := r.URL.Query()
	opts := reconcilesvc.Options{}
	for name, dst := range map[string]*bool{
		"apply":          &opts.Apply,
		"backfill_likes": &opts.BackfillLikes,
		"archive":        &opts.Archive,
	} {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid "+name+" flag")
			return
		}
		*dst = value
	}

	report, err := h.reconcile.Run(r.Context(), opts)
	if err != nil {
		if errors.Is(err, reconcilesvc.ErrDependenciesNil) {
			writeInternal(w, "RECONCILE_UNAVAILABLE", "reconcile service is not configured")
			return
		}
		writeStoreError(w, err, "RECONCILE_FAILED", "reconcile run failed")
		return
	}

	if query.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(report.Render()))
		return
	}

	httperrors.Write(w, http.StatusOK, report)
}
