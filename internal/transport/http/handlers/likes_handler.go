package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	likessvc "github.com/ivankudzin/matchcore/internal/services/likes"
	"github.com/ivankudzin/matchcore/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

type LikesHandler struct {
	service *likessvc.Service
}

func NewLikesHandler(service *likessvc.Service) *LikesHandler {
	return &LikesHandler{service: service}
}

func (h *LikesHandler) ListTo(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListTo(r.Context(), chi.URLParam(r, "profileId"), parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	h.writeList(w, items, err)
}

func (h *LikesHandler) ListFrom(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListFrom(r.Context(), chi.URLParam(r, "profileId"), parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	h.writeList(w, items, err)
}

func (h *LikesHandler) writeList(w http.ResponseWriter, items []model.Like, err error) {
	if err != nil {
		if errors.Is(err, likessvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid profile id")
			return
		}
		writeStoreError(w, err, "LIKES_FETCH_FAILED", "failed to fetch likes")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewLikesResponse(items))
}

func (h *LikesHandler) Retract(w http.ResponseWriter, r *http.Request) {
	var req dto.RetractLikeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid json payload")
		return
	}
	if req.FromProfile == "" || req.ToProfile == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "fromProfile and toProfile are required")
		return
	}

	deleted, err := h.service.Retract(r.Context(), req.FromProfile, req.ToProfile)
	if err != nil {
		if errors.Is(err, likessvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid profile id")
			return
		}
		writeStoreError(w, err, "LIKE_DELETE_FAILED", "failed to delete like")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DeleteResponse{OK: true, Deleted: deleted})
}
