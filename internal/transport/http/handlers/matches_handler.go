package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
	matchessvc "github.com/ivankudzin/matchcore/internal/services/matches"
	matchingsvc "github.com/ivankudzin/matchcore/internal/services/matching"
	"github.com/ivankudzin/matchcore/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/matchcore/internal/transport/http/errors"
)

// SwipeLimiter throttles swipes per requesting profile.
type SwipeLimiter interface {
	AllowSwipe(ctx context.Context, profileID string) (int64, bool, error)
	RetryAfterSwipe(ctx context.Context, profileID string) (int64, error)
}

type MatchesHandler struct {
	matching *matchingsvc.Service
	matches  *matchessvc.Service
	limiter  SwipeLimiter
}

func NewMatchesHandler(matching *matchingsvc.Service, matches *matchessvc.Service) *MatchesHandler {
	return &MatchesHandler{
		matching: matching,
		matches:  matches,
	}
}

// AttachLimiter enables swipe throttling. Limiter errors let the swipe through.
func (h *MatchesHandler) AttachLimiter(limiter SwipeLimiter) {
	h.limiter = limiter
}

func (h *MatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid json payload")
		return
	}
	if req.A == "" || req.B == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "a and b are required")
		return
	}

	requester, target, err := matchingsvc.CheckPair(req.A, req.B)
	if err != nil {
		writeSwipeError(w, err)
		return
	}

	if h.limiter != nil {
		retryAfter, allowed, err := h.limiter.AllowSwipe(r.Context(), requester)
		if err == nil && !allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			httperrors.Write(w, http.StatusTooManyRequests, dto.TooFastResponse{
				Code:          "TOO_FAST",
				Message:       "too many swipes, retry later",
				RetryAfterSec: retryAfter,
			})
			return
		}
	}

	result, err := h.matching.Swipe(r.Context(), requester, target)
	if err != nil {
		writeSwipeError(w, err)
		return
	}

	status, payload := swipeResponse(result)
	httperrors.Write(w, status, payload)
}

func writeSwipeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, matchingsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid profile id")
	case errors.Is(err, matchingsvc.ErrSelfMatch):
		writeBadRequest(w, "SELF_MATCH", "cannot match a profile with itself")
	default:
		writeStoreError(w, err, "MATCH_FAILED", "failed to process match request")
	}
}

// Cooldown reports how long the profile must wait before its next swipe is
// accepted. It does not count as a swipe.
func (h *MatchesHandler) Cooldown(w http.ResponseWriter, r *http.Request) {
	profileID := rules.NormalizeProfileID(chi.URLParam(r, "profileId"))
	if !rules.ValidProfileID(profileID) {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid profile id")
		return
	}

	var retryAfter int64
	if h.limiter != nil {
		var err error
		retryAfter, err = h.limiter.RetryAfterSwipe(r.Context(), profileID)
		if err != nil {
			writeInternal(w, "COOLDOWN_FETCH_FAILED", "failed to fetch swipe cooldown")
			return
		}
	}

	httperrors.Write(w, http.StatusOK, dto.CooldownResponse{RetryAfterSec: retryAfter})
}

func swipeResponse(result matchingsvc.Result) (int, dto.SwipeResponse) {
	var payload dto.SwipeResponse
	if result.Match != nil {
		m := dto.NewMatchResponse(*result.Match)
		payload.Match = &m
	}
	if result.Like != nil {
		l := dto.NewLikeResponse(*result.Like)
		payload.Like = &l
	}

	switch result.Outcome {
	case enums.SwipeOutcomeMatchCreated:
		return http.StatusCreated, payload
	case enums.SwipeOutcomeAlreadyMatched:
		payload.AlreadyMatched = true
		return http.StatusOK, payload
	case enums.SwipeOutcomeAlreadyLiked:
		payload.AlreadyLiked = true
		return http.StatusOK, payload
	default:
		payload.Liked = true
		return http.StatusAccepted, payload
	}
}

func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseIntOrDefault(query.Get("limit"), 0)

	items, err := h.matches.List(r.Context(), query.Get("profile"), limit)
	if err != nil {
		if errors.Is(err, matchessvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid profile id")
			return
		}
		writeStoreError(w, err, "MATCHES_FETCH_FAILED", "failed to fetch matches")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewMatchesResponse(items))
}

func (h *MatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	match, err := h.matches.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, matchessvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "match id is required")
		case errors.Is(err, matchessvc.ErrNotFound):
			writeNotFound(w, "MATCH_NOT_FOUND", "match not found")
		default:
			writeStoreError(w, err, "MATCH_FETCH_FAILED", "failed to fetch match")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewMatchResponse(match))
}

func (h *MatchesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.matches.Unmatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, matchessvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "match id is required")
			return
		}
		writeStoreError(w, err, "UNMATCH_FAILED", "failed to delete match")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DeleteResponse{OK: true, Deleted: deleted})
}
