package dto

import (
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type CreateMatchRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type MatchResponse struct {
	ID        string    `json:"id"`
	A         string    `json:"a"`
	B         string    `json:"b"`
	CreatedAt time.Time `json:"created_at"`
}

// SwipeResponse carries exactly one of the outcome flags, or none for a new match.
type SwipeResponse struct {
	AlreadyMatched bool           `json:"alreadyMatched,omitempty"`
	AlreadyLiked   bool           `json:"alreadyLiked,omitempty"`
	Liked          bool           `json:"liked,omitempty"`
	Match          *MatchResponse `json:"match,omitempty"`
	Like           *LikeResponse  `json:"like,omitempty"`
}

type CooldownResponse struct {
	RetryAfterSec int64 `json:"retry_after_sec"`
}

type TooFastResponse struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retry_after_sec"`
}

type DeleteResponse struct {
	OK      bool `json:"ok"`
	Deleted bool `json:"deleted"`
}

func NewMatchResponse(m model.Match) MatchResponse {
	return MatchResponse{
		ID:        m.ID,
		A:         m.A,
		B:         m.B,
		CreatedAt: m.CreatedAt,
	}
}

func NewMatchesResponse(items []model.Match) []MatchResponse {
	out := make([]MatchResponse, 0, len(items))
	for _, m := range items {
		out = append(out, NewMatchResponse(m))
	}
	return out
}
