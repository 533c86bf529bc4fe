package dto

import (
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type LikeResponse struct {
	ID          string    `json:"id"`
	FromProfile string    `json:"from_profile"`
	ToProfile   string    `json:"to_profile"`
	CreatedAt   time.Time `json:"created_at"`
}

type RetractLikeRequest struct {
	FromProfile string `json:"fromProfile"`
	ToProfile   string `json:"toProfile"`
}

func NewLikeResponse(l model.Like) LikeResponse {
	return LikeResponse{
		ID:          l.ID,
		FromProfile: l.FromProfile,
		ToProfile:   l.ToProfile,
		CreatedAt:   l.CreatedAt,
	}
}

func NewLikesResponse(items []model.Like) []LikeResponse {
	out := make([]LikeResponse, 0, len(items))
	for _, l := range items {
		out = append(out, NewLikeResponse(l))
	}
	return out
}
