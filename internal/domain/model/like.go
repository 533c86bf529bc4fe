package model

import "time"

type Like struct {
	ID          string    `json:"id"`
	FromProfile string    `json:"from_profile"`
	ToProfile   string    `json:"to_profile"`
	CreatedAt   time.Time `json:"created_at"`
}
