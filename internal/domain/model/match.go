package model

import "time"

// Match is stored with A <= B.
type Match struct {
	ID        string    `json:"id"`
	A         string    `json:"a"`
	B         string    `json:"b"`
	CreatedAt time.Time `json:"created_at"`
}

func (m Match) HasProfile(profileID string) bool {
	return m.A == profileID || m.B == profileID
}

func (m Match) Counterpart(profileID string) (string, bool) {
	switch profileID {
	case m.A:
		return m.B, true
	case m.B:
		return m.A, true
	default:
		return "", false
	}
}

type MatchFilter struct {
	ProfileID string
	Limit     int
}
