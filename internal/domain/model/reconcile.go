package model

// ProfilePair is an unordered pair of profiles in canonical order.
type ProfilePair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// DuplicateMatchGroup lists every match row stored for one unordered pair.
// Keep is the earliest row by (created_at, id).
type DuplicateMatchGroup struct {
	Pair  ProfilePair `json:"pair"`
	Keep  Match       `json:"keep"`
	Extra []Match     `json:"extra"`
}

type OrphanCounts struct {
	Messages  int `json:"messages"`
	Contracts int `json:"contracts"`
	Disputes  int `json:"disputes"`
	Reviews   int `json:"reviews"`
}

func (c OrphanCounts) Total() int {
	return c.Messages + c.Contracts + c.Disputes + c.Reviews
}
