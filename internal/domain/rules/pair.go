package rules

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ivankudzin/matchcore/internal/pkg/validate"
)

const (
	MaxProfileIDLength = 128

	pairKeySeparator = "\x1f"
	likeIDPrefix     = "like_"
	matchIDPrefix    = "match_"
)

// CanonicalPair orders two profile ids so that lo <= hi. Matches are stored in this form.
func CanonicalPair(x, y string) (string, string) {
	if x > y {
		return y, x
	}
	return x, y
}

// PairKey identifies an unordered pair. PairKey(x, y) == PairKey(y, x).
func PairKey(x, y string) string {
	lo, hi := CanonicalPair(x, y)
	return lo + pairKeySeparator + hi
}

func NormalizeProfileID(raw string) string {
	return strings.TrimSpace(raw)
}

func ValidProfileID(id string) bool {
	if !validate.Required(id) || !validate.MaxBytes(id, MaxProfileIDLength) {
		return false
	}
	return !strings.Contains(id, pairKeySeparator)
}

func NewLikeID() string {
	return likeIDPrefix + uuid.NewString()
}

func NewMatchID() string {
	return matchIDPrefix + uuid.NewString()
}
