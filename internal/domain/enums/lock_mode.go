package enums

type LockMode string

const (
	LockModeAdvisory   LockMode = "advisory"
	LockModeLocal      LockMode = "local"
	LockModeOptimistic LockMode = "optimistic"
)

func (m LockMode) Valid() bool {
	switch m {
	case LockModeAdvisory, LockModeLocal, LockModeOptimistic:
		return true
	default:
		return false
	}
}
