package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type Report struct {
	StartedAt        time.Time                   `json:"started_at"`
	Applied          bool                        `json:"applied"`
	BackfillLikes    bool                        `json:"backfill_likes"`
	DuplicateMatches []model.DuplicateMatchGroup `json:"duplicate_matches"`
	StrandedPairs    []model.ProfilePair         `json:"stranded_pairs"`
	ShadowedLikes    []model.Like                `json:"shadowed_likes"`
	Orphans          model.OrphanCounts          `json:"orphans"`
	MissingLikes     []model.Like                `json:"missing_likes"`
	ArchiveKey       string                      `json:"archive_key,omitempty"`
	Summary          Summary                     `json:"summary"`
}

type Summary struct {
	DuplicateMatches int `json:"duplicate_matches"`
	StrandedPairs    int `json:"stranded_pairs"`
	ShadowedLikes    int `json:"shadowed_likes"`
	OrphanDependents int `json:"orphan_dependents"`
	MissingLikes     int `json:"missing_likes"`
	BackfillFailed   int `json:"backfill_failed"`
	Skipped          int `json:"skipped"`
	Findings         int `json:"findings"`
}

func (r *Report) summarize() {
	extra := 0
	for _, group := range r.DuplicateMatches {
		extra += len(group.Extra)
	}

	r.Summary = Summary{
		DuplicateMatches: extra,
		StrandedPairs:    len(r.StrandedPairs),
		ShadowedLikes:    len(r.ShadowedLikes),
		OrphanDependents: r.Orphans.Total(),
		MissingLikes:     len(r.MissingLikes),
	}
	r.Summary.Findings = r.Summary.DuplicateMatches +
		r.Summary.StrandedPairs +
		r.Summary.ShadowedLikes +
		r.Summary.OrphanDependents +
		r.Summary.MissingLikes
}

// Render formats the report for terminals and logs.
func (r Report) Render() string {
	var b strings.Builder

	mode := "dry run"
	if r.Applied {
		mode = "applied"
	}
	fmt.Fprintf(&b, "reconcile report (%s)\n", mode)

	fmt.Fprintf(&b, "duplicate matches: %d group(s), %d extra row(s)\n", len(r.DuplicateMatches), r.Summary.DuplicateMatches)
	for _, group := range r.DuplicateMatches {
		ids := make([]string, 0, len(group.Extra))
		for _, m := range group.Extra {
			ids = append(ids, m.ID)
		}
		fmt.Fprintf(&b, "  %s <-> %s keep %s drop %s\n", group.Pair.A, group.Pair.B, group.Keep.ID, strings.Join(ids, ", "))
	}

	fmt.Fprintf(&b, "stranded mutual likes: %d pair(s)\n", len(r.StrandedPairs))
	for _, pair := range r.StrandedPairs {
		fmt.Fprintf(&b, "  %s <-> %s\n", pair.A, pair.B)
	}

	if r.BackfillLikes {
		b.WriteString("likes shadowed by matches: skipped (backfill enabled)\n")
	} else {
		fmt.Fprintf(&b, "likes shadowed by matches: %d\n", len(r.ShadowedLikes))
		for _, like := range r.ShadowedLikes {
			fmt.Fprintf(&b, "  %s -> %s (%s)\n", like.FromProfile, like.ToProfile, like.ID)
		}
	}

	fmt.Fprintf(&b, "orphan dependents: messages=%d contracts=%d disputes=%d reviews=%d\n",
		r.Orphans.Messages, r.Orphans.Contracts, r.Orphans.Disputes, r.Orphans.Reviews)

	if r.BackfillLikes {
		fmt.Fprintf(&b, "missing match likes: %d (failed %d)\n", len(r.MissingLikes), r.Summary.BackfillFailed)
		for _, like := range r.MissingLikes {
			fmt.Fprintf(&b, "  %s -> %s\n", like.FromProfile, like.ToProfile)
		}
	} else {
		b.WriteString("missing match likes: skipped\n")
	}

	if r.Summary.Skipped > 0 {
		fmt.Fprintf(&b, "skipped, changed since scan: %d\n", r.Summary.Skipped)
	}
	if r.ArchiveKey != "" {
		fmt.Fprintf(&b, "archive: %s\n", r.ArchiveKey)
	}
	fmt.Fprintf(&b, "total findings: %d\n", r.Summary.Findings)

	return b.String()
}
