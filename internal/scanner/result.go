package scanner

import (
	"scry-scanner/internal/domain"
	"scry-scanner/internal/signals"
)

// LoadOutcome describes how a fast load produced its token set.
type LoadOutcome string

const (
	LoadCached  LoadOutcome = "cached"  // served from a fresh cache
	LoadFetched LoadOutcome = "fetched" // fetched from the listing source
	LoadFailed  LoadOutcome = "failed"  // listing source failed; set is empty
)

// LoadResult is returned by FastLoad.
type LoadResult struct {
	Tokens  []domain.ScannedToken
	Outcome LoadOutcome
	Err     error // listing failure when Outcome is LoadFailed
}

// SelectOutcome describes how a selection was resolved.
type SelectOutcome string

const (
	SelectCached    SelectOutcome = "cached"    // served from the per-address memo
	SelectComplete  SelectOutcome = "complete"  // every enrichment fetch succeeded
	SelectPartial   SelectOutcome = "partial"   // some fetches failed; fields degraded
	SelectDiscarded SelectOutcome = "discarded" // selection changed before completion
)

// String returns the string representation.
func (o SelectOutcome) String() string {
	return string(o)
}

// Selection is the enriched view of one token.
type Selection struct {
	Token             domain.ScannedToken    `json:"token"`
	Metadata          *domain.TokenMetadata  `json:"metadata"`
	CreatorTokenCount int                    `json:"creatorTokenCount"`
	Royalties         *domain.Royalties      `json:"royalties"`
	ZapAvailable      bool                   `json:"zapAvailable"`
	Creator           *domain.CreatorProfile `json:"creator"`
	Badges            []signals.Badge        `json:"badges"`
	Outcome           SelectOutcome          `json:"outcome"`
	Failed            []string               `json:"failed,omitempty"` // names of failed fetches
}

// SelectOptions controls optional parts of a selection.
type SelectOptions struct {
	// WithCreator requests the creator's reputation profile.
	WithCreator bool
}
