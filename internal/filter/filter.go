// Package filter applies search, reserve, tag and sort choices to a scored token set.
package filter

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"scry-scanner/internal/domain"
	"scry-scanner/internal/signals"
)

// ErrInvalidQuery is returned for unknown tags or sort keys.
var ErrInvalidQuery = errors.New("invalid filter query")

// Tag is a togglable filter chip.
type Tag string

// Curve-stage tags are OR'd with each other. Supply and reserve tags are AND'd.
const (
	TagEarly      Tag = "early"
	TagMid        Tag = "mid"
	TagLate       Tag = "late"
	TagGraduating Tag = "graduating"
	TagDeep       Tag = "deep"
	TagActive     Tag = "active"
	TagDormant    Tag = "dormant"
)

// Curve stage boundaries.
const (
	midStart  = 0.20
	lateStart = 0.80
)

// IsValid checks if the tag is a known value.
func (t Tag) IsValid() bool {
	switch t {
	case TagEarly, TagMid, TagLate, TagGraduating, TagDeep, TagActive, TagDormant:
		return true
	}
	return false
}

func (t Tag) isCurveStage() bool {
	return t == TagEarly || t == TagMid || t == TagLate || t == TagGraduating
}

// SortKey selects the ordering of the filtered set.
type SortKey string

const (
	SortNewest    SortKey = "newest" // upstream order, no re-sort
	SortScore     SortKey = "score"
	SortCurveAsc  SortKey = "curve_asc"
	SortCurveDesc SortKey = "curve_desc"
	SortReserve   SortKey = "reserve"
)

// IsValid checks if the sort key is a known value.
func (k SortKey) IsValid() bool {
	switch k {
	case SortNewest, SortScore, SortCurveAsc, SortCurveDesc, SortReserve:
		return true
	}
	return false
}

// Reserve filter values. Any other non-empty value matches that reserve symbol exactly.
const (
	ReserveAll   = "all"
	ReserveOther = "other"
)

// KnownReserves are the reserve symbols with their own filter; everything else is "other".
var KnownReserves = []string{"WETH", "USDC", "DEGEN", "member"}

// Query is a user's filter and sort choice. The zero value passes everything through.
type Query struct {
	Search  string
	Reserve string
	Tags    []Tag
	Sort    SortKey
}

// Apply returns the tokens matching q in the order q asks for.
// The input slice is never reordered.
func Apply(tokens []domain.ScannedToken, q Query) []domain.ScannedToken {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]domain.ScannedToken, 0, len(tokens))
	for _, t := range tokens {
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		if !matchesReserve(t, q.Reserve) {
			continue
		}
		if !matchesTags(t, q.Tags) {
			continue
		}
		out = append(out, t)
	}

	sortTokens(out, q.Sort)
	return out
}

func matchesSearch(t domain.ScannedToken, q string) bool {
	d := t.Detail
	return strings.Contains(strings.ToLower(d.Symbol), q) ||
		strings.Contains(strings.ToLower(d.Name), q) ||
		strings.Contains(strings.ToLower(d.Address), q)
}

func matchesReserve(t domain.ScannedToken, reserve string) bool {
	switch reserve {
	case "", ReserveAll:
		return true
	case ReserveOther:
		for _, known := range KnownReserves {
			if t.Detail.ReserveSymbol == known {
				return false
			}
		}
		return true
	default:
		return t.Detail.ReserveSymbol == reserve
	}
}

func matchesTags(t domain.ScannedToken, tags []Tag) bool {
	if len(tags) == 0 {
		return true
	}

	cp := t.Signals.CurvePosition
	hasCurve := false
	passesCurve := false
	for _, tag := range tags {
		if !tag.isCurveStage() {
			continue
		}
		hasCurve = true
		switch tag {
		case TagEarly:
			passesCurve = passesCurve || cp < signals.EarlyThreshold
		case TagMid:
			passesCurve = passesCurve || (cp >= midStart && cp < lateStart)
		case TagLate:
			passesCurve = passesCurve || cp >= lateStart
		case TagGraduating:
			passesCurve = passesCurve || cp > signals.GraduatingThreshold
		}
	}
	if hasCurve && !passesCurve {
		return false
	}

	hasSupply := t.Detail.CurrentSupply != nil && t.Detail.CurrentSupply.Sign() > 0
	for _, tag := range tags {
		switch tag {
		case TagActive:
			if !hasSupply {
				return false
			}
		case TagDormant:
			if hasSupply {
				return false
			}
		case TagDeep:
			if t.Signals.ReserveDepth == nil || t.Signals.ReserveDepth.Cmp(signals.DeepReserveThreshold) <= 0 {
				return false
			}
		}
	}
	return true
}

// sortTokens orders in place. Every comparator is stable on ties.
func sortTokens(tokens []domain.ScannedToken, key SortKey) {
	var less func(a, b domain.ScannedToken) bool
	switch key {
	case SortScore:
		less = func(a, b domain.ScannedToken) bool {
			return a.Signals.OpportunityScore > b.Signals.OpportunityScore
		}
	case SortCurveAsc:
		less = func(a, b domain.ScannedToken) bool {
			return a.Signals.CurvePosition < b.Signals.CurvePosition
		}
	case SortCurveDesc:
		less = func(a, b domain.ScannedToken) bool {
			return a.Signals.CurvePosition > b.Signals.CurvePosition
		}
	case SortReserve:
		less = func(a, b domain.ScannedToken) bool {
			return reserveOf(a).Cmp(reserveOf(b)) > 0
		}
	default:
		return
	}
	sort.SliceStable(tokens, func(i, j int) bool { return less(tokens[i], tokens[j]) })
}

func reserveOf(t domain.ScannedToken) *big.Int {
	if t.Signals.ReserveDepth == nil {
		return zero
	}
	return t.Signals.ReserveDepth
}

var zero = new(big.Int)

// ParseTags parses a comma-separated tag list. Blank entries are ignored and
// duplicates collapsed.
func ParseTags(s string) ([]Tag, error) {
	var tags []Tag
	seen := make(map[Tag]bool)
	for _, part := range strings.Split(s, ",") {
		tag := Tag(strings.ToLower(strings.TrimSpace(part)))
		if tag == "" || seen[tag] {
			continue
		}
		if !tag.IsValid() {
			return nil, fmt.Errorf("%w: unknown tag %q", ErrInvalidQuery, part)
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags, nil
}

// ParseSort parses a sort key. An empty string means SortNewest.
func ParseSort(s string) (SortKey, error) {
	if s == "" {
		return SortNewest, nil
	}
	key := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if !key.IsValid() {
		return "", fmt.Errorf("%w: unknown sort key %q", ErrInvalidQuery, s)
	}
	return key, nil
}
