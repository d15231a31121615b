// Package reputation looks up the social identity behind a creator address and
// rates it.
package reputation

import "strings"

// Rating labels, highest first.
const (
	LabelTrusted     = "Trusted"
	LabelEstablished = "Established"
	LabelActive      = "Active"
	LabelNew         = "New"
	LabelUnknown     = "Unknown"
)

// ComputeRating scores a creator out of 100.
//
//	account age (fid):  <1000 30, <10000 25, <50000 20, <200000 10, else 5
//	followers:          >=10000 30, >=1000 25, >=100 15, >=10 5, else 0
//	tokens created:     >=5 20, >=3 15, >=2 10, else 5
//	verified address:   20
func ComputeRating(fid, followers int64, tokenCount int, verified bool) (int, string) {
	score := 0

	switch {
	case fid < 1000:
		score += 30
	case fid < 10000:
		score += 25
	case fid < 50000:
		score += 20
	case fid < 200000:
		score += 10
	default:
		score += 5
	}

	switch {
	case followers >= 10000:
		score += 30
	case followers >= 1000:
		score += 25
	case followers >= 100:
		score += 15
	case followers >= 10:
		score += 5
	}

	switch {
	case tokenCount >= 5:
		score += 20
	case tokenCount >= 3:
		score += 15
	case tokenCount >= 2:
		score += 10
	default:
		score += 5
	}

	if verified {
		score += 20
	}

	if score > 100 {
		score = 100
	}
	return score, Label(score)
}

// Label maps a rating to its label.
func Label(rating int) string {
	switch {
	case rating >= 80:
		return LabelTrusted
	case rating >= 60:
		return LabelEstablished
	case rating >= 40:
		return LabelActive
	case rating >= 20:
		return LabelNew
	default:
		return LabelUnknown
	}
}

// IsVerified reports whether address is among verified, ignoring case.
func IsVerified(address string, verified []string) bool {
	for _, v := range verified {
		if strings.EqualFold(v, address) {
			return true
		}
	}
	return false
}
