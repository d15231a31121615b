package idhash

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// suffixLen is the number of random hex characters appended to a prediction id.
const suffixLen = 6

// PredictionID builds a prediction id.
// Format: symbol-createdAtMs-suffix, where suffix is 6 random hex characters.
// Ids are unique in practice for one user's ledger but collision-freedom is not guaranteed.
func PredictionID(symbol string, createdAtMs int64) string {
	return FormatPredictionID(symbol, createdAtMs, randomSuffix())
}

// FormatPredictionID joins the id parts. The suffix is used as given.
func FormatPredictionID(symbol string, createdAtMs int64, suffix string) string {
	return fmt.Sprintf("%s-%d-%s", symbol, createdAtMs, suffix)
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
}
