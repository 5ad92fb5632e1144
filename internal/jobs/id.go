package jobs

import "github.com/google/uuid"

// IDPrefix is prepended to every analysis job ID.
const IDPrefix = "analysis-"

// GenerateID creates a new random job ID with the given prefix.
// The prefix should include a trailing dash, e.g. "analysis-".
func GenerateID(prefix string) string {
	return prefix + uuid.NewString()
}
