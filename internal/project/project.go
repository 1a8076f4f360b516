package project

import (
	"errors"
	"strconv"
	"strings"
)

// KeyPrefix marks public API keys. The submit path segment carries either a
// key or a numeric project id, and the prefix is what tells them apart.
const KeyPrefix = "fk_"

// IsKey reports whether identifier is shaped like an API key.
func IsKey(identifier string) bool {
	return strings.HasPrefix(strings.TrimSpace(identifier), KeyPrefix)
}

// ParseID parses a numeric project id. Trailing garbage is rejected, so an
// identifier like "12abc" is neither a key nor an id.
func ParseID(projectID string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(projectID))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid projectId")
	}
	return id, nil
}
