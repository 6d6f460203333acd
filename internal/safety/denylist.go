package safety

import (
	"fmt"
	"os"
	"strings"
)

// LoadDenylistFile reads a denylist override from disk: one word per
// line, # comments and blank lines ignored, matching is
// case-insensitive.
func LoadDenylistFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read denylist: %w", err)
	}

	var words []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, strings.ToLower(line))
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("denylist %s contains no words", path)
	}
	return words, nil
}
