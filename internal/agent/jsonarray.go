// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"strings"

	"github.com/pkg/errors"
)

var errNoJSONArray = errors.New("response contains no JSON array")

// extractJSONArray returns the outermost JSON array in a model response,
// tolerating markdown fences and surrounding prose.
func extractJSONArray(resp string) (string, error) {
	s := strings.TrimSpace(resp)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end <= start {
		return "", errNoJSONArray
	}
	return s[start : end+1], nil
}
