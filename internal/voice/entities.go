package voice

import "strings"

// captureEntities maps a deterministic match's first capture group to the
// rule's named slot. Fallback-tier entity maps pass through the
// classifier unchanged; unknown or failed classification yields an empty
// map.
func captureEntities(r rule, groups []string) map[string]string {
	entities := map[string]string{}
	if r.slot == "" || len(groups) < 2 {
		return entities
	}
	if value := strings.TrimSpace(groups[1]); value != "" {
		entities[r.slot] = value
	}
	return entities
}
