package registry

import (
	"fmt"
	"strings"
)

// BuildID constructs the composite Resource id
// `<platform>[:<instance>]:<type>:<platform_id>` per spec.md §6. Callers
// are responsible for ensuring platform-local ids contain no colons.
func BuildID(p PlatformIdentity, t ResourceType) string {
	if p.Instance != "" {
		return fmt.Sprintf("%s:%s:%s:%s", p.Platform, p.Instance, t, p.PlatformID)
	}
	return fmt.Sprintf("%s:%s:%s", p.Platform, t, p.PlatformID)
}

// ParseID splits a Resource id back into its segments. It accepts both
// the three-segment (no instance) and four-segment (with instance) form.
func ParseID(id string) (platform, instance string, t ResourceType, platformID string, err error) {
	parts := strings.Split(id, ":")
	switch len(parts) {
	case 3:
		return parts[0], "", ResourceType(parts[1]), parts[2], nil
	case 4:
		return parts[0], parts[1], ResourceType(parts[2]), parts[3], nil
	default:
		return "", "", "", "", fmt.Errorf("registry: malformed resource id %q", id)
	}
}
