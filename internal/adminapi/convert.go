package adminapi

import "github.com/glassdome/overseer/internal/reaper/types"

// toHostStates converts the CLI's loose JSON target list into the
// HostState shape CreateReaperMission expects. Unrecognized keys are
// ignored rather than rejected, since a mission's targets commonly
// carry extra client-side metadata the Overseer doesn't need.
func toHostStates(targets []map[string]interface{}) []types.HostState {
	hosts := make([]types.HostState, 0, len(targets))
	for _, t := range targets {
		h := types.HostState{}
		if v, ok := t["host_id"].(string); ok {
			h.HostID = v
		}
		if v, ok := t["os"].(string); ok {
			h.OS = v
		}
		if v, ok := t["ip_address"].(string); ok {
			h.IPAddress = v
		}
		if h.HostID == "" {
			continue
		}
		hosts = append(hosts, h)
	}
	return hosts
}
