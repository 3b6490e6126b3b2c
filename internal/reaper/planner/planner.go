// Package planner implements the Reaper Planner (C9): a pure function
// boundary between mission state and the next tasks to schedule. It
// never performs I/O and never mutates the state it is given.
package planner

import (
	"strings"

	"github.com/google/uuid"

	"github.com/glassdome/overseer/internal/reaper/types"
)

// webPorts/webServices and networkPorts/networkServices are the facts
// that trigger the two inject_vuln categories, per the default
// rule-based planner.
var (
	webPorts        = map[int]struct{}{80: {}, 443: {}, 8080: {}, 8443: {}}
	webServices     = map[string]struct{}{"apache": {}, "nginx": {}, "httpd": {}, "tomcat": {}, "iis": {}}
	networkPorts    = map[int]struct{}{21: {}, 22: {}, 23: {}, 25: {}, 53: {}, 110: {}, 143: {}, 445: {}, 3389: {}}
	networkServices = map[string]struct{}{"ssh": {}, "ftp": {}, "telnet": {}, "smb": {}, "dns": {}, "smtp": {}}
)

// Planner generates the tasks that drive a mission forward. Implementers
// must have no side effects: the same (state, lastResult) always yields
// the same tasks, apart from each task's freshly generated id.
type Planner interface {
	InitialTasks(state types.MissionState) []types.Task
	NextTasks(state types.MissionState, lastResult types.ResultEvent) []types.Task
}

// RulePlanner is the default rule-based Planner described in §4.9: it
// discovers every unlocked host, baselines it, then injects vulnerable
// configuration based on the facts discovery/baseline turned up.
type RulePlanner struct {
	catalog Catalog
}

// New constructs a RulePlanner bound to catalog (the playbook lists
// carried on baseline/inject_vuln tasks).
func New(catalog Catalog) *RulePlanner {
	return &RulePlanner{catalog: catalog}
}

func taskID(missionID, hostID, action string) string {
	return missionID + ":" + hostID + ":" + action + ":" + uuid.NewString()
}

// InitialTasks emits one <os>.discover task per unlocked host.
func (p *RulePlanner) InitialTasks(state types.MissionState) []types.Task {
	var tasks []types.Task
	for hostID, h := range state.Hosts {
		if h.Locked {
			continue
		}
		tasks = append(tasks, types.Task{
			ID:        taskID(state.MissionID, hostID, h.OS+".discover"),
			MissionID: state.MissionID,
			HostID:    hostID,
			AgentType: "reaper-" + h.OS,
			Action:    h.OS + ".discover",
			Params:    map[string]interface{}{"ip_address": h.IPAddress},
		})
	}
	return tasks
}

// NextTasks inspects lastResult against the mission's current state and
// emits whatever the rule table says comes next. It never mutates state.
func (p *RulePlanner) NextTasks(state types.MissionState, lastResult types.ResultEvent) []types.Task {
	h, ok := state.Hosts[lastResult.HostID]
	if !ok || h.Locked {
		return nil
	}

	if lastResult.Status == types.ResultError && lastResult.Retriable {
		return nil
	}
	if lastResult.Status != types.ResultSuccess {
		return nil
	}

	if strings.HasSuffix(lastResult.Action, ".discover") {
		return []types.Task{{
			ID:        taskID(state.MissionID, h.HostID, h.OS+".baseline"),
			MissionID: state.MissionID,
			HostID:    h.HostID,
			AgentType: "reaper-" + h.OS,
			Action:    h.OS + ".baseline",
			Params:    map[string]interface{}{"playbooks": p.catalog.Get("baseline_" + h.OS)},
		}}
	}

	if strings.HasSuffix(lastResult.Action, ".baseline") {
		var tasks []types.Task
		if factsIndicateWeb(h.DiscoveredFacts) {
			tasks = append(tasks, types.Task{
				ID:        taskID(state.MissionID, h.HostID, h.OS+".inject_vuln"),
				MissionID: state.MissionID,
				HostID:    h.HostID,
				AgentType: "reaper-" + h.OS,
				Action:    h.OS + ".inject_vuln",
				Params: map[string]interface{}{
					"category":  "web",
					"playbooks": p.catalog.Get("web_" + h.OS),
				},
			})
		}
		if factsIndicateNetwork(h.DiscoveredFacts) {
			tasks = append(tasks, types.Task{
				ID:        taskID(state.MissionID, h.HostID, h.OS+".inject_vuln"),
				MissionID: state.MissionID,
				HostID:    h.HostID,
				AgentType: "reaper-" + h.OS,
				Action:    h.OS + ".inject_vuln",
				Params: map[string]interface{}{
					"category":  "network",
					"playbooks": p.catalog.Get("network_" + h.OS),
				},
			})
		}
		return tasks
	}

	return nil
}

func factsIndicateWeb(facts map[string]interface{}) bool {
	return factsHitPorts(facts, webPorts) || factsHitServices(facts, webServices)
}

func factsIndicateNetwork(facts map[string]interface{}) bool {
	return factsHitPorts(facts, networkPorts) || factsHitServices(facts, networkServices)
}

func factsHitPorts(facts map[string]interface{}, set map[int]struct{}) bool {
	raw, ok := facts["open_ports"]
	if !ok {
		return false
	}
	ports, ok := raw.([]interface{})
	if !ok {
		return false
	}
	for _, p := range ports {
		switch v := p.(type) {
		case float64:
			if _, hit := set[int(v)]; hit {
				return true
			}
		case int:
			if _, hit := set[v]; hit {
				return true
			}
		}
	}
	return false
}

func factsHitServices(facts map[string]interface{}, set map[string]struct{}) bool {
	raw, ok := facts["services"]
	if !ok {
		return false
	}
	services, ok := raw.([]interface{})
	if !ok {
		return false
	}
	for _, s := range services {
		name, ok := s.(string)
		if !ok {
			continue
		}
		if _, hit := set[name]; hit {
			return true
		}
	}
	return false
}
