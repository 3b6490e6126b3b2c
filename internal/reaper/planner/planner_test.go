package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glassdome/overseer/internal/reaper/types"
)

func newMission(hosts map[string]types.HostState) types.MissionState {
	return types.MissionState{
		MissionID: "m1",
		LabID:     "lab-1",
		Hosts:     hosts,
	}
}

func TestInitialTasks_OneDiscoverPerUnlockedHost(t *testing.T) {
	p := New(DefaultCatalog())
	state := newMission(map[string]types.HostState{
		"h1": {HostID: "h1", OS: "linux", IPAddress: "10.0.0.5"},
		"h2": {HostID: "h2", OS: "linux", Locked: true},
	})

	tasks := p.InitialTasks(state)
	require.Len(t, tasks, 1)
	assert.Equal(t, "h1", tasks[0].HostID)
	assert.Equal(t, "linux.discover", tasks[0].Action)
	assert.Equal(t, "reaper-linux", tasks[0].AgentType)
	assert.Equal(t, "10.0.0.5", tasks[0].Params["ip_address"])
}

func TestNextTasks_DiscoverSuccessEmitsBaseline(t *testing.T) {
	p := New(DefaultCatalog())
	state := newMission(map[string]types.HostState{
		"h1": {HostID: "h1", OS: "linux"},
	})
	result := types.ResultEvent{
		TaskID: "t1", MissionID: "m1", HostID: "h1",
		Action: "linux.discover", Status: types.ResultSuccess, Timestamp: time.Now(),
	}

	tasks := p.NextTasks(state, result)
	require.Len(t, tasks, 1)
	assert.Equal(t, "linux.baseline", tasks[0].Action)
}

func TestNextTasks_BaselineWithWebFactsEmitsWebInjectVuln(t *testing.T) {
	p := New(DefaultCatalog())
	state := newMission(map[string]types.HostState{
		"h1": {
			HostID: "h1", OS: "linux",
			DiscoveredFacts: map[string]interface{}{
				"services":   []interface{}{"apache"},
				"open_ports": []interface{}{float64(80)},
			},
		},
	})
	result := types.ResultEvent{HostID: "h1", Action: "linux.baseline", Status: types.ResultSuccess}

	tasks := p.NextTasks(state, result)
	require.Len(t, tasks, 1)
	assert.Equal(t, "linux.inject_vuln", tasks[0].Action)
	assert.Equal(t, "web", tasks[0].Params["category"])
}

func TestNextTasks_BaselineWithBothFactsEmitsBothCategories(t *testing.T) {
	p := New(DefaultCatalog())
	state := newMission(map[string]types.HostState{
		"h1": {
			HostID: "h1", OS: "linux",
			DiscoveredFacts: map[string]interface{}{
				"services": []interface{}{"apache", "ssh"},
			},
		},
	})
	result := types.ResultEvent{HostID: "h1", Action: "linux.baseline", Status: types.ResultSuccess}

	tasks := p.NextTasks(state, result)
	require.Len(t, tasks, 2)
	cats := map[string]bool{}
	for _, tk := range tasks {
		cats[tk.Params["category"].(string)] = true
	}
	assert.True(t, cats["web"])
	assert.True(t, cats["network"])
}

func TestNextTasks_RetriableErrorEmitsNothing(t *testing.T) {
	p := New(DefaultCatalog())
	state := newMission(map[string]types.HostState{"h1": {HostID: "h1", OS: "linux"}})
	result := types.ResultEvent{HostID: "h1", Action: "linux.discover", Status: types.ResultError, Retriable: true}

	assert.Empty(t, p.NextTasks(state, result))
}

func TestNextTasks_LockedHostEmitsNothing(t *testing.T) {
	p := New(DefaultCatalog())
	state := newMission(map[string]types.HostState{"h1": {HostID: "h1", OS: "linux", Locked: true}})
	result := types.ResultEvent{HostID: "h1", Action: "linux.discover", Status: types.ResultSuccess}

	assert.Empty(t, p.NextTasks(state, result))
}

func TestNextTasks_UnknownHostEmitsNothing(t *testing.T) {
	p := New(DefaultCatalog())
	state := newMission(map[string]types.HostState{})
	result := types.ResultEvent{HostID: "ghost", Action: "linux.discover", Status: types.ResultSuccess}

	assert.Empty(t, p.NextTasks(state, result))
}
