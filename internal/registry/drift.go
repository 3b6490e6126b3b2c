package registry

// DetectDrift is a pure function: given a Resource's current snapshot, it
// decides whether the resource has diverged from its desired state or
// configuration. It never mutates r. The first matching rule wins, in
// the order spec.md §4.2 lays out.
func DetectDrift(r *Resource) *Drift {
	if r.DesiredState == "" && len(r.DesiredConfig) == 0 {
		return nil
	}

	if r.DesiredState != "" && r.DesiredState != r.State {
		return &Drift{
			ResourceID:   r.ID,
			Kind:         DriftStateMismatch,
			Expected:     string(r.DesiredState),
			Actual:       string(r.State),
			Severity:     SeverityWarning,
			AutoFix:      r.Tier == 1,
			SuggestedFix: "set_state:" + lowerState(r.DesiredState),
			LabID:        r.LabID,
		}
	}

	if desiredName, ok := r.DesiredConfig["name"]; ok && desiredName != r.Name {
		return &Drift{
			ResourceID:   r.ID,
			Kind:         DriftNameMismatch,
			Expected:     desiredName,
			Actual:       r.Name,
			Severity:     SeverityWarning,
			AutoFix:      true,
			SuggestedFix: "rename:" + desiredName,
			LabID:        r.LabID,
		}
	}

	if desiredNet, ok := r.DesiredConfig["network"]; ok && desiredNet != r.Config["network"] {
		return &Drift{
			ResourceID:   r.ID,
			Kind:         DriftNetworkMismatch,
			Expected:     desiredNet,
			Actual:       r.Config["network"],
			Severity:     SeverityCritical,
			AutoFix:      false,
			SuggestedFix: "",
			LabID:        r.LabID,
		}
	}

	return nil
}

func lowerState(s State) string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return string(s)
	}
}
