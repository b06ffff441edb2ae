package cube

// Telemetry receives reducer events. Implementations live in
// internal/telemetry.
type Telemetry interface {
	RecordEvent(name string, attrs map[string]string)
	StartFlow(flowID string)
	EndFlow(flowID, outcome string)
}

// Flow outcomes reported to Telemetry.EndFlow.
const (
	OutcomeSaved     = "saved"
	OutcomeAbandoned = "abandoned"
	OutcomeReset     = "reset"
	OutcomeReplaced  = "replaced"
)

// WithTelemetry decorates next so every action is reported to t. Flow start
// and end are derived from changes to ActiveFlowID, so the wrapped reducer
// stays free of side effects.
func WithTelemetry(next Reducer, t Telemetry) Reducer {
	if t == nil {
		return next
	}
	return func(s *State, a Action) *State {
		out := next(s, a)
		if a == nil {
			return out
		}

		attrs := map[string]string{"changed": boolString(out != s)}
		if out != nil && out.Buffered != nil {
			attrs["buffered"] = "true"
		}
		t.RecordEvent(a.Kind(), attrs)

		prev := ""
		if s != nil {
			prev = s.ActiveFlowID
		}
		cur := ""
		if out != nil {
			cur = out.ActiveFlowID
		}
		if prev == cur {
			return out
		}
		if prev != "" {
			t.EndFlow(prev, endOutcome(a, cur))
		}
		if cur != "" {
			t.StartFlow(cur)
		}
		return out
	}
}

func endOutcome(a Action, cur string) string {
	if cur != "" {
		return OutcomeReplaced
	}
	switch a.(type) {
	case SaveSuccess:
		return OutcomeSaved
	case AbandonFlow:
		return OutcomeAbandoned
	default:
		return OutcomeReset
	}
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
