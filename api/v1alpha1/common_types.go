package v1alpha1

// Action is the planned outcome for a single product in a tenant install.
type Action string

// InterfaceType qualifies how many modules may provide an interface at once.
type InterfaceType string

const (
	ActionEnable   Action = "enable"
	ActionDisable  Action = "disable"
	ActionUptodate Action = "uptodate"
	ActionSuggest  Action = "suggest"
	ActionConflict Action = "conflict"

	InterfaceTypeProxy    InterfaceType = "proxy"
	InterfaceTypeSystem   InterfaceType = "system"
	InterfaceTypeMultiple InterfaceType = "multiple"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionEnable, ActionDisable, ActionUptodate, ActionSuggest, ActionConflict:
		return true
	default:
		return false
	}
}

// Advisory reports whether a is set by an orchestrator and must pass through
// planning untouched.
func (a Action) Advisory() bool {
	return a == ActionSuggest || a == ActionConflict
}
