package models

// ControlAction is the closed set of device-control commands the API
// accepts. Anything outside this set is rejected before an upstream call is
// attempted.
type ControlAction string

const (
	ActionToggleAC       ControlAction = "toggleAC"
	ActionToggleFH       ControlAction = "toggleFH"
	ActionToggleBath     ControlAction = "toggleBath"
	ActionToggleGenerate ControlAction = "toggleGenerate"
	ActionSetACMode      ControlAction = "setACMode"
	ActionSetACTemp      ControlAction = "setACTemp"
	ActionSetACFan       ControlAction = "setACFan"
	ActionSetFHLevel     ControlAction = "setFHLevel"
)

// Known reports whether a is one of the supported actions.
func (a ControlAction) Known() bool {
	switch a {
	case ActionToggleAC, ActionToggleFH, ActionToggleBath, ActionToggleGenerate,
		ActionSetACMode, ActionSetACTemp, ActionSetACFan, ActionSetFHLevel:
		return true
	}
	return false
}

// ControlRequest is the body of POST /api/devices/control.
type ControlRequest struct {
	Action ControlAction `json:"action" binding:"required"`
	NodeID string        `json:"nodeId"`
	EOJ    string        `json:"eoj"`
	State  string        `json:"state"` // current state echoed back for toggles
	Value  float64       `json:"value"` // mode/temp/fan/level payload for setters
}

// ControlResult is the appliance's parsed JSON acknowledgment. When the HTTP
// exchange itself fails, a synthetic {"result":"error","status":N} is
// returned instead so callers always see a uniform shape.
type ControlResult map[string]any

// ErrorResult builds the synthetic failure shape for a non-2xx response.
func ErrorResult(status int) ControlResult {
	return ControlResult{"result": "error", "status": status}
}
