package request

type UpdateDimensionsRequest struct {
	Allocation   string `json:"allocation"`
	Distribution string `json:"distribution"`
}

// ToggleRequest addresses a row by the keys of its ancestors and itself, outermost first.
type ToggleRequest struct {
	Path []string `json:"path"`
}

type DrillRequest struct {
	Key string `json:"key"`
}
