package model

// WebSocket message types
const (
	WSMessageTypeStage   = "stage"
	WSMessageTypeSummary = "summary"
	WSMessageTypePing    = "ping"
	WSMessageTypePong    = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStageMessage is sent whenever an item's log entry changes state
type WSStageMessage struct {
	Type  string       `json:"type"`
	RunID string       `json:"runId"`
	Entry *RunLogEntry `json:"entry"`
}

// WSSummaryMessage is sent once per dispatch tick
type WSSummaryMessage struct {
	Type        string       `json:"type"`
	RunID       string       `json:"runId"`
	Run         *PipelineRun `json:"run"`
	SuccessRate float64      `json:"successRate"`
}
