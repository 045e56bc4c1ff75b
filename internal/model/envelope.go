package model

type FrameType string

const (
	FrameTypeViolation FrameType = "invariant_violation"
	FrameTypeCycle     FrameType = "evaluation_cycle"
)

// Envelope is transport-agnostic framing for stream payloads.
type Envelope struct {
	Type          FrameType `json:"type"`
	MonitorID     string    `json:"monitor_id"`
	TimestampUnix int64     `json:"timestamp_unix"`
	Payload       any       `json:"payload"`
}

// CycleReport is the per-cycle summary pushed to live subscribers.
type CycleReport struct {
	Snapshot   Snapshot `json:"snapshot"`
	Results    []Result `json:"results"`
	Violations int      `json:"violations"`
	Errors     int      `json:"errors"`
	AllOK      bool     `json:"all_ok"`
}
