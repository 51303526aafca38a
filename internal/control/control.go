package control

import "time"

// Request is one line of JSON sent to the daemon's control socket.
type Request struct {
	Op string `json:"op"`
}

type Status struct {
	Running      bool         `json:"running"`
	UptimeSec    float64      `json:"uptime_sec"`
	Mode         string       `json:"mode"`
	SampleRate   int          `json:"sample_rate"`
	Heard        int64        `json:"heard"`
	HooksSent    int64        `json:"hooks_sent"`
	HooksSkipped int64        `json:"hooks_skipped"`
	HooksDropped int64        `json:"hooks_dropped"`
	LastHeard    *time.Time   `json:"last_heard,omitempty"`
	Transcripts  []Transcript `json:"transcripts"`
}

type SimpleResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type Transcript struct {
	Text      string    `json:"text"`
	Window    int       `json:"window"`
	Timestamp time.Time `json:"timestamp"`
}
