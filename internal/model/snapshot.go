package model

import "time"

type JobSnapshot struct {
	JobID     string     `json:"job_id"`
	Kind      string     `json:"kind"`
	Source    string     `json:"source"`
	Target    string     `json:"target,omitempty"`
	Running   bool       `json:"running"`
	Label     string     `json:"label"`
	Fraction  float64    `json:"fraction"`
	Log       []string   `json:"log"`
	Archive   string     `json:"archive,omitempty"`
	Files     int        `json:"files"`
	RemoteID  string     `json:"remote_id,omitempty"`
	Err       string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
