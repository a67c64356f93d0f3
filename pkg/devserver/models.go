package devserver

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Body struct {
		Status  string `json:"status" example:"ok" doc:"Server status"`
		Version string `json:"version" example:"0.1.0" doc:"kiln version"`
	}
}

// StatusBody mirrors the coordinator snapshot.
type StatusBody struct {
	State        string   `json:"state" example:"running" doc:"Coordinator state: no_process, running or terminating"`
	Ready        bool     `json:"ready" doc:"Whether every required target has built at least once"`
	Built        []string `json:"built" doc:"Targets that have built successfully"`
	Pending      []string `json:"pending" doc:"Targets still waiting for a first successful build"`
	Handle       string   `json:"handle,omitempty" doc:"Identity of the running process"`
	PID          int      `json:"pid,omitempty" doc:"PID of the running process"`
	Launches     int      `json:"launches" doc:"Launches this session"`
	Terminations int      `json:"terminations" doc:"Terminations requested this session"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Body StatusBody
}

// RelaunchResponse is returned by POST /api/relaunch.
type RelaunchResponse struct {
	Body struct {
		Accepted bool   `json:"accepted" doc:"Whether the request was queued"`
		Message  string `json:"message" example:"relaunch queued"`
	}
}
