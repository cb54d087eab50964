package domain

// AppStatus enumerates the observable application states.
type AppStatus string

const (
	StatusCheckingCredential AppStatus = "checking_credential"
	StatusNeedCredential     AppStatus = "need_credential"
	StatusIdle               AppStatus = "idle"
	StatusGenerating         AppStatus = "generating"
	StatusError              AppStatus = "error"
)

// Phase enumerates the steps of a workflow run.
type Phase string

const (
	PhaseSubmitted Phase = "submitted"
	PhasePolling   Phase = "polling"
	PhaseResolved  Phase = "resolved"
	PhaseFailed    Phase = "failed"
)
