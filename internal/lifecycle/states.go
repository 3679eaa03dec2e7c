package lifecycle

// State represents the controller lifecycle state for the active session.
type State string

const (
	StateIdle         State = "idle"
	StateConfiguring  State = "configuring"
	StateDownloading  State = "downloading"
	StateRemoteReady  State = "remote_ready"
	StateLocalLoaded  State = "local_loaded"
	StateDetecting    State = "detecting"
	StateResultsReady State = "results_ready"
	StateFailed       State = "failed"
)
