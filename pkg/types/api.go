package types

// SelectRequest chooses the active model configuration.
// Either Selector or both identities must be provided; Selector wins when set.
type SelectRequest struct {
	// Selector index from the client control (0=quantized, 1=float).
	// example: 0
	Selector *int `json:"selector,omitempty" example:"0"`
	// Explicit remote model choice.
	Remote *ModelIdentity `json:"remote,omitempty"`
	// Explicit local model choice.
	Local *ModelIdentity `json:"local,omitempty"`
}

// SelectResponse reports the outcome of a select call.
type SelectResponse struct {
	// Human-readable name of the selected remote model.
	// example: mobilenet-v2-quantized
	Remote string `json:"remote"`
	// Human-readable name of the selected local model.
	// example: mobilenet-v2-float-bundled
	Local string `json:"local"`
	// Non-fatal registration warning, if any.
	Warning string `json:"warning,omitempty"`
}

// DownloadRequest triggers a remote model download.
type DownloadRequest struct {
	// If true, the download subsystem is invoked directly; if false the
	// fetch is left to the implicit path taken when a remote load finds the
	// model absent.
	// example: true
	Explicit bool `json:"explicit"`
}

// DetectResponse carries ranked classification results.
type DetectResponse struct {
	// Model that produced the predictions.
	// example: mobilenet-v2-quantized
	Model string `json:"model"`
	// Ranked predictions, best first. Never empty on success.
	Predictions []Prediction `json:"predictions"`
}

// ProgressResponse reports download progress for the current remote model.
type ProgressResponse struct {
	// Fraction completed in [0,1].
	// example: 0.42
	Progress float64 `json:"progress" example:"0.42"`
	// Whether a download is in flight.
	// example: true
	Downloading bool `json:"downloading" example:"true"`
}

// ModelStatus summarizes one registry entry for GET /models.
type ModelStatus struct {
	// Human-readable model name.
	// example: mobilenet-v2-quantized
	Name string `json:"name" example:"mobilenet-v2-quantized"`
	// remote or local.
	// example: remote
	Kind Kind `json:"kind" example:"remote"`
	// quantized or float.
	// example: quantized
	Variant string `json:"variant" example:"quantized"`
	// For remote models, whether the download has completed.
	Downloaded bool `json:"downloaded"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Controller lifecycle state.
	// example: remote_ready
	State string `json:"state" example:"remote_ready"`
	// Currently selected remote model name.
	Remote string `json:"remote,omitempty"`
	// Currently selected local model name.
	Local string `json:"local,omitempty"`
	// Number of interpreter handles held by the cache.
	// example: 1
	CachedHandles int `json:"cached_handles" example:"1"`
	// Last error observed by the controller (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total downloads completed since startup.
	// example: 2
	DownloadsTotal uint64 `json:"downloads_total" example:"2"`
	// Total model loads since startup.
	// example: 4
	LoadsTotal uint64 `json:"loads_total" example:"4"`
}

// ModelsResponse wraps the list returned by GET /models.
type ModelsResponse struct {
	Models []ModelStatus `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
