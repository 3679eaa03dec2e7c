package lifecycle

import (
	"classd/internal/classifier"
	"classd/internal/download"
	"classd/internal/statestore"
)

// Default applied when ControllerConfig.EventBuffer is unset.
const defaultEventBuffer = 16

// ControllerConfig encapsulates the collaborators for Controller
// construction. All download/inference machinery is injected so tests can
// substitute fakes.
type ControllerConfig struct {
	Cache      *classifier.Cache
	Downloader download.Downloader
	Store      statestore.Store
	Publisher  EventPublisher
	// EventBuffer sizes the download-event subscription channel.
	EventBuffer int
}
