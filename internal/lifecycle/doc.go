// Package lifecycle coordinates model selection, download tracking, and
// interpreter loading. It is structured into small files by concern:
//
//   - controller.go: core Controller type, control goroutine, selection and
//     download/load operations.
//   - config.go: ControllerConfig and defaults.
//   - states.go: lifecycle State enumeration.
//   - errors.go: error types and helpers (IsNoSelection, IsNotLoaded).
//   - events.go: EventPublisher plumbing for observability.
//   - eventpub_memory.go: in-memory publisher for tests.
//   - status.go: Status/Models reporting helpers.
//   - detect.go: classification entry point bridging to the invoker.
//
// Concurrency model: a single control goroutine owns all mutable state (the
// current selection, the interpreter cache, download-completed flags).
// Download completion events arrive on an unspecified goroutine and are
// marshaled onto the control goroutine before any state is touched; inference
// runs on the caller's goroutine and its result is marshaled the same way.
// Public methods are safe for concurrent use but must not be called from
// inside the control goroutine.
package lifecycle
