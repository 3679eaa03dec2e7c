package httpapi

import "context"

// serverBaseCtx is canceled on process shutdown so in-flight detect work is
// released. Defaults to Background until SetBaseContext is called.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context canceled as soon as either parent is done.
// The cancel func must always be called so the watcher goroutine exits.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		select {
		case <-a.Done():
		case <-b.Done():
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
