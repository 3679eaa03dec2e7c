package lifecycle

import (
	"context"
	"log"

	"classd/internal/classifier"
	"classd/pkg/types"
)

// Detect classifies image with the current interpreter, preferring the
// remote model when one is loaded and falling back to the bundled local
// model. The classification itself runs on the caller's goroutine — the
// control goroutine is never blocked — and both the Detecting transition and
// the terminal ResultsReady/Failed transition are applied on the control
// goroutine. There is no cancellation once the run has started.
func (c *Controller) Detect(ctx context.Context, image []byte) ([]types.Prediction, string, error) {
	var sess classifier.Session
	var name string
	var err error
	c.do(func() {
		if !c.selected {
			err = ErrNoSelection()
			return
		}
		if s, ok := c.cur.Session(types.KindRemote); ok {
			sess, name = s, c.cur.RemoteName()
		} else if s, ok := c.cur.Session(types.KindLocal); ok {
			sess, name = s, c.cur.LocalName()
		} else {
			err = ErrNotLoaded()
			return
		}
		c.state = StateDetecting
	})
	if err != nil {
		return nil, "", err
	}

	preds, derr := c.invoker.Detect(ctx, sess, image)

	c.do(func() {
		if derr != nil {
			c.state = StateFailed
			c.lastErr = derr.Error()
			return
		}
		c.state = StateResultsReady
		c.lastErr = ""
	})
	if derr != nil {
		log.Printf("lifecycle event=detect_failed model=%q err=%v", name, derr)
		c.publisher.Publish(Event{Name: "detect_failed", Model: name, Fields: map[string]any{"error": derr.Error()}})
		return nil, name, derr
	}
	c.publisher.Publish(Event{Name: "detect_done", Model: name, Fields: map[string]any{"results": len(preds)}})
	return preds, name, nil
}
