package lifecycle

import (
	"time"

	"classd/internal/registry"
	"classd/pkg/types"
)

// Ready reports whether any interpreter is loaded for the current selection.
func (c *Controller) Ready() bool {
	var ready bool
	c.do(func() {
		if !c.selected {
			return
		}
		if _, ok := c.cur.Session(types.KindRemote); ok {
			ready = true
			return
		}
		_, ready = c.cur.Session(types.KindLocal)
	})
	return ready
}

// Status builds a detailed status response for /status.
func (c *Controller) Status() types.StatusResponse {
	var resp types.StatusResponse
	c.do(func() {
		resp = types.StatusResponse{
			State:          string(c.state),
			CachedHandles:  c.cache.Len(),
			LastError:      c.lastErr,
			UptimeSeconds:  int64(time.Since(c.startTime).Seconds()),
			ServerTimeUnix: time.Now().Unix(),
			DownloadsTotal: c.downloadsTotal,
			LoadsTotal:     c.loadsTotal,
		}
		if c.selected {
			resp.Remote = c.cur.RemoteName()
			resp.Local = c.cur.LocalName()
		}
	})
	return resp
}

// Models enumerates every defined model with its persisted download state.
func (c *Controller) Models() []types.ModelStatus {
	ids := registry.All()
	out := make([]types.ModelStatus, 0, len(ids))
	for _, id := range ids {
		st := types.ModelStatus{
			Name:    registry.Describe(id),
			Kind:    id.Kind,
			Variant: id.Variant.String(),
		}
		if id.Kind == types.KindRemote {
			st.Downloaded = c.IsRemoteDownloaded(id)
		}
		out = append(out, st)
	}
	return out
}
