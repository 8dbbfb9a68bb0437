package headless

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// statusTracker records the HTTP status of the main document response.
type statusTracker struct {
	mu     sync.Mutex
	status int
}

// trackStatus listens for network responses on the target and captures the
// status code of the navigated document.
func trackStatus(taskCtx context.Context) *statusTracker {
	t := &statusTracker{}
	chromedp.ListenTarget(taskCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		t.mu.Lock()
		if t.status == 0 {
			t.status = int(resp.Response.Status)
		}
		t.mu.Unlock()
	})
	return t
}

func (t *statusTracker) code() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
