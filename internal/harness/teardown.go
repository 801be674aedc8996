package harness

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Teardown is a LIFO stack of cleanup actions that runs at most once.
type Teardown struct {
	mu   sync.Mutex
	fns  []func(context.Context) error
	done bool
}

// Push registers fn. Actions pushed after Run are ignored.
func (t *Teardown) Push(fn func(context.Context) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.fns = append(t.fns, fn)
}

// Len returns the number of pending actions.
func (t *Teardown) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fns)
}

// Run executes all actions in reverse registration order and joins their errors.
func (t *Teardown) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil
	}
	t.done = true
	fns := t.fns
	t.fns = nil
	t.mu.Unlock()

	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deferDelete registers an internal DELETE of path on service when the cleanup policy asks for it.
func (h Harness) deferDelete(service, path string) {
	if h.teardown == nil {
		return
	}
	base := h.plain()
	h.teardown.Push(func(ctx context.Context) error {
		u, err := base.Resolve(service, path, true)
		if err != nil {
			return err
		}
		return base.Do(ctx, http.MethodDelete, u, func(resp *Response) error {
			switch resp.StatusCode {
			case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
				return nil
			}
			return fmt.Errorf("teardown: %w", fixtureError(service, resp))
		})
	})
}
