package api

import (
	"fmt"
	"net/http"

	"github.com/benschem/safelyspend-sub000/factory"
)

// ListDemos returns available demo datasets and the one currently loaded.
// GET /api/demo
func (h *Handler) ListDemos(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentDemo
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"demos":   factory.Demos,
		"current": current,
	})
}

// LoadDemo resets the store and imports a demo dataset built around today.
// POST /api/demo/load
func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	var req LoadDemoRequest
	if !decode(w, r, &req) {
		return
	}

	info := findDemo(req.DemoID)
	if info == nil {
		writeError(w, http.StatusBadRequest, "Unknown demo", fmt.Errorf("demo %q not found", req.DemoID))
		return
	}
	ds, err := factory.Demo(req.DemoID, h.Now())
	if err != nil {
		h.fail(w, r, "Failed to build demo", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.fail(w, r, "Failed to reset store", err)
		return
	}
	if err := ds.Import(ctx, h.Store); err != nil {
		h.fail(w, r, "Failed to load demo", err)
		return
	}
	h.currentDemo = req.DemoID

	writeJSON(w, http.StatusOK, DemoResponse{
		Demo: info,
		Counts: map[string]int{
			"scenarios":    len(ds.Scenarios),
			"rules":        len(ds.Rules),
			"transactions": len(ds.Transactions),
			"anchors":      len(ds.Anchors),
			"goals":        len(ds.Goals),
		},
	})
}

// Reset clears every record.
// POST /api/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		h.fail(w, r, "Failed to reset store", err)
		return
	}
	h.currentDemo = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func findDemo(id string) *factory.DemoInfo {
	for i := range factory.Demos {
		if factory.Demos[i].ID == id {
			return &factory.Demos[i]
		}
	}
	return nil
}
