package main

import (
	"context"
	"net/http"
	"time"
)

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		a.log.Warn("health", "err", err)
		writeJSON(w, 503, map[string]any{"ok": false, "error": "database unavailable"})
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)})
}
