package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Modes lists the batch modes, presets and upscale options.
func (a *App) Modes(w http.ResponseWriter, r *http.Request) {
	cat := a.Batches.Catalog()
	a.json(w, http.StatusOK, map[string]any{
		"modes":   cat.ListModes(),
		"presets": cat.Presets,
		"upscale": cat.Upscale,
	})
}
