package handler

import (
	"net/http"

	"cloak/internal/app/cloak"
	"cloak/internal/configs"
	"cloak/internal/pkg/resp"
)

// AppDeps carries the collaborators shared by every handler.
type AppDeps struct {
	Cloak  *cloak.Cloak
	Config *configs.AppConfig
}

// onLoop runs fn on the orchestrator's event loop. It writes an error response and
// reports false when the loop is unavailable.
func (d *AppDeps) onLoop(w http.ResponseWriter, r *http.Request, fn func()) bool {
	err := d.Cloak.Do(r.Context(), fn)
	if err == nil {
		return true
	}

	resp.RespondFailure(w, r, err)
	return false
}
