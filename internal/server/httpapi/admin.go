package httpapi

import "net/http"

func (rt *Router) handleListUsers(w http.ResponseWriter, req *http.Request) {
	users, err := rt.services.Auth.ListUsers(req.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (rt *Router) handleMetrics(w http.ResponseWriter, req *http.Request) {
	snapshot, err := rt.services.Metrics.Snapshot(req.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
