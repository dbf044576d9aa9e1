package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/DidNoDB/didnodb/internal/server/models"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (rt *Router) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"data": "the server is running perfectly"})
}

func (rt *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if body.Username == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password required"})
		return
	}
	if err := rt.services.Auth.Register(req.Context(), body.Username, body.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user registered"})
}

func (rt *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	credential, err := rt.services.Auth.Login(req.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: credential})
}

// handleLogout exists for wire compatibility. Credentials are stateless, so
// there is nothing to revoke; clients simply discard their token.
func (rt *Router) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}
