package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DidNoDB/didnodb/internal/server/models"
)

type saveDocumentRequest struct {
	Data json.RawMessage `json:"data"`
}

func (rt *Router) handleSaveDocument(w http.ResponseWriter, req *http.Request) {
	owner := getIdentity(req.Context()).Username
	if rt.maxRequestBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, rt.maxRequestBytes)
	}
	var body saveDocumentRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request entity too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(body.Data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "data field required"})
		return
	}
	id, err := rt.services.Documents.Save(req.Context(), owner, models.Payload(body.Data))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (rt *Router) handleGetDocument(w http.ResponseWriter, req *http.Request) {
	owner := getIdentity(req.Context()).Username
	id := chi.URLParam(req, "id")
	payload, err := rt.services.Documents.Get(req.Context(), owner, id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (rt *Router) handleListDocuments(w http.ResponseWriter, req *http.Request) {
	owner := getIdentity(req.Context()).Username
	docs, err := rt.services.Documents.List(req.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (rt *Router) handleDeleteDocument(w http.ResponseWriter, req *http.Request) {
	owner := getIdentity(req.Context()).Username
	id := chi.URLParam(req, "id")
	if err := rt.services.Documents.Delete(req.Context(), owner, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "document deleted"})
}
