package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seckatie/marksync/internal/core/db"
	"github.com/seckatie/marksync/internal/core/live"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 16 << 10

func (ws *Server) apiListBookmarks(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	items, err := ws.db.ForOwner(u.ID).List(r.Context(), u.ID)
	if err != nil {
		ws.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (ws *Server) apiCreateBookmark(w http.ResponseWriter, r *http.Request) {
	var in live.NewBookmark
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return
	}

	// The owner always comes from the token, never from the body.
	u := currentUser(r)
	b, err := ws.db.InsertBookmark(r.Context(), db.NewBookmark{
		OwnerID: u.ID,
		URL:     in.URL,
		Title:   in.Title,
	})
	if err != nil {
		ws.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, db.ToLive(b))
}

func (ws *Server) apiDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if err := ws.db.DeleteBookmark(r.Context(), u.ID, chi.URLParam(r, "id")); err != nil {
		ws.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
