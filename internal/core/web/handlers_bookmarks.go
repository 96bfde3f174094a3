package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/seckatie/marksync/internal/core"
	"github.com/seckatie/marksync/internal/core/auth"
	"github.com/seckatie/marksync/internal/core/db"
	"github.com/seckatie/marksync/internal/core/live"
)

func (ws *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		ws.renderTemplate(w, "index.html", indexView{ActivePage: "bookmarks"})
		return
	}
	ws.renderTemplate(w, "index.html", ws.loadIndex(r.Context(), u))
}

// loadIndex seeds the page from the snapshot loader. A failed load renders
// an empty list with the error shown.
func (ws *Server) loadIndex(ctx context.Context, u auth.User) indexView {
	view := indexView{ActivePage: "bookmarks", SignedIn: true, Email: u.Email}
	items, err := live.Load(ctx, ws.db.ForOwner(u.ID), u.ID)
	if err != nil {
		ws.logger.Error("failed to load bookmarks", zap.String("ownerID", u.ID), zap.Error(err))
		view.Error = "Could not load your bookmarks."
		return view
	}
	view.Bookmarks = toViews(items)
	return view
}

func (ws *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.FormValue("token"))
	if ws.auth == nil {
		http.Error(w, "Sign-in is not configured", http.StatusUnauthorized)
		return
	}
	if _, err := ws.auth.Authenticate(r.Context(), token); err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ws *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ws *Server) handleBookmarklet(w http.ResponseWriter, r *http.Request) {
	u, signedIn := auth.UserFrom(r.Context())
	ws.renderTemplate(w, "bookmarklet.html", map[string]any{
		"ActivePage": "bookmarklet",
		"SignedIn":   signedIn,
		"Email":      u.Email,
		"Origin":     requestOrigin(r),
	})
}

func (ws *Server) handleBookmarkletAdd(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	title := r.URL.Query().Get("title")

	if url == "" {
		http.Error(w, "Missing url parameter", http.StatusBadRequest)
		return
	}
	if err := core.ValidateBookmarkURL(url); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if title == "" {
		ctx, cancel := context.WithTimeout(r.Context(), core.DefaultTitleTimeout)
		defer cancel()
		fetched, err := core.FetchTitle(ctx, url)
		if err != nil {
			ws.logger.Debug("title probe failed", zap.String("url", url), zap.Error(err))
		}
		title = fetched
	}
	if title == "" {
		title = url
	}

	_, signedIn := auth.UserFrom(r.Context())
	ws.renderTemplate(w, "bookmarklet_add.html", map[string]any{
		"URL":      url,
		"Title":    title,
		"SignedIn": signedIn,
	})
}

func (ws *Server) createBookmark(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	_, err := ws.db.InsertBookmark(r.Context(), db.NewBookmark{
		OwnerID: u.ID,
		URL:     strings.TrimSpace(r.FormValue("url")),
		Title:   r.FormValue("title"),
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			ws.logger.Error("failed to insert bookmark", zap.Error(err))
			http.Error(w, "Internal Server Error", status)
			return
		}
		http.Error(w, err.Error(), status)
		return
	}

	// For HTMX requests, return the updated list fragment directly so the page can swap
	// cleanly without a redirect.
	if r.Header.Get("HX-Request") == "true" {
		ws.renderTemplate(w, "bookmarks.html", ws.loadIndex(r.Context(), u))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ws *Server) deleteBookmark(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	err := ws.db.DeleteBookmark(r.Context(), u.ID, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, db.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	case err != nil:
		ws.logger.Error("failed to delete bookmark", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		ws.renderTemplate(w, "bookmarks.html", ws.loadIndex(r.Context(), u))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
