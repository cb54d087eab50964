package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
)

// streamWriteTimeout replaces the server write timeout on streaming routes.
const streamWriteTimeout = 30 * time.Minute

// MediaStream streams a fetched video. Range requests are honoured so players can
// seek; download=1 marks the response as an attachment.
func (a *App) MediaStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	handle, f, err := a.Media.Open(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer f.Close()
	a.extendWriteDeadline(w)

	if handle.MIMEType != "" {
		w.Header().Set("Content-Type", handle.MIMEType)
	}
	if r.URL.Query().Get("download") == "1" {
		name := "dreamstream-" + handle.ID + path.Ext(handle.Key)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	http.ServeContent(w, r, handle.Key, handle.CreatedAt, f)
}

// extendWriteDeadline lifts the server-wide write timeout for a long
// response. Writers without deadline support are left alone.
func (a *App) extendWriteDeadline(w http.ResponseWriter) {
	err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		a.Logger.Warn().Err(err).Msg("handlers: write deadline not extended")
	}
}
