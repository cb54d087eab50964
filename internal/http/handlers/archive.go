package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"dreamstream/internal/domain"
	"dreamstream/pkg/zip"
)

type archiveEntry struct {
	File string `json:"file"`
	domain.GeneratedVideo
}

// HistoryArchive streams every session video plus a manifest as one zip.
// Entries whose media is no longer available are skipped.
func (a *App) HistoryArchive(w http.ResponseWriter, r *http.Request) {
	history := a.Studio.Snapshot().History

	var (
		assets   []zip.Asset
		manifest []archiveEntry
		opened   []*os.File
	)
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()

	for i, v := range history {
		handle, f, err := a.Media.Open(v.ID)
		if err != nil {
			a.Logger.Warn().Err(err).Str("video_id", v.ID).Msg("handlers: archive skips video")
			continue
		}
		opened = append(opened, f)
		name := fmt.Sprintf("%02d-%s%s", len(history)-i, v.ID, path.Ext(handle.Key))
		file := f
		assets = append(assets, zip.Asset{
			Filename: name,
			Modified: v.CreatedAt,
			Open:     func() (io.ReadCloser, error) { return io.NopCloser(file), nil },
		})
		manifest = append(manifest, archiveEntry{File: name, GeneratedVideo: v})
	}
	if len(assets) == 0 {
		a.error(w, r, http.StatusNotFound, codeNotFound, "")
		return
	}

	manifestJSON, err := json.MarshalIndent(map[string]any{"videos": manifest}, "", "  ")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	assets = append(assets, zip.Asset{
		Filename: "manifest.json",
		Modified: time.Now().UTC(),
		Compress: true,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(manifestJSON)), nil
		},
	})

	a.extendWriteDeadline(w)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=dreamstream-session-%s.zip", time.Now().UTC().Format("20060102-150405")))
	w.WriteHeader(http.StatusOK)
	if err := zip.ArchiveAssets(w, assets); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: archive stream aborted")
	}
}
