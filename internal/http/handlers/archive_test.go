package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"dreamstream/internal/domain"
	"dreamstream/internal/infra"
	"dreamstream/internal/studio"
)

func TestHistoryArchive(t *testing.T) {
	media := newMediaStore(t)
	for _, id := range []string{"new", "old"} {
		if _, err := media.Put(context.Background(), id, []byte("bytes-"+id), "video/mp4"); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	s := &stubStudio{snap: studio.Snapshot{Status: domain.StatusIdle, History: []domain.GeneratedVideo{
		{ID: "new", Prompt: "second", CreatedAt: created.Add(time.Minute)},
		{ID: "gone", Prompt: "released"},
		{ID: "old", Prompt: "first", CreatedAt: created},
	}}}
	r := newTestRouter(NewApp(s, nil, media, infra.NopLogger()))

	rec := do(t, r, http.MethodGet, "/v1/history/archive", "", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("archive = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	body := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		files[f.Name] = string(data)
	}
	if files["03-new.mp4"] != "bytes-new" || files["01-old.mp4"] != "bytes-old" {
		t.Fatalf("members = %v", files)
	}
	var manifest struct {
		Videos []struct {
			File   string `json:"file"`
			ID     string `json:"id"`
			Prompt string `json:"prompt"`
		} `json:"videos"`
	}
	if err := json.Unmarshal([]byte(files["manifest.json"]), &manifest); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if len(manifest.Videos) != 2 || manifest.Videos[0].Prompt != "second" || manifest.Videos[1].File != "01-old.mp4" {
		t.Fatalf("manifest = %+v", manifest)
	}
}

func TestHistoryArchiveEmpty(t *testing.T) {
	app := NewApp(&stubStudio{}, nil, noMedia{}, infra.NopLogger())
	rec := do(t, http.HandlerFunc(app.HistoryArchive), http.MethodGet, "/v1/history/archive", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
}
