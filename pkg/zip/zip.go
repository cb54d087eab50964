// Package zip bundles session media into a single archive.
package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"time"
)

// Asset is one archive member. Open is called lazily while the archive is
// written so large files are streamed rather than buffered.
type Asset struct {
	Filename string
	Modified time.Time
	// Compress deflates the member; already compressed media should be
	// stored as is.
	Compress bool
	Open     func() (io.ReadCloser, error)
}

// ArchiveAssets streams assets into w as a zip archive.
func ArchiveAssets(w io.Writer, assets []Asset) error {
	zw := zip.NewWriter(w)
	for _, asset := range assets {
		if err := writeAsset(zw, asset); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func writeAsset(zw *zip.Writer, asset Asset) error {
	header := &zip.FileHeader{
		Name:     asset.Filename,
		Modified: asset.Modified,
		Method:   zip.Store,
	}
	if asset.Compress {
		header.Method = zip.Deflate
	}
	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip: create %s: %w", asset.Filename, err)
	}
	src, err := asset.Open()
	if err != nil {
		return fmt.Errorf("zip: open %s: %w", asset.Filename, err)
	}
	defer src.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("zip: write %s: %w", asset.Filename, err)
	}
	return nil
}
