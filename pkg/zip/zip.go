package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"time"
)

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
	Modified time.Time
}

// Write streams assets into a zip archive on w. A filename already taken in
// the archive gets the first free numeric prefix.
func Write(w io.Writer, assets []Asset) error {
	zw := zip.NewWriter(w)
	used := make(map[string]bool, len(assets))
	for _, asset := range assets {
		name := asset.Filename
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%d-%s", n, asset.Filename)
		}
		used[name] = true

		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: asset.Modified}
		if isCompressed(asset.MIME) {
			hdr.Method = zip.Store
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := fw.Write(asset.Data); err != nil {
			return fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	return zw.Close()
}

// media containers that do not shrink under deflate
func isCompressed(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png", "image/webp", "video/mp4", "video/webm", "audio/mpeg":
		return true
	}
	return false
}
