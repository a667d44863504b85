// Package device provides terminal stand-ins for the phone capabilities the
// composer expects: a directory-backed media picker and a clock-backed voice
// recorder.
package device

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"propchat/internal/logging"
	"propchat/internal/message"
	"propchat/internal/upload"

	"go.uber.org/zap"
)

// MaxLibraryPick bounds one photo-library pick.
const MaxLibraryPick = 10

// DirPicker answers picks from a local directory. The library returns every
// image (up to MaxLibraryPick), the camera the newest image, the document
// source the newest non-image file and the location source a fixed point.
// An empty result is reported as a dismissed picker.
type DirPicker struct {
	Dir       string
	Latitude  float64
	Longitude float64
	Logger    *zap.Logger
}

// NewDirPicker creates a picker over dir.
func NewDirPicker(dir string, lat, lon float64) *DirPicker {
	return &DirPicker{
		Dir:       dir,
		Latitude:  lat,
		Longitude: lon,
		Logger:    logging.Get(logging.CategoryUpload),
	}
}

type entry struct {
	path    string
	info    os.FileInfo
	isImage bool
}

func (p *DirPicker) Pick(ctx context.Context, src upload.Source) ([]upload.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src == upload.SourceLocation {
		return []upload.Descriptor{{
			Type:      message.AttachmentLocation,
			Name:      "Current location",
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		}}, nil
	}

	entries, err := p.scan()
	if err != nil {
		return nil, err
	}

	var picked []entry
	switch src {
	case upload.SourceLibrary:
		for _, e := range entries {
			if e.isImage && len(picked) < MaxLibraryPick {
				picked = append(picked, e)
			}
		}
	case upload.SourceCamera:
		picked = newest(entries, true)
	case upload.SourceDocument:
		picked = newest(entries, false)
	default:
		return nil, fmt.Errorf("source %s is not supported by the directory picker", src)
	}

	if len(picked) == 0 {
		p.Logger.Debug("nothing to pick", zap.String("dir", p.Dir), zap.String("source", string(src)))
		return nil, upload.ErrPickCancelled
	}

	descs := make([]upload.Descriptor, 0, len(picked))
	for _, e := range picked {
		descs = append(descs, describe(e, src))
	}
	return descs, nil
}

// scan lists regular files oldest first.
func (p *DirPicker) scan() ([]entry, error) {
	des, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pick directory: %w", err)
	}
	var out []entry
	for _, de := range des {
		if !de.Type().IsRegular() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(p.Dir, de.Name())
		out = append(out, entry{path: path, info: info, isImage: strings.HasPrefix(mimeType(path), "image/")})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].info.ModTime().Before(out[j].info.ModTime())
	})
	return out, nil
}

func newest(entries []entry, images bool) []entry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].isImage == images {
			return []entry{entries[i]}
		}
	}
	return nil
}

func describe(e entry, src upload.Source) upload.Descriptor {
	d := upload.Descriptor{
		Type:     message.AttachmentDocument,
		URI:      "file://" + e.path,
		Name:     e.info.Name(),
		MimeType: mimeType(e.path),
		Size:     e.info.Size(),
	}
	if e.isImage {
		d.Type = message.AttachmentImage
		if src == upload.SourceCamera {
			d.Type = message.AttachmentCamera
		}
		d.Width, d.Height = dimensions(e.path)
	}
	return d
}

func mimeType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// dimensions reads the image header; unknown formats report zero.
func dimensions(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
