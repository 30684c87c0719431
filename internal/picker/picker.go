package picker

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "moodcal/internal/log"
)

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

// Picker picks photos out of a local inbox directory. The newest image wins,
// much like a camera roll opened on its most recent shot. An empty inbox
// behaves like a cancelled picker.
type Picker struct {
	dir string
}

func New(dir string) *Picker {
	return &Picker{dir: dir}
}

// PickImage implements session.ImagePicker.
func (p *Picker) PickImage(ctx context.Context) (string, bool, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Debug("image inbox missing", "dir", p.dir)
			return "", false, nil
		}
		return "", false, err
	}

	var (
		newestPath string
		newestMod  time.Time
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(p.dir, e.Name())
		if !IsImage(path) {
			continue
		}
		if newestPath == "" || info.ModTime().After(newestMod) {
			newestPath = path
			newestMod = info.ModTime()
		}
	}

	if newestPath == "" {
		return "", false, nil
	}

	abs, err := filepath.Abs(newestPath)
	if err != nil {
		return "", false, err
	}
	return FileURI(abs), true, nil
}

// IsImage reports whether the file at path looks like an image by content.
func IsImage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(buf[:n]), "image/")
}

// FileURI turns an absolute path into a file:// URI.
func FileURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// LocalPath returns the filesystem path behind a file:// URI or a bare
// path. ok is false for other schemes.
func LocalPath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", false
	}
	switch u.Scheme {
	case "file":
		return filepath.FromSlash(u.Path), true
	case "":
		return uri, true
	default:
		return "", false
	}
}
