package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "moodcal/internal/log"
	"moodcal/internal/model"
	"moodcal/internal/picker"
)

var (
	ErrNotImage        = errors.New("share: not an image")
	ErrOutsideImageDir = errors.New("share: image is outside the image directory")
)

// Outbox "shares" payloads by dropping them into a directory that another
// process (sync client, mail hook, ...) picks up. Text becomes a .txt file,
// local images are copied, and remote URIs are written as .url files.
//
// Only files that sniff as images are copied, and when imageDir is set they
// must also live under it.
type Outbox struct {
	dir      string
	imageDir string
	now      func() time.Time
}

// NewOutbox writes into dir. imageDir restricts which local files may be
// copied; empty means any image file.
func NewOutbox(dir, imageDir string) *Outbox {
	return &Outbox{dir: dir, imageDir: imageDir, now: time.Now}
}

// IsAvailable reports whether the outbox directory exists or can be made.
func (o *Outbox) IsAvailable(_ context.Context) bool {
	if o.dir == "" {
		return false
	}
	if err := os.MkdirAll(o.dir, 0o700); err != nil {
		appLog.Error("share outbox unavailable", err, "dir", o.dir)
		return false
	}
	return true
}

// Share implements session.Sharer.
func (o *Outbox) Share(ctx context.Context, payload model.SharePayload) error {
	_, err := o.Write(ctx, payload)
	return err
}

// Write stores payload in the outbox and returns the file path.
func (o *Outbox) Write(_ context.Context, payload model.SharePayload) (string, error) {
	if err := os.MkdirAll(o.dir, 0o700); err != nil {
		return "", fmt.Errorf("share: create outbox: %w", err)
	}

	base := o.now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]

	if payload.IsText() {
		path := filepath.Join(o.dir, base+".txt")
		if err := os.WriteFile(path, []byte(payload.Text+"\n"), 0o600); err != nil {
			return "", fmt.Errorf("share: write text: %w", err)
		}
		appLog.Info("shared text", "path", path, "bytes", len(payload.Text))
		return path, nil
	}

	src, ok := picker.LocalPath(payload.URI)
	if !ok {
		path := filepath.Join(o.dir, base+".url")
		if err := os.WriteFile(path, []byte(payload.URI+"\n"), 0o600); err != nil {
			return "", fmt.Errorf("share: write uri: %w", err)
		}
		appLog.Info("shared uri", "path", path)
		return path, nil
	}

	if err := o.checkImage(src); err != nil {
		appLog.Warn("refusing to share local file", "src", src, "error", err.Error())
		return "", err
	}

	path := filepath.Join(o.dir, base+filepath.Ext(src))
	if err := copyFile(src, path); err != nil {
		return "", fmt.Errorf("share: copy %s: %w", src, err)
	}
	appLog.Info("shared image", "src", src, "path", path)
	return path, nil
}

// checkImage accepts src only if it resolves under imageDir (symlinks
// followed) and its content looks like an image.
func (o *Outbox) checkImage(src string) error {
	resolved, err := resolvePath(src)
	if err != nil {
		return fmt.Errorf("share: resolve %s: %w", src, err)
	}
	if o.imageDir != "" {
		root, err := resolvePath(o.imageDir)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrOutsideImageDir, src)
		}
		rel, err := filepath.Rel(root, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrOutsideImageDir, src)
		}
	}
	if !picker.IsImage(resolved) {
		return fmt.Errorf("%w: %s", ErrNotImage, src)
	}
	return nil
}

// resolvePath returns the absolute, symlink-free form of path.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
