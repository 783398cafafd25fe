// Package media keeps uploaded product images and profile photos in a managed directory,
// with a downscaled preview next to every stored image.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"storefront/internal/shop"

	"github.com/nfnt/resize"
)

const (
	MaxFileSize = 5 << 20
	PreviewSize = 200

	previewDir  = "previews"
	maxAttempts = 100
)

var allowedExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// Storage is a directory of managed images
type Storage struct {
	dir string
	now func() time.Time
}

// NewStorage creates a storage rooted at dir. The directory is created on first save.
func NewStorage(dir string) *Storage {
	return &Storage{dir: dir, now: time.Now}
}

// Dir returns the managed directory
func (s *Storage) Dir() string {
	return s.dir
}

// EnsureDir creates the managed directory and its preview subdirectory
func (s *Storage) EnsureDir() error {
	if err := os.MkdirAll(filepath.Join(s.dir, previewDir), 0o755); err != nil {
		return fmt.Errorf("%w: failed to create image directory: %w", shop.ErrIO, err)
	}
	return nil
}

// Save stores an uploaded image under a generated name derived from label and the current time
// and returns that name. originalName only contributes its extension.
func (s *Storage) Save(label, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExts[ext] {
		return "", fmt.Errorf("%w: unsupported image type %q", shop.ErrInvalidValue, ext)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read upload: %w", shop.ErrIO, err)
	}
	if len(data) > MaxFileSize {
		return "", fmt.Errorf("%w: image exceeds the %dMB limit", shop.ErrInvalidValue, MaxFileSize>>20)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: not a readable image: %w", shop.ErrInvalidValue, err)
	}

	if err := s.EnsureDir(); err != nil {
		return "", err
	}

	name, f, err := s.create(Slug(label), ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(filepath.Join(s.dir, name))
		return "", fmt.Errorf("%w: failed to write image: %w", shop.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(filepath.Join(s.dir, name))
		return "", fmt.Errorf("%w: failed to write image: %w", shop.ErrIO, err)
	}

	if err := s.writePreview(name, img); err != nil {
		os.Remove(filepath.Join(s.dir, name))
		return "", err
	}
	return name, nil
}

// create opens a new file exclusively, bumping a counter suffix when the timestamped name is taken.
func (s *Storage) create(base, ext string) (string, *os.File, error) {
	stamp := s.now()
	stem := fmt.Sprintf("%s_%s%06d", base, stamp.Format("20060102150405"), stamp.Nanosecond()/int(time.Microsecond))

	for i := 0; i < maxAttempts; i++ {
		name := stem + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("%w: failed to create image: %w", shop.ErrIO, err)
		}
		return name, f, nil
	}
	return "", nil, fmt.Errorf("%w: no free file name for %s", shop.ErrIO, stem)
}

func (s *Storage) writePreview(name string, img image.Image) error {
	preview := resize.Thumbnail(PreviewSize, PreviewSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, preview, &jpeg.Options{Quality: 75}); err != nil {
		return fmt.Errorf("failed to encode preview image: %w", err)
	}
	if err := os.WriteFile(s.previewPath(name), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write preview: %w", shop.ErrIO, err)
	}
	return nil
}

func (s *Storage) previewPath(name string) string {
	return filepath.Join(s.dir, previewDir, strings.TrimSuffix(name, filepath.Ext(name))+".jpg")
}

// Delete removes an image and its preview. A missing file is not an error.
func (s *Storage) Delete(name string) error {
	if name == "" {
		return nil
	}
	if !validName(name) {
		return fmt.Errorf("%w: invalid image name %q", shop.ErrInvalidValue, name)
	}

	for _, path := range []string{filepath.Join(s.dir, name), s.previewPath(name)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: failed to delete %s: %w", shop.ErrIO, path, err)
		}
	}
	return nil
}

// Path resolves a stored image. preview selects the downscaled copy.
func (s *Storage) Path(name string, preview bool) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %s", shop.ErrImageNotFound, name)
	}

	path := filepath.Join(s.dir, name)
	if preview {
		path = s.previewPath(name)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: image %s", shop.ErrImageNotFound, name)
		}
		return "", fmt.Errorf("%w: %w", shop.ErrIO, err)
	}
	return path, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// Slug lowercases label and replaces spaces with underscores, dropping characters unsafe in file names.
func Slug(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
