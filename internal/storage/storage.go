package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"ketohub/internal/errors"
	"ketohub/internal/logger"
	"ketohub/internal/recipekey"
)

// File names inside a recipe record directory.
const (
	MetadataFile = "metadata.json"
	HTMLFile     = "index.html"
	ImageFile    = "main.jpg"
)

// Layout selects how record directories are placed under the download root.
type Layout string

const (
	// LayoutFlat stores records at {root}/{key}.
	LayoutFlat Layout = "flat"
	// LayoutSession stores records at {root}/{YYYYMMDD}/{HHMMSSZ}/{key}.
	LayoutSession Layout = "session"
)

// ParseLayout validates a configured layout name.
func ParseLayout(name string) (Layout, error) {
	switch Layout(name) {
	case LayoutFlat, LayoutSession:
		return Layout(name), nil
	case "":
		return LayoutFlat, nil
	default:
		return "", errors.New(errors.ConfigurationError, fmt.Sprintf("unknown layout %q, expected flat or session", name))
	}
}

// WriteFileFunc writes data to path, replacing any existing file.
type WriteFileFunc func(path string, data []byte) error

// Options configures a Storage.
type Options struct {
	Root    string
	Layout  Layout
	Session Session
	// WriteFile overrides the filesystem writer, mainly for tests.
	WriteFile WriteFileFunc
}

// Storage writes recipe records under the download root
type Storage struct {
	root      string
	layout    Layout
	session   Session
	writeFile WriteFileFunc
	logger    *logger.Logger
}

// FileInfo represents information about a stored file
type FileInfo struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"` // "metadata", "html" or "image"
}

// NewStorage creates a new Storage instance with the provided options
func NewStorage(opts Options, log *logger.Logger) (*Storage, error) {
	if opts.Root == "" {
		return nil, errors.ErrMissingDownloadRoot
	}
	if opts.Layout == "" {
		opts.Layout = LayoutFlat
	}
	if _, err := ParseLayout(string(opts.Layout)); err != nil {
		return nil, err
	}
	if opts.Layout == LayoutSession && opts.Session.IsZero() {
		return nil, errors.New(errors.ValidationError, "session layout requires a crawl session")
	}
	if opts.WriteFile == nil {
		opts.WriteFile = writeFile
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Storage{
		root:      opts.Root,
		layout:    opts.Layout,
		session:   opts.Session,
		writeFile: opts.WriteFile,
		logger:    log,
	}, nil
}

// writeFile creates the parent directories of path and writes data to it
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return eris.Wrapf(err, "failed to create directory %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return eris.Wrapf(err, "failed to write file %s", path)
	}
	return nil
}

// RecordDir returns the directory holding the record for key.
func (s *Storage) RecordDir(key recipekey.Key) string {
	if s.layout == LayoutSession {
		return filepath.Join(s.root, s.session.Date(), s.session.Time(), string(key))
	}
	return filepath.Join(s.root, string(key))
}

// SaveMetadata writes metadata.json for key.
func (s *Storage) SaveMetadata(key recipekey.Key, md *Metadata) (*FileInfo, error) {
	data, err := md.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageError, "failed to encode metadata").
			WithContext("key", string(key))
	}
	return s.save(key, MetadataFile, "metadata", data)
}

// SaveHTML writes the raw page body as index.html for key.
func (s *Storage) SaveHTML(key recipekey.Key, body []byte) (*FileInfo, error) {
	return s.save(key, HTMLFile, "html", body)
}

// SaveImage writes the main image as main.jpg for key.
func (s *Storage) SaveImage(key recipekey.Key, data []byte) (*FileInfo, error) {
	return s.save(key, ImageFile, "image", data)
}

func (s *Storage) save(key recipekey.Key, filename, fileType string, data []byte) (*FileInfo, error) {
	path := filepath.Join(s.RecordDir(key), filename)

	if err := s.writeFile(path, data); err != nil {
		return nil, errors.Wrapf(err, errors.StorageError, "failed to write %s", filename).
			WithContext("key", string(key)).
			WithContext("path", path)
	}

	s.logger.Debug("Saved file", map[string]interface{}{
		"path": path,
		"size": len(data),
	})

	return &FileInfo{
		Path:     path,
		Filename: filename,
		Size:     int64(len(data)),
		Type:     fileType,
	}, nil
}
