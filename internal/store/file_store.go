package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sitepilot/internal/model"

	"go.uber.org/zap"
)

const (
	sitesDir = "sites"
	ext      = ".yml"
)

// FileStore keeps pages under <root>/sites.
type FileStore struct {
	root   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{root: dir, logger: logger}
}

// Dir is the directory holding every site.
func (s *FileStore) Dir() string {
	return filepath.Join(s.root, sitesDir)
}

// Path is the file a page is stored in.
func (s *FileStore) Path(key model.Key) string {
	return filepath.Join(s.Dir(), key.Domain, filepath.FromSlash(key.Path), key.Variant+ext)
}

// Load reads the page stored under key.
func (s *FileStore) Load(key model.Key) (*model.Page, error) {
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return Decode(key, data)
}

// Save writes the page, replacing any previous version atomically.
func (s *FileStore) Save(p *model.Page) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(p.Key())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+p.Variant()+"-*"+ext)
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	s.logger.Debug("Saved page", zap.Stringer("page", p), zap.String("path", path))
	return nil
}

// List returns the pages of a domain in lexical file order.
func (s *FileStore) List(domain string) ([]*model.Page, error) {
	keys, err := s.Keys(domain)
	if err != nil {
		return nil, err
	}
	pages := make([]*model.Page, 0, len(keys))
	for _, key := range keys {
		p, err := s.Load(key)
		if err != nil {
			s.logger.Warn("Skipping unreadable page", zap.Stringer("key", key), zap.Error(err))
			continue
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// Keys lists the stored keys of a domain.
func (s *FileStore) Keys(domain string) ([]model.Key, error) {
	base := filepath.Join(s.Dir(), domain)
	var keys []model.Key
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == base {
				return fs.SkipDir
			}
			return err
		}
		if key, ok := s.keyFor(domain, base, path, d); ok {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipDir) {
		return nil, err
	}
	return keys, nil
}

func (s *FileStore) keyFor(domain, base, path string, d fs.DirEntry) (model.Key, bool) {
	if d.IsDir() || !strings.HasSuffix(d.Name(), ext) || strings.HasPrefix(d.Name(), ".") {
		return model.Key{}, false
	}
	rel, err := filepath.Rel(base, filepath.Dir(path))
	if err != nil || rel == "." {
		return model.Key{}, false
	}
	return model.Key{
		Domain:  domain,
		Path:    filepath.ToSlash(rel),
		Variant: strings.TrimSuffix(d.Name(), ext),
	}, true
}

// Domains lists every domain with stored pages.
func (s *FileStore) Domains() ([]string, error) {
	entries, err := os.ReadDir(s.Dir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var domains []string
	for _, e := range entries {
		if e.IsDir() {
			domains = append(domains, e.Name())
		}
	}
	return domains, nil
}
