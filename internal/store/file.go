package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// FileStore 每个文档对应 <root>/<namespace>/<key>.json
type FileStore struct {
	fs   afero.Fs
	root string
}

func NewFileStore(fs afero.Fs, root string) *FileStore {
	return &FileStore{
		fs:   fs,
		root: root,
	}
}

// NewOSFileStore 使用本地磁盘
func NewOSFileStore(root string) *FileStore {
	return NewFileStore(afero.NewOsFs(), root)
}

func (s *FileStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	path, err := s.path(namespace, key)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

func (s *FileStore) Set(_ context.Context, namespace, key string, doc []byte) error {
	path, err := s.path(namespace, key)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}

	// 先写临时文件再重命名，避免读到写了一半的文档
	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := afero.WriteFile(s.fs, tmp, doc, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.Wrapf(err, "rename %s", tmp)
	}
	return nil
}

func (s *FileStore) path(namespace, key string) (string, error) {
	for _, part := range []string{namespace, key} {
		if part == "" || strings.ContainsAny(part, `/\`) || strings.Contains(part, "..") {
			return "", errors.Errorf("invalid document name %q", part)
		}
	}
	return filepath.Join(s.root, namespace, key+".json"), nil
}
