package cache

import (
	"context"
	"net/url"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// File keeps each key in its own file at the root of fs.
type File struct {
	fs afero.Fs
}

func NewFile(fs afero.Fs) *File {
	return &File{fs: fs}
}

func (f *File) path(key string) string {
	return url.PathEscape(key) + ".json"
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	bs, err := afero.ReadFile(f.fs, f.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", f.path(key))
	}
	return bs, nil
}

// Put writes to a temporary file and renames it so readers never see a
// partial value.
func (f *File) Put(_ context.Context, key string, value []byte) error {
	p := f.path(key)
	tmp := p + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, value, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := f.fs.Rename(tmp, p); err != nil {
		return errors.Wrapf(err, "rename %s", tmp)
	}
	return nil
}

func (f *File) Close() error {
	return nil
}
