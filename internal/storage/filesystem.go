package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Filesystem confines every path beneath its root using openat2 with
// RESOLVE_IN_ROOT, so ".." and absolute symlinks cannot escape it.
type Filesystem struct {
	root string
	dfd  int
}

func newFilesystem(root string) (*Filesystem, error) {
	dfd, err := unix.Open(root, unix.O_DIRECTORY|unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", root, err)
	}
	return &Filesystem{
		root: root,
		dfd:  dfd,
	}, nil
}

func (f *Filesystem) Close() error {
	return unix.Close(f.dfd)
}

func (f *Filesystem) Open(_ context.Context, name string) (File, error) {
	file, err := f.openFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Create truncates or creates the file, creating missing parent directories.
func (f *Filesystem) Create(_ context.Context, name string) (File, error) {
	if err := f.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return nil, err
	}
	file, err := f.openFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *Filesystem) openParentOf(name string) (*os.File, error) {
	return f.openFile(filepath.Dir(name), unix.O_DIRECTORY|unix.O_PATH, 0)
}

func (f *Filesystem) mkdir(name string, perm fs.FileMode) error {
	parent, err := f.openParentOf(name)
	if err != nil {
		return err
	}
	defer parent.Close()

	return unix.Mkdirat(int(parent.Fd()), filepath.Base(name), uint32(perm))
}

func (f *Filesystem) MkdirAll(path string, perm fs.FileMode) error {
	if path == "" || path == "." || path == "/" {
		return nil
	}

	err := f.mkdir(path, perm)
	if err == nil || errors.Is(err, unix.EEXIST) {
		return nil
	}

	err = f.MkdirAll(filepath.Dir(path), perm)
	if err != nil {
		return err
	}

	err = f.mkdir(path, perm)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return err
	}
	return nil
}

func (f *Filesystem) openFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	for {
		how := unix.OpenHow{
			Flags:   uint64(flag) | unix.O_CLOEXEC,
			Mode:    uint64(perm),
			Resolve: unix.RESOLVE_IN_ROOT,
		}
		fd, err := unix.Openat2(f.dfd, name, &how)
		if err != nil {
			// EINTR per Go issues 11180 and 39237, EAGAIN on a racing rename
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}

		return os.NewFile(uintptr(fd), name), nil
	}
}

func (f *Filesystem) Remove(_ context.Context, name string) error {
	// unlinkat has no RESOLVE_IN_ROOT, so resolve the parent first
	parent, err := f.openParentOf(name)
	if err != nil {
		return err
	}
	defer parent.Close()

	err = unix.Unlinkat(int(parent.Fd()), filepath.Base(name), 0)
	if err != nil {
		return unix.Unlinkat(int(parent.Fd()), filepath.Base(name), unix.AT_REMOVEDIR)
	}
	return nil
}

func (f *Filesystem) Sub(dir string) (Storage, error) {
	if err := f.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return newFilesystem(filepath.Join(f.root, dir))
}
