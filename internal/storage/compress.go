package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

var ErrTooLarge = errors.New("upload exceeds the maximum size")

// WriteCompressed stores r under name as a zstd stream and returns the
// number of uncompressed bytes written. Reading more than limit bytes
// aborts the write with ErrTooLarge and removes the partial object.
func WriteCompressed(ctx context.Context, store Manager, name string, r io.Reader, limit int64) (int64, error) {
	file, err := store.Create(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", name, err)
	}

	written, err := copyCompressed(file, r, limit)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := store.Remove(ctx, name); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
		return written, err
	}
	return written, nil
}

func copyCompressed(w io.Writer, r io.Reader, limit int64) (int64, error) {
	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(encoder, io.LimitReader(r, limit+1))
	if err != nil {
		encoder.Close()
		return written, err
	}
	if written > limit {
		encoder.Close()
		return written, ErrTooLarge
	}
	return written, encoder.Close()
}

type decompressedFile struct {
	*zstd.Decoder
	file File
}

func (d decompressedFile) Close() error {
	d.Decoder.Close()
	return d.file.Close()
}

// OpenDecompressed opens an object written by WriteCompressed.
func OpenDecompressed(ctx context.Context, store Manager, name string) (io.ReadCloser, error) {
	file, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return decompressedFile{Decoder: decoder, file: file}, nil
}
