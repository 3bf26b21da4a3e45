package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var errWriteOnly = errors.New("file was opened for writing")

type S3 struct {
	root     string
	bucket   string
	s3Client *s3.Client
}

// s3File is either a reader over an object body or a buffered writer that
// uploads its contents on Close.
type s3File struct {
	ctx    context.Context
	key    string
	body   io.ReadCloser
	buffer *bytes.Buffer
	store  *S3
}

func (f *s3File) Read(p []byte) (int, error) {
	if f.body == nil {
		return 0, errWriteOnly
	}
	return f.body.Read(p)
}

func (f *s3File) Write(p []byte) (int, error) {
	if f.buffer == nil {
		f.buffer = &bytes.Buffer{}
	}
	return f.buffer.Write(p)
}

func (f *s3File) Close() error {
	var err error
	if f.body != nil {
		err = f.body.Close()
	}
	if f.buffer != nil {
		_, putErr := f.store.s3Client.PutObject(f.ctx, &s3.PutObjectInput{
			Bucket: aws.String(f.store.bucket),
			Key:    aws.String(f.key),
			Body:   bytes.NewReader(f.buffer.Bytes()),
		})
		err = errors.Join(err, putErr)
	}
	return err
}

func newS3(bucket, root string, s3Client *s3.Client) *S3 {
	return &S3{
		bucket:   bucket,
		root:     root,
		s3Client: s3Client,
	}
}

func (s *S3) key(name string) string {
	return path.Join(s.root, name)
}

func (s *S3) Close() error {
	return nil
}

func (s *S3) Open(ctx context.Context, name string) (File, error) {
	res, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		return nil, err
	}

	return &s3File{
		ctx:   ctx,
		body:  res.Body,
		store: s,
		key:   s.key(name),
	}, nil
}

// MkdirAll is a no-op: S3 has no directories.
func (s *S3) MkdirAll(_ string, _ fs.FileMode) error {
	return nil
}

func (s *S3) Sub(dir string) (Storage, error) {
	return newS3(s.bucket, s.key(dir), s.s3Client), nil
}

func (s *S3) Create(ctx context.Context, name string) (File, error) {
	return &s3File{
		ctx:    ctx,
		store:  s,
		key:    s.key(name),
		buffer: &bytes.Buffer{},
	}, nil
}

func (s *S3) Remove(ctx context.Context, name string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}
