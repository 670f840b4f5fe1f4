package prsedm

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// IsRemote reports whether path addresses a Google Storage object.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// SplitGSPath splits gs://bucket/path/to/object into its bucket and object
// name.
func SplitGSPath(path string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
		return "", "", fmt.Errorf("tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// Open opens a local file or, when client is non-nil, a gs:// object, and
// transparently decompresses it. Closing the returned reader closes the
// underlying handle.
func Open(ctx context.Context, path string, client *storage.Client) (io.ReadCloser, error) {
	var raw io.ReadCloser

	if IsRemote(path) {
		if client == nil {
			return nil, fmt.Errorf("%s is a google storage path but no storage client was configured", path)
		}

		bucketName, objectName, err := SplitGSPath(path)
		if err != nil {
			return nil, err
		}

		rc, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
		if err != nil {
			return nil, pfx.Err(fmt.Sprintf("%v (%s)", err, path))
		}
		raw = rc
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, pfx.Err(err)
		}
		raw = f
	}

	dec, err := MaybeDecompress(raw)
	if err != nil {
		raw.Close()
		return nil, pfx.Err(err)
	}

	return &stackedCloser{ReadCloser: dec, under: raw}, nil
}

type stackedCloser struct {
	io.ReadCloser
	under io.Closer
}

func (s *stackedCloser) Close() error {
	err := s.ReadCloser.Close()
	if err2 := s.under.Close(); err == nil {
		err = err2
	}

	return err
}
