package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore keeps stage records as objects in one bucket, mirroring the
// FileStore layout as object prefixes. A GCS object only becomes visible
// when its writer is closed, which gives the same atomic-commit guarantee
// as the temp-file-and-rename path of the FileStore.
type GCSStore struct {
	bucket *storage.BucketHandle
}

func NewGCSStore(client *storage.Client, bucketName string) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("NewGCSStore: storage client must be provided")
	}
	if bucketName == "" {
		return nil, fmt.Errorf("NewGCSStore: bucket name must be provided")
	}
	return &GCSStore{bucket: client.Bucket(bucketName)}, nil
}

func (s *GCSStore) objectName(stage Stage, name string) string {
	return stage.Dir() + "/" + name + stage.suffix()
}

func (s *GCSStore) Has(ctx context.Context, stage Stage, name string) (bool, error) {
	_, err := s.bucket.Object(s.objectName(stage, name)).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat record for %s/%s: %w: %w", stage, name, ErrIO, err)
}

func (s *GCSStore) Save(ctx context.Context, stage Stage, name string, record any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record for %s/%s: %w: %w", stage, name, ErrIO, err)
	}
	return s.write(ctx, s.objectName(stage, name), append(data, '\n'))
}

func (s *GCSStore) Load(ctx context.Context, stage Stage, name string, out any) error {
	object := s.objectName(stage, name)
	reader, err := s.bucket.Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to read record %s: %w: %w", object, ErrIO, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read record %s: %w: %w", object, ErrIO, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal record %s: %w: %w", object, ErrIO, err)
	}
	return nil
}

func (s *GCSStore) List(ctx context.Context, stage Stage) ([]string, error) {
	query := &storage.Query{Prefix: stage.Dir() + "/"}
	it := s.bucket.Objects(ctx, query)

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list stage %s: %w: %w", stage, ErrIO, err)
		}
		base := strings.TrimPrefix(attrs.Name, stage.Dir()+"/")
		if !strings.HasSuffix(base, stage.suffix()) || strings.Contains(base, "/") {
			continue
		}
		names = append(names, strings.TrimSuffix(base, stage.suffix()))
	}
	sort.Strings(names)
	return names, nil
}

func (s *GCSStore) WriteText(ctx context.Context, stage Stage, filename, content string) error {
	return s.write(ctx, stage.Dir()+"/"+filename, []byte(content))
}

// AppendLog reads the current log, appends the line, and rewrites the
// object. GCS has no append; last-writer-wins is acceptable for a derived
// operator log.
func (s *GCSStore) AppendLog(ctx context.Context, stage Stage, filename, line string) error {
	object := stage.Dir() + "/" + filename

	var existing []byte
	reader, err := s.bucket.Object(object).NewReader(ctx)
	if err == nil {
		existing, err = io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return fmt.Errorf("failed to read log %s: %w: %w", object, ErrIO, err)
		}
	} else if !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to read log %s: %w: %w", object, ErrIO, err)
	}

	return s.write(ctx, object, append(existing, []byte(line+"\n")...))
}

func (s *GCSStore) write(ctx context.Context, object string, data []byte) error {
	writer := s.bucket.Object(object).NewWriter(ctx)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS object %s: %w: %w", object, ErrIO, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS write %s: %w: %w", object, ErrIO, err)
	}
	return nil
}
