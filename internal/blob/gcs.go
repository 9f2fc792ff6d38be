package blob

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

// GCSBackend keeps objects in a Cloud Storage bucket under an optional prefix.
type GCSBackend struct {
	client   *storage.Client
	bucket   string
	prefix   string
	attempts uint
}

// GCS returns a backend for bucket. Object names are joined onto prefix.
func GCS(client *storage.Client, bucket, prefix string) *GCSBackend {
	return &GCSBackend{client: client, bucket: bucket, prefix: prefix, attempts: 3}
}

func (b *GCSBackend) key(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

func (b *GCSBackend) object(name string) *storage.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(b.key(name))
}

func (b *GCSBackend) retryOpts(ctx context.Context, op, name string) []retry.Option {
	return []retry.Option{
		retry.Attempts(b.attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(2 * time.Minute),
		retry.MaxJitter(10 * time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			zap.L().Info("blob: retrying gcs operation",
				zap.String("op", op),
				zap.String("object", b.key(name)),
				zap.Uint("attempt", n),
				zap.Error(err),
			)
		}),
	}
}

// Read implements Backend.
func (b *GCSBackend) Read(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := retry.Do(func() error {
		var err error
		data, err = readObject(ctx, b.object(name))
		if errors.Is(err, storage.ErrObjectNotExist) {
			return retry.Unrecoverable(err)
		}
		return err
	}, b.retryOpts(ctx, "read", name)...)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, eris.Wrapf(ErrNotExist, "blob: read gs://%s/%s", b.bucket, b.key(name))
		}
		return nil, eris.Wrapf(err, "blob: read gs://%s/%s", b.bucket, b.key(name))
	}
	return data, nil
}

func readObject(ctx context.Context, obj *storage.ObjectHandle) ([]byte, error) {
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck

	return io.ReadAll(r)
}

// Write implements Backend. Cloud Storage object writes are atomic on Close.
func (b *GCSBackend) Write(ctx context.Context, name string, data []byte) error {
	err := retry.Do(func() error {
		return writeObject(ctx, b.object(name), data)
	}, b.retryOpts(ctx, "write", name)...)
	return eris.Wrapf(err, "blob: write gs://%s/%s", b.bucket, b.key(name))
}

// Append implements Backend. Objects are immutable, so append reads the
// current generation and rewrites it with a generation precondition. A
// concurrent writer makes the precondition fail and the append is retried.
func (b *GCSBackend) Append(ctx context.Context, name string, data []byte) error {
	err := retry.Do(func() error {
		obj := b.object(name)

		attrs, err := obj.Attrs(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return writeObject(ctx, obj.If(storage.Conditions{DoesNotExist: true}), data)
		}
		if err != nil {
			return err
		}

		existing, err := readObject(ctx, obj.Generation(attrs.Generation))
		if err != nil {
			return err
		}
		combined := make([]byte, 0, len(existing)+len(data))
		combined = append(combined, existing...)
		combined = append(combined, data...)

		return writeObject(ctx, obj.If(storage.Conditions{GenerationMatch: attrs.Generation}), combined)
	}, append(b.retryOpts(ctx, "append", name), retry.RetryIf(retryableAppend))...)
	return eris.Wrapf(err, "blob: append gs://%s/%s", b.bucket, b.key(name))
}

func writeObject(ctx context.Context, obj *storage.ObjectHandle, data []byte) error {
	w := obj.NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// retryableAppend retries precondition conflicts and transient failures but
// gives up on request and permission errors.
func retryableAppend(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusPreconditionFailed:
			return true
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return false
		}
	}
	return true
}
