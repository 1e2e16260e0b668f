// Package archive keeps a copy of every uploaded source file in object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/smallbiznis/meseboard/internal/record/domain"
)

var (
	ErrArchiveDisabled = errors.New("archive_disabled")
	ErrBucketNotFound  = errors.New("bucket_not_found")
)

// Store writes blobs into a single bucket.
type Store interface {
	Bucket() string
	Put(ctx context.Context, object string, content []byte, contentType string) error
	EnsureBucket(ctx context.Context) error
}

var unsafeObjectChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeName replaces everything outside [a-zA-Z0-9.-] with an underscore.
func SanitizeName(name string) string {
	return unsafeObjectChars.ReplaceAllString(name, "_")
}

// ObjectPath lays uploads out as {folder}/{YYYY-MM}/{unix_ms}_{name}.
func ObjectPath(kind domain.Kind, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%d_%s", kind.Folder(), now.Format("2006-01"), now.UnixMilli(), SanitizeName(filename))
}

// MonthlyPath is the fixed per-month layout used by the storage CLI.
func MonthlyPath(kind domain.Kind, now time.Time) string {
	return fmt.Sprintf("%s/%s.csv", kind.Folder(), now.Format("2006-01"))
}

type disabled struct{}

// Disabled is the store used when archival is switched off.
func Disabled() Store { return disabled{} }

func (disabled) Bucket() string { return "" }

func (disabled) Put(context.Context, string, []byte, string) error {
	return ErrArchiveDisabled
}

func (disabled) EnsureBucket(context.Context) error {
	return ErrArchiveDisabled
}
