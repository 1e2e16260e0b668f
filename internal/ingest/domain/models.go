package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/meseboard/internal/oplog"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
)

var (
	ErrEmptyUpload  = errors.New("empty_upload")
	ErrFileTooLarge = errors.New("file_too_large")
)

// InputError marks a failure caused by the uploaded file itself. Nothing of
// the file was written to the store.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }

func (e *InputError) Unwrap() error { return e.Err }

// WriteError marks a failure while writing to the store. Batches committed
// before the failure stay committed.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }

type UploadRequest struct {
	Kind     recorddomain.Kind
	Filename string
	Content  []byte
	// StatMonth overrides the cycle stats month ("YYYY-MM").
	StatMonth string
	// Delimiter of zero is sniffed from the header line.
	Delimiter rune
}

type UploadResult struct {
	UploadID    string            `json:"upload_id"`
	Kind        recorddomain.Kind `json:"kind"`
	Filename    string            `json:"filename"`
	RawRows     int               `json:"raw_rows"`
	UniqueRows  int               `json:"unique_rows"`
	Batches     int               `json:"batches"`
	StatMonth   string            `json:"stat_month,omitempty"`
	ReportYear  int               `json:"report_year,omitempty"`
	ArchivePath string            `json:"archive_path,omitempty"`
	Encoding    string            `json:"encoding"`
	Logs        []oplog.Entry     `json:"logs"`
}

// Service ingests one file. The result is always returned, with the log
// filled up to the point of failure.
type Service interface {
	Upload(ctx context.Context, req UploadRequest, log *oplog.Log) (*UploadResult, error)
}
