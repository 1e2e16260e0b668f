package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ingestdomain "github.com/smallbiznis/meseboard/internal/ingest/domain"
	"github.com/smallbiznis/meseboard/internal/observability/logger"
	"github.com/smallbiznis/meseboard/internal/oplog"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
	"go.uber.org/zap"
)

// UploadFile ingests one CSV. The body always carries the operation log,
// also when the upload failed part way.
func (s *Server) UploadFile(c *gin.Context) {
	kind, err := recorddomain.ParseKind(c.Param("kind"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}

	delimiter, err := parseDelimiter(c.PostForm("delimiter"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	content, err := s.readUpload(fh)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	log := oplog.New(logger.FromContext(ctx), s.clock.Now)
	result, err := s.ingestSvc.Upload(ctx, ingestdomain.UploadRequest{
		Kind:      kind,
		Filename:  fh.Filename,
		Content:   content,
		StatMonth: strings.TrimSpace(c.PostForm("stat_month")),
		Delimiter: delimiter,
	}, log)

	status := http.StatusOK
	var (
		inputErr *ingestdomain.InputError
		writeErr *ingestdomain.WriteError
	)
	switch {
	case err == nil:
	case errors.As(err, &inputErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &writeErr):
		status = http.StatusBadGateway
	default:
		logger.FromContext(ctx).Error("upload failed", zap.Error(err))
		status = http.StatusInternalServerError
	}
	if result == nil {
		result = &ingestdomain.UploadResult{Kind: kind, Filename: fh.Filename, Logs: log.Entries()}
	}

	c.JSON(status, gin.H{"data": result})
}

func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, invalidRequestError()
	}
	defer f.Close()

	var r io.Reader = f
	if limit := s.cfg.Upload.MaxBytes; limit > 0 {
		// One extra byte lets the ingest service see the file is too large.
		r = io.LimitReader(f, limit+1)
	}
	return io.ReadAll(r)
}
