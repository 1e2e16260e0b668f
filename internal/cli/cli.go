// Package cli holds what the upload command line tools share: backend
// credentials, exit codes, terminal output of the operation log and the
// metrics pushed at exit.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/smallbiznis/meseboard/internal/metricspush"
	obsmetrics "github.com/smallbiznis/meseboard/internal/observability/metrics"
	"github.com/smallbiznis/meseboard/internal/oplog"
	"go.uber.org/zap"
)

const (
	EnvBackendURL = "BACKEND_URL"
	EnvServiceKey = "BACKEND_SERVICE_KEY"

	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

var ErrMissingBackendEnv = errors.New("missing_backend_env")

// Backend is where a CLI sends its files.
type Backend struct {
	URL        string
	ServiceKey string
}

// BackendFromEnv reads BACKEND_URL and BACKEND_SERVICE_KEY. Both are required.
func BackendFromEnv() (Backend, error) {
	b := Backend{
		URL:        strings.TrimSpace(os.Getenv(EnvBackendURL)),
		ServiceKey: strings.TrimSpace(os.Getenv(EnvServiceKey)),
	}
	if b.URL == "" || b.ServiceKey == "" {
		return Backend{}, WithCode(ExitFailure, fmt.Errorf("缺少 %s 或 %s: %w", EnvBackendURL, EnvServiceKey, ErrMissingBackendEnv))
	}
	return b, nil
}

// PostgresDSN puts the service key into the URL as the password unless the
// URL already carries one.
func PostgresDSN(backendURL, serviceKey string) (string, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", EnvBackendURL, err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("invalid %s: scheme must be postgres", EnvBackendURL)
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			return u.String(), nil
		}
	}
	user := "postgres"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, serviceKey)
	return u.String(), nil
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// WithCode attaches a process exit code to err.
func WithCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode is the code to exit with after err. Errors without a code exit 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return ExitFailure
}

// FormatEntry renders one log entry as a terminal line.
func FormatEntry(e oplog.Entry) string {
	return fmt.Sprintf("[%s] [%s] %s", e.Time.Format("15:04:05"), e.Severity, e.Message)
}

// Stream prints every entry of log to w as it is added.
func Stream(log *oplog.Log, w io.Writer) {
	log.OnEntry(func(e oplog.Entry) {
		fmt.Fprintln(w, FormatEntry(e))
	})
}

// Metrics collects the ingest metrics of one CLI run in a private registry
// and pushes them once at exit.
type Metrics struct {
	Registry *prometheus.Registry
	Ingest   *obsmetrics.IngestMetrics
	pusher   metricspush.Pusher
	log      *zap.Logger
}

func NewMetrics(cfg config.Config, log *zap.Logger) *Metrics {
	registry := prometheus.NewRegistry()
	return &Metrics{
		Registry: registry,
		Ingest: obsmetrics.NewIngestMetrics(registry, obsmetrics.Config{
			ServiceName: cfg.AppName,
			Environment: cfg.Environment,
		}),
		pusher: metricspush.NewPusher(cfg, log),
		log:    log,
	}
}

// Flush pushes the registry when a push target is configured.
func (m *Metrics) Flush(ctx context.Context) {
	if m == nil {
		return
	}
	metricspush.Flush(ctx, m.pusher, m.Registry, m.log)
}
