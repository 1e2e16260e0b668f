// Command upload-csv loads an overview export and a person-node export into
// the backend database, the same way the dashboard upload endpoint does.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meseboard/internal/archive"
	"github.com/smallbiznis/meseboard/internal/cli"
	"github.com/smallbiznis/meseboard/internal/clock"
	"github.com/smallbiznis/meseboard/internal/config"
	ingestdomain "github.com/smallbiznis/meseboard/internal/ingest/domain"
	"github.com/smallbiznis/meseboard/internal/ingest/service"
	"github.com/smallbiznis/meseboard/internal/logger"
	"github.com/smallbiznis/meseboard/internal/normalize"
	"github.com/smallbiznis/meseboard/internal/oplog"
	"github.com/smallbiznis/meseboard/internal/record"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
	"github.com/smallbiznis/meseboard/internal/record/repository"
	"github.com/smallbiznis/meseboard/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	err := newRootCmd(os.Stdout, os.Stderr).Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.ExitCode(err))
}

type options struct {
	personDelimiter string
	logLevel        string
	logFormat       string
}

// job is one file of the run.
type job struct {
	kind      recorddomain.Kind
	path      string
	delimiter rune
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:           "upload-csv <overview csv> <person-node csv>",
		Short:         "Upsert an overview and a person-node CSV into the backend database",
		Args:          usageArgs(cobra.ExactArgs(2)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := cli.BackendFromEnv()
			if err != nil {
				fmt.Fprintf(stderr, "请设置 %s 与 %s 环境变量\n", cli.EnvBackendURL, cli.EnvServiceKey)
				return err
			}
			delim, err := parseDelimiter(opts.personDelimiter)
			if err != nil {
				return cli.WithCode(cli.ExitUsage, err)
			}
			jobs := []job{
				{kind: recorddomain.KindOverview, path: args[0], delimiter: ','},
				{kind: recorddomain.KindPersonNode, path: args[1], delimiter: delim},
			}
			return run(cmd.Context(), backend, opts, jobs, stdout)
		},
	}

	cmd.Flags().StringVar(&opts.personDelimiter, "person-delimiter", `\t`, "field delimiter of the person-node file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "console", "log format: console or json")
	return cmd
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return cli.WithCode(cli.ExitUsage, fmt.Errorf("用法：%s: %w", cmd.Use, err))
		}
		return nil
	}
}

func parseDelimiter(raw string) (rune, error) {
	switch raw {
	case `\t`, "\t", "tab":
		return '\t', nil
	case "comma", ",":
		return ',', nil
	case "semicolon", ";":
		return ';', nil
	}
	runes := []rune(raw)
	if len(runes) != 1 {
		return 0, fmt.Errorf("invalid --person-delimiter %q", raw)
	}
	return runes[0], nil
}

func run(ctx context.Context, backend cli.Backend, opts options, jobs []job, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := logger.New(opts.logLevel, opts.logFormat)
	if err != nil {
		return cli.WithCode(cli.ExitUsage, err)
	}
	defer func() { _ = log.Sync() }()

	cfg := config.Load()
	dsn, err := cli.PostgresDSN(backend.URL, backend.ServiceKey)
	if err != nil {
		return err
	}
	cfg.DBType = "postgres"
	cfg.DBURL = dsn

	conn, err := db.Open(db.ConfigFrom(cfg))
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}
	if sqlDB, err := conn.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := record.Migrate(cfg, conn, log); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	rules, err := config.NewIngestConfigHolder(log)
	if err != nil {
		return fmt.Errorf("ingest config: %w", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	metrics := cli.NewMetrics(cfg, log)
	defer metrics.Flush(context.Background())

	clk := clock.SystemClock{}
	svc := service.NewService(service.Params{
		DB:            conn,
		Log:           log,
		GenID:         node,
		Repo:          repository.Provide(),
		Normalizer:    normalize.New(rules, cfg.Location(), clk),
		Rules:         rules,
		Config:        cfg,
		Clock:         clk,
		Archive:       archive.Disabled(),
		IngestMetrics: metrics.Ingest,
	})

	return uploadAll(ctx, svc, jobs, log, stdout)
}

// uploadAll attempts every job even after a failure and reports whether any
// of them failed.
func uploadAll(ctx context.Context, svc ingestdomain.Service, jobs []job, log *zap.Logger, stdout io.Writer) error {
	var errs []error
	for _, j := range jobs {
		content, err := os.ReadFile(j.path)
		if err != nil {
			fmt.Fprintf(stdout, "[%s] [error] 读取 %s 失败: %v\n", time.Now().Format("15:04:05"), j.path, err)
			errs = append(errs, fmt.Errorf("%s: %w", j.kind.Label(), err))
			continue
		}

		oplogger := oplog.New(log, time.Now)
		cli.Stream(oplogger, stdout)
		_, err = svc.Upload(ctx, ingestdomain.UploadRequest{
			Kind:      j.kind,
			Filename:  filepath.Base(j.path),
			Content:   content,
			Delimiter: j.delimiter,
		}, oplogger)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.kind.Label(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
