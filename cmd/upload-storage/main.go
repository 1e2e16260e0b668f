// Command upload-storage copies an overview export and a person-node export
// into the backend object store under {folder}/{YYYY-MM}.csv.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smallbiznis/meseboard/internal/archive"
	"github.com/smallbiznis/meseboard/internal/cli"
	"github.com/smallbiznis/meseboard/internal/config"
	"github.com/smallbiznis/meseboard/internal/logger"
	recorddomain "github.com/smallbiznis/meseboard/internal/record/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const contentTypeCSV = "text/csv"

func main() {
	err := newRootCmd(os.Stdout, os.Stderr).Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.ExitCode(err))
}

type options struct {
	bucket    string
	logLevel  string
	logFormat string
}

type object struct {
	kind recorddomain.Kind
	path string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:           "upload-storage <overview csv> <person-node csv>",
		Short:         "Upload an overview and a person-node CSV to the object store",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return cli.WithCode(cli.ExitUsage, fmt.Errorf("用法：%s: %w", cmd.Use, err))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := cli.BackendFromEnv()
			if err != nil {
				fmt.Fprintf(stderr, "请设置 %s 与 %s 环境变量\n", cli.EnvBackendURL, cli.EnvServiceKey)
				return err
			}
			objects := []object{
				{kind: recorddomain.KindOverview, path: args[0]},
				{kind: recorddomain.KindPersonNode, path: args[1]},
			}
			return run(cmd.Context(), backend, opts, objects, stdout)
		},
	}

	cmd.Flags().StringVar(&opts.bucket, "bucket", "", "bucket name, defaults to ARCHIVE_BUCKET")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "console", "log format: console or json")
	return cmd
}

func run(ctx context.Context, backend cli.Backend, opts options, objects []object, stdout io.Writer) error {
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
	bucket := opts.bucket
	if bucket == "" {
		bucket = cfg.Archive.Bucket
	}

	store, err := archive.NewGCSStore(ctx, archive.GCSConfig{
		Bucket:      bucket,
		ProjectID:   cfg.Archive.ProjectID,
		Credentials: backend.ServiceKey,
		Endpoint:    backend.URL,
	}, log)
	if err != nil {
		return err
	}
	defer store.Close()

	return uploadAll(ctx, store, objects, time.Now().UTC(), log, stdout)
}

// uploadAll makes sure the bucket exists, then uploads every object even
// after a failure.
func uploadAll(ctx context.Context, store archive.Store, objects []object, now time.Time, log *zap.Logger, stdout io.Writer) error {
	if err := store.EnsureBucket(ctx); err != nil {
		fmt.Fprintf(stdout, "创建存储桶失败: %v\n", err)
		return err
	}

	var errs []error
	for _, o := range objects {
		content, err := os.ReadFile(o.path)
		if err != nil {
			fmt.Fprintf(stdout, "读取 %s 失败: %v\n", o.path, err)
			errs = append(errs, err)
			continue
		}
		name := archive.MonthlyPath(o.kind, now)
		if err := store.Put(ctx, name, content, contentTypeCSV); err != nil {
			fmt.Fprintf(stdout, "上传失败 %s: %v\n", name, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		log.Info("uploaded object", zap.String("bucket", store.Bucket()), zap.String("object", name), zap.Int("bytes", len(content)))
		fmt.Fprintf(stdout, "已上传 %s/%s\n", store.Bucket(), name)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	fmt.Fprintln(stdout, "上传完成")
	return nil
}
