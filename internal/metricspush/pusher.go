// Package metricspush ships a registry to Prometheus from short-lived
// processes that are never scraped, such as the upload CLIs.
package metricspush

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/meseboard/internal/config"
	obstracing "github.com/smallbiznis/meseboard/internal/observability/tracing"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

const (
	ExporterRemoteWrite = "remote_write"
	ExporterPushgateway = "pushgateway"

	defaultPushTimeout = 5 * time.Second
)

// Pusher sends one snapshot of a registry. Implementations start no
// goroutines.
type Pusher interface {
	Push(ctx context.Context, registry *prometheus.Registry) error
}

// NewPusher builds the configured pusher. Misconfiguration is logged and
// yields nil so an upload never fails because of metrics.
func NewPusher(cfg config.Config, logger *zap.Logger) Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	pushCfg := cfg.Metrics
	if !pushCfg.Enabled {
		return nil
	}

	exporter := strings.ToLower(strings.TrimSpace(pushCfg.Exporter))
	endpoint := strings.TrimSpace(pushCfg.Endpoint)
	if endpoint == "" {
		logger.Warn("metrics push disabled", zap.Error(errors.New("METRICS_PUSH_ENDPOINT is required")))
		return nil
	}

	switch exporter {
	case ExporterRemoteWrite, "prometheus_remote_write":
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			logger.Warn("metrics push disabled", zap.Error(fmt.Errorf("invalid METRICS_PUSH_ENDPOINT: %w", err)))
			return nil
		}
		return NewRemoteWritePusher(endpoint, pushCfg.AuthToken)
	case ExporterPushgateway, "prometheus_pushgateway", "":
		return NewPushgatewayPusher(endpoint, pushCfg.Job, map[string]string{
			"environment": strings.TrimSpace(cfg.Environment),
		})
	default:
		logger.Warn("metrics push disabled", zap.String("exporter", exporter))
		return nil
	}
}

// Flush pushes registry once with a bounded timeout and logs failures.
func Flush(ctx context.Context, pusher Pusher, registry *prometheus.Registry, logger *zap.Logger) {
	if pusher == nil || registry == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()
	if err := pusher.Push(ctx, registry); err != nil {
		logger.Warn("metrics push failed", zap.Error(err))
		return
	}
	logger.Debug("metrics pushed")
}

type RemoteWritePusher struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	now        func() time.Time
}

func NewRemoteWritePusher(endpoint, authToken string) *RemoteWritePusher {
	return &RemoteWritePusher{
		endpoint:  endpoint,
		authToken: strings.TrimSpace(authToken),
		httpClient: obstracing.WrapHTTPClient(&http.Client{
			Timeout: defaultPushTimeout,
		}),
		now: time.Now,
	}
}

func (p *RemoteWritePusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}

	families, err := registry.Gather()
	if err != nil {
		return err
	}
	series := buildRemoteWriteSeries(families, p.now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	req := &prompb.WriteRequest{Timeseries: series}
	payload, err := proto.Marshal(protoadapt.MessageV2Of(req))
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(snappy.Encode(nil, payload)))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("remote write returned %s", resp.Status)
	}
	return nil
}

type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	return &PushgatewayPusher{
		endpoint: endpoint,
		job:      strings.TrimSpace(job),
		grouping: grouping,
	}
}

func (p *PushgatewayPusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}
	if strings.TrimSpace(p.endpoint) == "" {
		return errors.New("pushgateway endpoint is required")
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	pusher := push.New(p.endpoint, p.job).Gatherer(registry)
	keys := make([]string, 0, len(p.grouping))
	for key := range p.grouping {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := strings.TrimSpace(p.grouping[key])
		key = strings.TrimSpace(key)
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}
	return pusher.PushContext(ctx)
}

// buildRemoteWriteSeries flattens counters and gauges into one series each
// and histograms into their _count, _sum and cumulative _bucket series.
func buildRemoteWriteSeries(families []*dto.MetricFamily, timestampMs int64) []prompb.TimeSeries {
	var series []prompb.TimeSeries
	for _, family := range families {
		name := family.GetName()
		for _, metric := range family.GetMetric() {
			labels := metricLabels(metric)
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				if c := metric.GetCounter(); c != nil {
					series = append(series, sample(name, labels, c.GetValue(), timestampMs))
				}
			case dto.MetricType_GAUGE:
				if g := metric.GetGauge(); g != nil {
					series = append(series, sample(name, labels, g.GetValue(), timestampMs))
				}
			case dto.MetricType_HISTOGRAM:
				h := metric.GetHistogram()
				if h == nil {
					continue
				}
				series = append(series,
					sample(name+"_count", labels, float64(h.GetSampleCount()), timestampMs),
					sample(name+"_sum", labels, h.GetSampleSum(), timestampMs),
				)
				for _, b := range h.GetBucket() {
					le := append(append([]prompb.Label(nil), labels...), prompb.Label{Name: "le", Value: formatBound(b.GetUpperBound())})
					series = append(series, sample(name+"_bucket", le, float64(b.GetCumulativeCount()), timestampMs))
				}
				inf := append(append([]prompb.Label(nil), labels...), prompb.Label{Name: "le", Value: "+Inf"})
				series = append(series, sample(name+"_bucket", inf, float64(h.GetSampleCount()), timestampMs))
			}
		}
	}
	return series
}

func metricLabels(metric *dto.Metric) []prompb.Label {
	labels := make([]prompb.Label, 0, len(metric.GetLabel()))
	for _, label := range metric.GetLabel() {
		labels = append(labels, prompb.Label{Name: label.GetName(), Value: label.GetValue()})
	}
	return labels
}

func sample(name string, labels []prompb.Label, value float64, timestampMs int64) prompb.TimeSeries {
	all := make([]prompb.Label, 0, len(labels)+1)
	all = append(all, prompb.Label{Name: "__name__", Value: name})
	all = append(all, labels...)
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return prompb.TimeSeries{
		Labels:  all,
		Samples: []prompb.Sample{{Value: value, Timestamp: timestampMs}},
	}
}

func formatBound(v float64) string {
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
