package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/meseboard/internal/observability/logger"
	"github.com/smallbiznis/meseboard/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitReasonClientRate = "client-rate"
	rateLimitHeaderRemaining  = "X-RateLimit-Remaining"
	rateLimitHeaderLimit      = "X-RateLimit-Limit"
)

type uploadThrottle interface {
	Enabled() bool
	Allow(ctx context.Context, client string) (*ratelimit.Result, error)
}

// UploadRateLimit throttles uploads per client IP. When Redis is unreachable
// the request goes through.
func (s *Server) UploadRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.uploadLimiter == nil || !s.uploadLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		res, err := s.uploadLimiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("upload rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		if res.Limit > 0 {
			c.Header(rateLimitHeaderLimit, strconv.Itoa(res.Limit))
			c.Header(rateLimitHeaderRemaining, strconv.Itoa(res.Remaining))
		}
		if !res.Allowed {
			logger.FromContext(ctx).Warn("upload rate limit exceeded",
				zap.String("reason", rateLimitReasonClientRate),
				zap.String("endpoint", endpoint),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, rateLimitReasonClientRate)

			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(res)))
			c.Header("X-Rate-Limited-Reason", rateLimitReasonClientRate)
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}

func retryAfterSeconds(res *ratelimit.Result) int {
	seconds := int(math.Ceil(res.RetryAfter.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
