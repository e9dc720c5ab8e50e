package accounting

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// singleflightBuild shares one build per key. The build is detached from the
// caller that started it so a disconnect does not fail the callers that joined.
// The store runner's deadline still bounds it.
func (s *Service) singleflightBuild(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error, bool) {
	buildCtx := context.WithoutCancel(ctx)
	resultChan := s.builds.DoChan(key, func() (interface{}, error) {
		return fn(buildCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

// cachedReport serves a report from the versioned cache, building it at most
// once per key across concurrent callers. Cache outages fall back to a direct
// build.
func cachedReport[T any](ctx context.Context, s *Service, report string, parts []string, build func(context.Context) (T, error)) (T, error) {
	var zero T
	if s.cache == nil {
		return timedBuildOf(ctx, s, report, build)
	}
	key, err := s.cache.BuildKey(ctx, append([]string{"reports", report}, parts...)...)
	if err != nil {
		s.logger.Warn("report cache key", slog.String("report", report), slog.Any("error", err))
		return timedBuildOf(ctx, s, report, build)
	}
	val, err, _ := s.singleflightBuild(ctx, key, func(ctx context.Context) (interface{}, error) {
		var out T
		started := time.Now()
		hit, err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return build(ctx)
		})
		if err != nil {
			return nil, err
		}
		if hit {
			s.recordCacheHit(report)
		} else {
			s.recordCacheMiss(report)
			s.observeBuild(report, time.Since(started))
		}
		return out, nil
	})
	if err != nil {
		if ledger.KindOf(err) != "" || ctx.Err() != nil {
			return zero, err
		}
		s.logger.Warn("report cache unavailable", slog.String("report", report), slog.Any("error", err))
		return timedBuildOf(ctx, s, report, build)
	}
	return val.(T), nil
}

func timedBuildOf[T any](ctx context.Context, s *Service, report string, build func(context.Context) (T, error)) (T, error) {
	started := time.Now()
	out, err := build(ctx)
	if err == nil {
		s.observeBuild(report, time.Since(started))
	}
	return out, err
}

func (s *Service) recordCacheHit(report string) {
	if s.metrics != nil {
		s.metrics.ReportCacheHit(report)
	}
}

func (s *Service) recordCacheMiss(report string) {
	if s.metrics != nil {
		s.metrics.ReportCacheMiss(report)
	}
}

func (s *Service) observeBuild(report string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveReportBuild(report, d)
	}
}
