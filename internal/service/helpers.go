package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

const statsCachePattern = "stats:*"

func paginationOf(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

// notFoundOr maps sql.ErrNoRows onto a NOT_FOUND error and anything else
// onto an internal error.
func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Internal(err, internal)
}

// invalidateStats drops cached aggregates after a ledger write. Failures are
// logged only; the write already succeeded.
func invalidateStats(ctx context.Context, cache *CacheService, logger *zap.Logger) {
	if !cache.Enabled() {
		return
	}
	if err := cache.Invalidate(ctx, statsCachePattern); err != nil {
		logger.Warn("invalidate stats cache", zap.Error(err))
	}
}

func makeStatsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("stats")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func optionalString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
