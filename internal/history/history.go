// Package history loads card and merchant transaction history for the
// investigation pipeline, cache-first with repository fallback.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// snapshotTTL bounds how stale a cached history snapshot may be.
const snapshotTTL = 2 * time.Minute

// Service loads entity histories. The cache holds whole-entity snapshots;
// window filtering happens after load so one snapshot serves every window.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a history service. cache may be nil.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// CardHistory returns the card's transactions since the given time.
func (s *Service) CardHistory(ctx context.Context, tenantID, cardID string, since time.Time) ([]domain.HistoryEntry, error) {
	if cardID == "" {
		return nil, nil
	}
	return s.load(ctx, tenantID, "card:"+cardID, since, func() ([]domain.HistoryEntry, error) {
		return s.repo.GetCardHistory(ctx, tenantID, cardID, since)
	})
}

// MerchantHistory returns the merchant's transactions since the given time.
func (s *Service) MerchantHistory(ctx context.Context, tenantID, merchantID string, since time.Time) ([]domain.HistoryEntry, error) {
	if merchantID == "" {
		return nil, nil
	}
	return s.load(ctx, tenantID, "merchant:"+merchantID, since, func() ([]domain.HistoryEntry, error) {
		return s.repo.GetMerchantHistory(ctx, tenantID, merchantID, since)
	})
}

func (s *Service) load(ctx context.Context, tenantID, key string, since time.Time, fetch func() ([]domain.HistoryEntry, error)) ([]domain.HistoryEntry, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	if s.cache != nil {
		if entries, err := s.cache.GetHistory(ctx, tenantID, key); err == nil && entries != nil {
			return filterSince(entries, since), nil
		}
	}

	if s.repo == nil {
		return nil, fmt.Errorf("no data source available")
	}
	entries, err := fetch()
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", key, err)
	}

	if s.cache != nil {
		// Cache write failures are non-fatal; the next lookup falls
		// through to the repository again.
		_ = s.cache.SetHistory(ctx, tenantID, key, entries, snapshotTTL)
	}

	return filterSince(entries, since), nil
}

func filterSince(entries []domain.HistoryEntry, since time.Time) []domain.HistoryEntry {
	if since.IsZero() {
		return entries
	}
	out := make([]domain.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

// CountCardTransactions returns the card's transaction count in the last
// windowSecs seconds. This is the HistoryCounter signature the rule engine
// expects.
func (s *Service) CountCardTransactions(ctx context.Context, tenantID, cardID string, windowSecs int) (int64, error) {
	if tenantID == "" || cardID == "" {
		return 0, fmt.Errorf("tenantID and cardID are required")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)
	entries, err := s.CardHistory(ctx, tenantID, cardID, since)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}
