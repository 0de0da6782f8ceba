package projections

import (
	"context"
	"fmt"
	"math"
	"sort"

	"postpilot/internal/domain/postlog"
)

// DeliveryStatsStore defines the post log queries needed by the stats projections.
type DeliveryStatsStore interface {
	ListByPublication(ctx context.Context, tenantID, publicationID string) ([]postlog.Record, error)
	ListByCampaign(ctx context.Context, tenantID, campaignID, userID string) ([]postlog.Record, error)
}

// DeliveryStatsDeps holds dependencies for the stats projections.
type DeliveryStatsDeps struct {
	PostLogStore DeliveryStatsStore
}

// PlatformStats is the per-platform breakdown.
type PlatformStats struct {
	Platform  string `json:"platform"`
	Total     int    `json:"total"`
	Published int    `json:"published"`
	Failed    int    `json:"failed"`
}

// DeliveryStats summarises the delivery records of a publication or campaign.
type DeliveryStats struct {
	Total       int             `json:"total"`
	ByStatus    map[string]int  `json:"by_status"`
	Platforms   []PlatformStats `json:"platforms"`
	SuccessRate float64         `json:"success_rate"` // percent of settled records that published
	Retryable   int             `json:"retryable"`
}

// GetPublicationStats aggregates the tenant's records for one publication.
// PRE: tenantID and publicationID are non-empty
// POST: computed from current rows; nothing is cached
func GetPublicationStats(ctx context.Context, deps DeliveryStatsDeps, tenantID, publicationID string) (DeliveryStats, error) {
	records, err := deps.PostLogStore.ListByPublication(ctx, tenantID, publicationID)
	if err != nil {
		return DeliveryStats{}, fmt.Errorf("list post logs for publication: %w", err)
	}
	return summarize(records), nil
}

// GetCampaignStats aggregates the tenant's records for one campaign, optionally for one user.
// PRE: tenantID and campaignID are non-empty
func GetCampaignStats(ctx context.Context, deps DeliveryStatsDeps, tenantID, campaignID, userID string) (DeliveryStats, error) {
	records, err := deps.PostLogStore.ListByCampaign(ctx, tenantID, campaignID, userID)
	if err != nil {
		return DeliveryStats{}, fmt.Errorf("list post logs for campaign: %w", err)
	}
	return summarize(records), nil
}

func summarize(records []postlog.Record) DeliveryStats {
	stats := DeliveryStats{
		ByStatus: map[string]int{
			postlog.StatusPending:           0,
			postlog.StatusPublishing:        0,
			postlog.StatusPublished:         0,
			postlog.StatusFailed:            0,
			postlog.StatusOrphaned:          0,
			postlog.StatusRemovedOnPlatform: 0,
		},
		Platforms: []PlatformStats{},
	}
	byPlatform := make(map[string]*PlatformStats)

	for _, r := range records {
		stats.Total++
		stats.ByStatus[r.Status]++
		if r.CanRetry() {
			stats.Retryable++
		}

		p, ok := byPlatform[r.Platform]
		if !ok {
			p = &PlatformStats{Platform: r.Platform}
			byPlatform[r.Platform] = p
		}
		p.Total++
		switch r.Status {
		case postlog.StatusPublished:
			p.Published++
		case postlog.StatusFailed:
			p.Failed++
		}
	}

	for _, p := range byPlatform {
		stats.Platforms = append(stats.Platforms, *p)
	}
	sort.Slice(stats.Platforms, func(i, j int) bool { return stats.Platforms[i].Platform < stats.Platforms[j].Platform })

	// removed and orphaned posts did publish once
	published := stats.ByStatus[postlog.StatusPublished] + stats.ByStatus[postlog.StatusOrphaned] +
		stats.ByStatus[postlog.StatusRemovedOnPlatform]
	settled := published + stats.ByStatus[postlog.StatusFailed]
	if settled > 0 {
		stats.SuccessRate = math.Round(float64(published)/float64(settled)*1000) / 10
	}
	return stats
}
