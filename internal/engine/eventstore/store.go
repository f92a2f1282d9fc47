package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/persistence"
)

// Store persists ranked NewsItems as EventClusters, gated by the ingest
// cadence, and provides the read-side queries the event-study and
// forecasting engines need.
type Store struct {
	events   persistence.EventRepo
	impacts  persistence.EventImpactRepo
	tiers    SourceTiers
	interval time.Duration
	retention time.Duration

	mu         sync.Mutex
	lastIngest time.Time
}

// NewStore wires a Store to the event/impact repositories and the ingest
// cadence/retention settings.
func NewStore(events persistence.EventRepo, impacts persistence.EventImpactRepo, tiers SourceTiers, intervalMinutes, retentionDays int) *Store {
	return &Store{
		events:    events,
		impacts:   impacts,
		tiers:     tiers,
		interval:  time.Duration(intervalMinutes) * time.Minute,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// ClusterFromNewsItem builds the persisted EventCluster representation of a
// ranked, deduplicated NewsItem.
func ClusterFromNewsItem(it *domain.NewsItem) domain.EventCluster {
	ts := time.Now().UTC()
	if it.PublishedAtUTC != nil {
		ts = it.PublishedAtUTC.UTC()
	}
	clusterID := it.DedupClusterID
	if clusterID == "" {
		clusterID = DedupHash(it)
	}

	dir := DirectionFromText(it.Title)
	if it.PersonEvent != nil {
		switch it.PersonEvent.Stance {
		case domain.StanceHawkish, domain.StanceRiskEscalate:
			dir = -1
		case domain.StanceDovish, domain.StanceRiskDeescalate:
			dir = 1
		}
	}

	targets := RelevanceTargets(it)
	eventTargets := make([]domain.EventTarget, 0, len(targets))
	for _, t := range targets {
		eventTargets = append(eventTargets, domain.EventTarget{Name: t.Asset, Relevance: t.Score})
	}

	impact := it.ImpactPotential
	if it.PersonEvent != nil && it.PersonEvent.ImpactPotential > impact {
		impact = it.PersonEvent.ImpactPotential
	}
	if it.MaxSectorImpact > impact {
		impact = it.MaxSectorImpact
	}

	return domain.EventCluster{
		ClusterID:       clusterID,
		Headline:        it.Title,
		TsUTC:           ts,
		SourceTier:      domain.SourceTier(""), // set by caller once tier is classified
		Tags:            it.Tags,
		Credibility:     0, // set by caller
		Severity:        SeverityScore(it.EventType, it.Tags),
		Impact:          impact,
		Direction:       domain.Direction(dir),
		EventType:       it.EventType,
		Category:        it.Category,
		Scope:           it.NewsScope,
		ScopeScore:      it.ScopeScore,
		MaxSectorImpact: it.MaxSectorImpact,
		Targets:         eventTargets,
	}
}

// BuildEventRow converts a NewsItem + derived cluster into the persisted row
// shape, classifying source tier and filling credibility from the tier
// weight.
func (s *Store) BuildEventRow(it *domain.NewsItem) (persistence.EventRow, []persistence.EventAssetMap) {
	cluster := ClusterFromNewsItem(it)
	tier := s.tiers.SourceTier(it.SourceDomain)
	cluster.SourceTier = domain.SourceTier(tier)
	cluster.Credibility = TierScore(tier)

	tagsJSON, _ := json.Marshal(it.Tags)
	row := persistence.EventRow{
		EventID:     EventID(it),
		TsUTC:       cluster.TsUTC,
		Source:      it.SourceDomain,
		SourceTier:  tier,
		Headline:    cluster.Headline,
		Body:        it.ContentText,
		URL:         it.URL,
		TagsJSON:    tagsJSON,
		DedupHash:   DedupHash(it),
		ClusterID:   cluster.ClusterID,
		Credibility: cluster.Credibility,
		Severity:    cluster.Severity,
		Impact:      cluster.Impact,
		EventType:   cluster.EventType,
		Category:    cluster.Category,
		Direction:   int(cluster.Direction),
	}

	assets := make([]persistence.EventAssetMap, 0, len(cluster.Targets))
	for _, t := range cluster.Targets {
		assets = append(assets, persistence.EventAssetMap{
			EventID:        row.EventID,
			AssetOrSector:  t.Name,
			RelevanceScore: t.Relevance,
		})
	}
	return row, assets
}

// ShouldIngest reports whether enough time has elapsed since the last
// ingest run.
func (s *Store) ShouldIngest(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIngest.IsZero() || now.Sub(s.lastIngest) >= s.interval
}

// Ingest persists every item's event row, skipping duplicates by dedup hash,
// and records the ingest timestamp. Failures are swallowed into notes
// rather than aborting the batch.
func (s *Store) Ingest(ctx context.Context, items []*domain.NewsItem, now time.Time, notes *domain.FetchNotes) int {
	if !s.ShouldIngest(now) {
		return 0
	}
	written := 0
	for _, it := range items {
		dh := DedupHash(it)
		exists, err := s.events.ExistsByDedupHash(ctx, dh)
		if err != nil {
			notes.Add(fmt.Sprintf("event_store_error:%v", err))
			continue
		}
		if exists {
			continue
		}
		row, assets := s.BuildEventRow(it)
		if err := s.events.Upsert(ctx, row, assets); err != nil {
			notes.Add(fmt.Sprintf("event_store_error:%v", err))
			continue
		}
		written++
	}
	s.mu.Lock()
	s.lastIngest = now
	s.mu.Unlock()
	return written
}

// Purge removes rows older than the configured retention horizon. Runtime
// errors are non-fatal and are appended as notes.
func (s *Store) Purge(ctx context.Context, now time.Time, notes *domain.FetchNotes) (int64, error) {
	cutoff := now.Add(-s.retention)
	n, err := s.events.Purge(ctx, cutoff)
	if err != nil {
		if notes != nil {
			notes.Add(fmt.Sprintf("event_store_error:%v", err))
		}
		return 0, err
	}
	return n, nil
}

// RecentClusters returns EventClusters ingested within the given window,
// reconstructed from persisted rows for /events/latest.
func (s *Store) RecentClusters(ctx context.Context, tr persistence.TimeRange, limit int) ([]domain.EventCluster, error) {
	rows, err := s.events.ListRecent(ctx, tr, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EventCluster, 0, len(rows))
	for _, r := range rows {
		var tags []string
		_ = json.Unmarshal(r.TagsJSON, &tags)
		out = append(out, domain.EventCluster{
			ClusterID:   r.ClusterID,
			Headline:    r.Headline,
			TsUTC:       r.TsUTC,
			SourceTier:  domain.SourceTier(r.SourceTier),
			Tags:        tags,
			Credibility: r.Credibility,
			Severity:    r.Severity,
			Impact:      r.Impact,
			Direction:   domain.Direction(r.Direction),
			EventType:   r.EventType,
			Category:    r.Category,
		})
	}
	return out, nil
}
