package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/teachd/internal/memory"

// Service provides per-session memory storage and relevance-ranked
// retrieval.
//
// Different sessions are fully independent: each has its own bucket with
// its own lock, so retrieval side effects (usage increments) never race
// across sessions and operations within a session are serialized.
type Service struct {
	logger *zap.Logger
	clock  func() time.Time

	mu      sync.RWMutex
	buckets map[string]*bucket

	meter          metric.Meter
	storedCounter  metric.Int64Counter
	retrieveCount  metric.Int64Counter
	sweptCounter   metric.Int64Counter
}

// bucket holds one session's items in insertion order.
type bucket struct {
	mu    sync.Mutex
	items []*Item
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService creates a memory service.
func NewService(logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		logger:  logger,
		clock:   time.Now,
		buckets: make(map[string]*bucket),
		meter:   otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initMetrics()
	return s
}

func (s *Service) initMetrics() {
	var err error

	s.storedCounter, err = s.meter.Int64Counter(
		"teachd.memory.items_stored_total",
		metric.WithDescription("Total memory items stored"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		s.logger.Warn("failed to create stored counter", zap.Error(err))
	}

	s.retrieveCount, err = s.meter.Int64Counter(
		"teachd.memory.retrievals_total",
		metric.WithDescription("Total retrieval calls by kind (retrieve, search)"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		s.logger.Warn("failed to create retrieval counter", zap.Error(err))
	}

	s.sweptCounter, err = s.meter.Int64Counter(
		"teachd.memory.items_swept_total",
		metric.WithDescription("Total memory items removed by retention sweeps"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		s.logger.Warn("failed to create sweep counter", zap.Error(err))
	}
}

// bucketFor returns (creating if needed) the bucket for a session.
func (s *Service) bucketFor(sessionID string) *bucket {
	s.mu.RLock()
	b, ok := s.buckets[sessionID]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[sessionID]; ok {
		return b
	}
	b = &bucket{}
	s.buckets[sessionID] = b
	return b
}

// Store appends one item to a session's memory. Inserts never fail for
// capacity reasons; only invalid arguments are rejected.
func (s *Service) Store(ctx context.Context, sessionID, content string, itemType ItemType, meta Metadata) (*Item, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	if content == "" {
		return nil, ErrEmptyContent
	}

	item := &Item{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Content:   content,
		Type:      itemType,
		CreatedAt: s.clock(),
		Metadata:  meta,
	}

	b := s.bucketFor(sessionID)
	b.mu.Lock()
	b.items = append(b.items, item)
	b.mu.Unlock()

	if s.storedCounter != nil {
		s.storedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", string(itemType)),
		))
	}
	s.logger.Debug("stored memory item",
		zap.String("session_id", sessionID),
		zap.String("type", string(itemType)),
	)

	return copyItem(item), nil
}

// RetrieveRelevant returns up to limit items ranked by descending relevance
// to the query, ties broken by descending recency. Every returned item's
// usage count is incremented.
func (s *Service) RetrieveRelevant(ctx context.Context, sessionID, query string, limit int) []Item {
	if limit <= 0 {
		limit = 5
	}
	items := s.rank(sessionID, query, RetrieveFloor, byRecency)

	if s.retrieveCount != nil {
		s.retrieveCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", "retrieve"),
		))
	}

	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Search is RetrieveRelevant with a stricter relevance floor, intended for
// exact lookups. Ties are broken by usage count. The usage side effect
// applies here too.
func (s *Service) Search(ctx context.Context, sessionID, query string) []Item {
	items := s.rank(sessionID, query, SearchFloor, byUsage)

	if s.retrieveCount != nil {
		s.retrieveCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", "search"),
		))
	}
	return items
}

// tieBreak selects the ordering used for near-equal relevance scores.
type tieBreak int

const (
	byRecency tieBreak = iota
	byUsage
)

// rank scores all of a session's items, increments usage on those above
// the floor, and returns copies sorted by score.
func (s *Service) rank(sessionID, query string, floor float64, tb tieBreak) []Item {
	queryLower := strings.ToLower(query)
	queryTokens := strings.Fields(queryLower)
	now := s.clock()

	b := s.bucketFor(sessionID)
	b.mu.Lock()
	defer b.mu.Unlock()

	type scored struct {
		item  Item
		score float64
	}
	var matched []scored

	for _, item := range b.items {
		score := relevance(item, queryTokens, queryLower, now)
		if score <= floor {
			continue
		}
		item.UsageCount++
		matched = append(matched, scored{item: *item, score: score})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		si, sj := matched[i].score, matched[j].score
		if math.Abs(si-sj) < scoreEpsilon {
			if tb == byUsage {
				return matched[i].item.UsageCount > matched[j].item.UsageCount
			}
			return matched[i].item.CreatedAt.After(matched[j].item.CreatedAt)
		}
		return si > sj
	})

	out := make([]Item, len(matched))
	for i, m := range matched {
		out[i] = m.item
	}
	return out
}

// Recent returns up to limit items ordered most recent first. No usage
// side effect.
func (s *Service) Recent(ctx context.Context, sessionID string, limit int) []Item {
	if limit <= 0 {
		limit = 10
	}

	b := s.bucketFor(sessionID)
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Item, 0, len(b.items))
	for _, item := range b.items {
		out = append(out, *item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ByType returns all items of one type in insertion order.
func (s *Service) ByType(ctx context.Context, sessionID string, itemType ItemType) []Item {
	b := s.bucketFor(sessionID)
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Item
	for _, item := range b.items {
		if item.Type == itemType {
			out = append(out, *item)
		}
	}
	return out
}

// Stats summarizes a session's memory collection.
func (s *Service) Stats(ctx context.Context, sessionID string) Stats {
	b := s.bucketFor(sessionID)
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := Stats{TotalItems: len(b.items)}
	totalUsage := 0
	for _, item := range b.items {
		switch item.Type {
		case TypeFact:
			stats.FactCount++
		case TypePreference:
			stats.PreferenceCount++
		case TypeContext:
			stats.ContextCount++
		}
		totalUsage += item.UsageCount

		created := item.CreatedAt
		if stats.OldestItem == nil || created.Before(*stats.OldestItem) {
			t := created
			stats.OldestItem = &t
		}
		if stats.NewestItem == nil || created.After(*stats.NewestItem) {
			t := created
			stats.NewestItem = &t
		}
	}
	if stats.TotalItems > 0 {
		stats.AverageUsage = float64(totalUsage) / float64(stats.TotalItems)
	}
	return stats
}

// Sweep removes items whose age exceeds baseMaxAge extended by 10% per
// use: frequently retrieved items survive longer, with no upper bound on
// the extension. Returns the number of items removed.
func (s *Service) Sweep(ctx context.Context, sessionID string, baseMaxAge time.Duration) int {
	now := s.clock()

	b := s.bucketFor(sessionID)
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.items[:0]
	deleted := 0
	for _, item := range b.items {
		adjusted := time.Duration(float64(baseMaxAge) * (1 + float64(item.UsageCount)*0.1))
		if now.Sub(item.CreatedAt) > adjusted {
			deleted++
			continue
		}
		kept = append(kept, item)
	}
	b.items = kept

	if deleted > 0 {
		if s.sweptCounter != nil {
			s.sweptCounter.Add(ctx, int64(deleted))
		}
		s.logger.Info("swept memory items",
			zap.String("session_id", sessionID),
			zap.Int("deleted", deleted),
		)
	}
	return deleted
}

// SweepAll runs Sweep over every known session.
func (s *Service) SweepAll(ctx context.Context, baseMaxAge time.Duration) int {
	s.mu.RLock()
	sessionIDs := make([]string, 0, len(s.buckets))
	for id := range s.buckets {
		sessionIDs = append(sessionIDs, id)
	}
	s.mu.RUnlock()

	total := 0
	for _, id := range sessionIDs {
		total += s.Sweep(ctx, id, baseMaxAge)
	}
	return total
}

func copyItem(item *Item) *Item {
	cp := *item
	return &cp
}
