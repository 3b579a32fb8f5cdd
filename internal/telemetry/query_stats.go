package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket labels a histogram bucket for /stats.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// RetrievalEvent is one completed retrieval, recorded by the query node.
type RetrievalEvent struct {
	Question   string
	Method     string
	ChunkCount int
	Latency    time.Duration
	Timestamp  time.Time
}

// IsZeroResult reports whether the retrieval produced nothing.
func (e RetrievalEvent) IsZeroResult() bool {
	return e.ChunkCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffer contents oldest-first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}
	out := make([]T, b.size)
	if b.size < b.capacity {
		copy(out, b.items[:b.size])
	} else {
		copy(out, b.items[b.head:])
		copy(out[b.capacity-b.head:], b.items[:b.head])
	}
	return out
}

// Size returns the current item count.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// ExtractTerms lowercases a question and keeps words of length >= 3.
func ExtractTerms(question string) []string {
	question = strings.ToLower(strings.TrimSpace(question))
	if question == "" {
		return nil
	}
	var terms []string
	for _, w := range strings.Fields(question) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount pairs a query term with its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable view of the collected stats.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ZeroResultRecent    []string                `json:"zero_result_recent"`
	MethodCounts        map[string]int64        `json:"method_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns zero-result queries as a percentage.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

const (
	defaultTopTermsCapacity    = 100
	defaultZeroResultsCapacity = 100
)

// QueryStats collects retrieval telemetry in memory. Thread-safe.
type QueryStats struct {
	mu sync.RWMutex

	methodCounts    map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	startTime       time.Time
}

// NewQueryStats creates an empty collector.
func NewQueryStats() *QueryStats {
	topTerms, _ := lru.New[string, int64](defaultTopTermsCapacity)
	return &QueryStats{
		methodCounts: make(map[string]int64),
		topTerms:     topTerms,
		zeroResults:  NewCircularBuffer[string](defaultZeroResultsCapacity),
		latencies:    make(map[LatencyBucket]int64),
		startTime:    time.Now(),
	}
}

// Record captures one retrieval.
func (s *QueryStats) Record(event RetrievalEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalQueries++
	s.methodCounts[event.Method]++

	for _, term := range ExtractTerms(event.Question) {
		count, _ := s.topTerms.Get(term)
		s.topTerms.Add(term, count+1)
	}

	if event.IsZeroResult() {
		s.zeroResults.Add(event.Question)
		s.zeroResultCount++
	}

	s.latencies[LatencyToBucket(event.Latency)]++
}

// Snapshot copies the current state.
func (s *QueryStats) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	methods := make(map[string]int64, len(s.methodCounts))
	for k, v := range s.methodCounts {
		methods[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(s.latencies))
	for k, v := range s.latencies {
		latencies[k] = v
	}

	terms := make([]TermCount, 0, s.topTerms.Len())
	for _, key := range s.topTerms.Keys() {
		if count, ok := s.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: count})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > 20 {
		terms = terms[:20]
	}

	return &Snapshot{
		TotalQueries:        s.totalQueries,
		ZeroResultCount:     s.zeroResultCount,
		ZeroResultRecent:    s.zeroResults.Items(),
		MethodCounts:        methods,
		TopTerms:            terms,
		LatencyDistribution: latencies,
		Since:               s.startTime,
	}
}
