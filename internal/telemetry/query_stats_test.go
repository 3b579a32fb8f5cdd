package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer_FIFOEviction(t *testing.T) {
	buf := NewCircularBuffer[string](3)

	buf.Add("q1")
	buf.Add("q2")
	buf.Add("q3")
	buf.Add("q4")
	buf.Add("q5")

	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []string{"q3", "q4", "q5"}, buf.Items())
}

func TestCircularBuffer_Empty(t *testing.T) {
	buf := NewCircularBuffer[int](4)

	assert.Equal(t, 0, buf.Size())
	assert.Equal(t, []int{}, buf.Items())
}

func TestCircularBuffer_PartialFill(t *testing.T) {
	buf := NewCircularBuffer[int](10)

	buf.Add(1)
	buf.Add(2)

	assert.Equal(t, []int{1, 2}, buf.Items())
}

func TestLatencyToBucket(t *testing.T) {
	assert.Equal(t, BucketP10, LatencyToBucket(5*time.Millisecond))
	assert.Equal(t, BucketP50, LatencyToBucket(25*time.Millisecond))
	assert.Equal(t, BucketP100, LatencyToBucket(75*time.Millisecond))
	assert.Equal(t, BucketP500, LatencyToBucket(250*time.Millisecond))
	assert.Equal(t, BucketP1000, LatencyToBucket(2*time.Second))
}

func TestExtractTerms(t *testing.T) {
	// Short words are dropped, casing normalized
	terms := ExtractTerms("How DO VPC peering connections work")
	assert.Equal(t, []string{"how", "vpc", "peering", "connections", "work"}, terms)

	assert.Nil(t, ExtractTerms(""))
	assert.Nil(t, ExtractTerms("a an"))
}

func TestQueryStats_Record(t *testing.T) {
	// Given a fresh collector
	stats := NewQueryStats()

	// When recording a mix of retrievals
	stats.Record(RetrievalEvent{
		Question:   "tell me about vpc",
		Method:     "hybrid",
		ChunkCount: 7,
		Latency:    20 * time.Millisecond,
		Timestamp:  time.Now(),
	})
	stats.Record(RetrievalEvent{
		Question:   "vpc peering setup",
		Method:     "hybrid",
		ChunkCount: 3,
		Latency:    8 * time.Millisecond,
		Timestamp:  time.Now(),
	})
	stats.Record(RetrievalEvent{
		Question:   "nothing matches this",
		Method:     "fallback",
		ChunkCount: 0,
		Latency:    600 * time.Millisecond,
		Timestamp:  time.Now(),
	})

	// Then the snapshot reflects all of it
	snap := stats.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(2), snap.MethodCounts["hybrid"])
	assert.Equal(t, int64(1), snap.MethodCounts["fallback"])
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, []string{"nothing matches this"}, snap.ZeroResultRecent)
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP50])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP1000])
	assert.InDelta(t, 33.33, snap.ZeroResultPercentage(), 0.01)
}

func TestQueryStats_TopTerms(t *testing.T) {
	stats := NewQueryStats()

	for i := 0; i < 3; i++ {
		stats.Record(RetrievalEvent{Question: "vpc routing", Method: "hybrid", ChunkCount: 1})
	}
	stats.Record(RetrievalEvent{Question: "vpc subnets", Method: "hybrid", ChunkCount: 1})

	snap := stats.Snapshot()
	require.NotEmpty(t, snap.TopTerms)
	assert.Equal(t, "vpc", snap.TopTerms[0].Term)
	assert.Equal(t, int64(4), snap.TopTerms[0].Count)
}

func TestQueryStats_ConcurrentRecord(t *testing.T) {
	stats := NewQueryStats()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.Record(RetrievalEvent{Question: "concurrent load", Method: "hybrid", ChunkCount: 1})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), stats.Snapshot().TotalQueries)
}

func TestSnapshot_ZeroResultPercentage_NoQueries(t *testing.T) {
	snap := NewQueryStats().Snapshot()
	assert.Equal(t, 0.0, snap.ZeroResultPercentage())
}
