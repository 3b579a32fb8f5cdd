package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{
		Path:      "/drop/notes.txt",
		Operation: OpCreate,
		Timestamp: time.Now(),
	})

	// Then: the event passes through after the window
	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, "/drop/notes.txt", batch[0].Path)
		assert.Equal(t, OpCreate, batch[0].Operation)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_RepeatedWrites_Coalesce(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(100 * time.Millisecond)
	defer d.Stop()

	// When: the same file is written several times rapidly
	for i := 0; i < 5; i++ {
		d.Add(FileEvent{
			Path:      "/drop/manual.pdf",
			Operation: OpModify,
			Timestamp: time.Now(),
		})
		time.Sleep(10 * time.Millisecond)
	}

	// Then: only one event comes out
	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, OpModify, batch[0].Operation)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced events")
	}
}

func TestDebouncer_CreateThenModify_StaysCreate(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: CREATE followed by MODIFY (a copy landing in chunks)
	d.Add(FileEvent{Path: "/drop/new.md", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "/drop/new.md", Operation: OpModify, Timestamp: time.Now()})

	// Then: the file is still reported as new
	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, OpCreate, batch[0].Operation)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_CreateThenDelete_NoEvent(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: CREATE followed by DELETE for the same file
	d.Add(FileEvent{Path: "/drop/temp.txt", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "/drop/temp.txt", Operation: OpDelete, Timestamp: time.Now()})

	// Then: no event is emitted (file never really existed)
	select {
	case batch := <-d.Output():
		assert.Empty(t, batch)
	case <-time.After(200 * time.Millisecond):
		// No event is the expected outcome
	}
}

func TestDebouncer_ModifyThenDelete_DeleteWins(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: MODIFY followed by DELETE
	d.Add(FileEvent{Path: "/drop/gone.txt", Operation: OpModify, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "/drop/gone.txt", Operation: OpDelete, Timestamp: time.Now()})

	// Then: only DELETE is emitted
	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, OpDelete, batch[0].Operation)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_DeleteThenCreate_BecomesModify(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: DELETE followed by CREATE (file replaced in place)
	d.Add(FileEvent{Path: "/drop/swap.txt", Operation: OpDelete, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "/drop/swap.txt", Operation: OpCreate, Timestamp: time.Now()})

	// Then: the sequence collapses to MODIFY
	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, OpModify, batch[0].Operation)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_DistinctPaths_BothEmitted(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: two different files change
	d.Add(FileEvent{Path: "/drop/a.txt", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "/drop/b.txt", Operation: OpCreate, Timestamp: time.Now()})

	// Then: both appear in the batch
	select {
	case batch := <-d.Output():
		require.Len(t, batch, 2)
		paths := []string{batch[0].Path, batch[1].Path}
		assert.ElementsMatch(t, []string{"/drop/a.txt", "/drop/b.txt"}, paths)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced events")
	}
}

func TestDebouncer_Stop_IsIdempotent(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	d.Stop()
	d.Stop()

	// Adding after stop is a no-op
	d.Add(FileEvent{Path: "/drop/late.txt", Operation: OpCreate, Timestamp: time.Now()})

	_, open := <-d.Output()
	assert.False(t, open)
}
