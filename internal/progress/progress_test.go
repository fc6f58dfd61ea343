package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ketohub/internal/logger"
)

func TestProgressReporter_Counts(t *testing.T) {
	p := NewProgressReporter(logger.NewNop(), "ruled-me")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				p.RecordFailure("no_image")
				return
			}
			p.RecordSuccess()
		}(i)
	}
	wg.Wait()

	s := p.Summary()
	assert.Equal(t, "ruled-me", s.Site)
	assert.Equal(t, 20, s.Processed)
	assert.Equal(t, 15, s.Succeeded)
	assert.Equal(t, map[string]int{"no_image": 5}, s.Failures)
	assert.Equal(t, 5, s.Failed())
}

func TestProgressReporter_CompleteLogsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewProgressReporter(logger.NewWithCore(core), "ketoconnect")

	p.RecordSuccess()
	p.RecordFailure("download")
	p.Complete()
	p.Complete()

	assert.True(t, p.IsComplete())
	entries := logs.FilterMessageSnippet("Crawl completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 2, fields["processed"])
	assert.EqualValues(t, 1, fields["failed_download"])
}

func TestProgressManager_Overall(t *testing.T) {
	m := NewProgressManager(logger.NewNop())
	a := m.CreateReporter("ruled-me")
	b := m.CreateReporter("ketoconnect")

	a.RecordSuccess()
	a.RecordFailure("image_type")
	b.RecordFailure("image_type")
	b.RecordFailure("fetch")

	got, ok := m.GetReporter("ruled-me")
	require.True(t, ok)
	assert.Same(t, a, got)

	summaries := m.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "ketoconnect", summaries[0].Site)

	total := m.GetOverallProgress()
	assert.Equal(t, 4, total.Processed)
	assert.Equal(t, 1, total.Succeeded)
	assert.Equal(t, map[string]int{"image_type": 2, "fetch": 1}, total.Failures)

	m.CompleteAll()
	assert.True(t, a.IsComplete())
	assert.True(t, b.IsComplete())
}
