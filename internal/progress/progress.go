package progress

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"ketohub/internal/logger"
)

// Summary is a snapshot of a crawl's page counters.
type Summary struct {
	Site      string
	Processed int
	Succeeded int
	Failures  map[string]int
	Elapsed   time.Duration
}

// Failed returns the total number of failed pages.
func (s Summary) Failed() int {
	n := 0
	for _, c := range s.Failures {
		n += c
	}
	return n
}

// ProgressReporter counts processed pages for one site
type ProgressReporter struct {
	logger      *logger.Logger
	operation   string
	processed   int
	succeeded   int
	failures    map[string]int
	startTime   time.Time
	lastUpdate  time.Time
	updateMutex sync.Mutex
	complete    bool
	elapsed     time.Duration
	logEvery    int
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(logger *logger.Logger, operation string) *ProgressReporter {
	return &ProgressReporter{
		logger:     logger,
		operation:  operation,
		failures:   make(map[string]int),
		startTime:  time.Now(),
		lastUpdate: time.Now(),
		logEvery:   10,
	}
}

func (p *ProgressReporter) incrementLocked() {
	p.processed++
	p.lastUpdate = time.Now()

	// The total is unknown while crawling, so log every few pages
	if p.processed%p.logEvery == 0 {
		p.logger.Progress(p.operation, p.processed, 0, map[string]interface{}{
			"succeeded": p.succeeded,
		})
	}
}

// RecordSuccess counts a page that produced a complete record
func (p *ProgressReporter) RecordSuccess() {
	p.updateMutex.Lock()
	defer p.updateMutex.Unlock()

	p.succeeded++
	p.incrementLocked()
}

// RecordFailure counts a page that failed with the given kind
func (p *ProgressReporter) RecordFailure(kind string) {
	p.updateMutex.Lock()
	defer p.updateMutex.Unlock()

	p.failures[kind]++
	p.incrementLocked()
}

// Summary returns a snapshot of the counters
func (p *ProgressReporter) Summary() Summary {
	p.updateMutex.Lock()
	defer p.updateMutex.Unlock()

	return p.summaryLocked()
}

func (p *ProgressReporter) summaryLocked() Summary {
	failures := make(map[string]int, len(p.failures))
	for k, v := range p.failures {
		failures[k] = v
	}
	elapsed := p.elapsed
	if !p.complete {
		elapsed = time.Since(p.startTime)
	}
	return Summary{
		Site:      p.operation,
		Processed: p.processed,
		Succeeded: p.succeeded,
		Failures:  failures,
		Elapsed:   elapsed,
	}
}

// Complete marks the crawl as finished and logs its summary
func (p *ProgressReporter) Complete() {
	p.updateMutex.Lock()
	defer p.updateMutex.Unlock()

	if p.complete {
		return
	}
	p.complete = true
	p.elapsed = time.Since(p.startTime)

	s := p.summaryLocked()
	fields := map[string]interface{}{
		"processed": s.Processed,
		"succeeded": s.Succeeded,
		"failed":    s.Failed(),
	}
	for kind, n := range s.Failures {
		fields["failed_"+kind] = n
	}
	p.logger.Info(fmt.Sprintf("Crawl completed: %s - %d/%d pages stored in %v",
		p.operation, s.Succeeded, s.Processed, p.elapsed.Round(time.Millisecond)), fields)
}

// IsComplete returns whether the progress is complete
func (p *ProgressReporter) IsComplete() bool {
	p.updateMutex.Lock()
	defer p.updateMutex.Unlock()

	return p.complete
}

// ProgressManager manages one progress reporter per site
type ProgressManager struct {
	reporters map[string]*ProgressReporter
	mutex     sync.Mutex
	logger    *logger.Logger
}

// NewProgressManager creates a new progress manager
func NewProgressManager(logger *logger.Logger) *ProgressManager {
	return &ProgressManager{
		reporters: make(map[string]*ProgressReporter),
		logger:    logger,
	}
}

// CreateReporter creates a new progress reporter
func (m *ProgressManager) CreateReporter(id string) *ProgressReporter {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	reporter := NewProgressReporter(m.logger, id)
	m.reporters[id] = reporter
	return reporter
}

// GetReporter returns a progress reporter by ID
func (m *ProgressManager) GetReporter(id string) (*ProgressReporter, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	reporter, exists := m.reporters[id]
	return reporter, exists
}

// Summaries returns one summary per reporter, ordered by site
func (m *ProgressManager) Summaries() []Summary {
	m.mutex.Lock()
	reporters := make([]*ProgressReporter, 0, len(m.reporters))
	for _, reporter := range m.reporters {
		reporters = append(reporters, reporter)
	}
	m.mutex.Unlock()

	summaries := make([]Summary, 0, len(reporters))
	for _, reporter := range reporters {
		summaries = append(summaries, reporter.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Site < summaries[j].Site })
	return summaries
}

// GetOverallProgress returns the counters summed across all reporters
func (m *ProgressManager) GetOverallProgress() Summary {
	total := Summary{Site: "all", Failures: make(map[string]int)}
	for _, s := range m.Summaries() {
		total.Processed += s.Processed
		total.Succeeded += s.Succeeded
		for k, v := range s.Failures {
			total.Failures[k] += v
		}
		if s.Elapsed > total.Elapsed {
			total.Elapsed = s.Elapsed
		}
	}
	return total
}

// CompleteAll completes all progress reporters
func (m *ProgressManager) CompleteAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, reporter := range m.reporters {
		reporter.Complete()
	}
}
