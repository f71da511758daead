package metrics

import (
	"context"
	"time"

	"skillgoblin/internal/logging"
)

// StatsProvider is implemented by the catalog store.
type StatsProvider interface {
	CourseCount(ctx context.Context) (int, error)
	UpdateDBMetrics()
}

// Collector periodically refreshes gauges that are not updated inline.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{
		provider: provider,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the collection loop and waits for it to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.doneChan
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.provider.UpdateDBMetrics()

	count, err := c.provider.CourseCount(ctx)
	if err != nil {
		logging.Warn("Metrics collection: failed to count courses: %v", err)
		return
	}
	CatalogCourses.Set(float64(count))

	logging.Debug("Metrics collected: courses=%d", count)
}
