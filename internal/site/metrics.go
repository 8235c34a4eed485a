package site

import (
	"sync"
	"time"
)

// BuildMetrics accumulates results across builds. The dev server rebuilds on
// every content change and reports these through /health.
type BuildMetrics struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	ImagesWritten    int64
	ImagesUnchanged  int64
	LastPosts        int
	LastFeedItems    int
	LastBuild        time.Time
	AverageDuration  time.Duration
	TotalDuration    time.Duration
	mutex            sync.RWMutex
}

// NewBuildMetrics creates an empty tracker.
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild folds one build result into the totals.
func (bm *BuildMetrics) RecordBuild(result Result, err error) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds++
	bm.TotalDuration += result.Duration
	bm.LastBuild = result.Finished

	if err != nil {
		bm.FailedBuilds++
	} else {
		bm.SuccessfulBuilds++
		bm.ImagesWritten += int64(result.ImagesWritten)
		bm.ImagesUnchanged += int64(result.ImagesUnchanged)
		bm.LastPosts = result.Posts
		bm.LastFeedItems = result.FeedItems
	}

	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalBuilds)
}

// Snapshot returns a copy safe to read without the lock.
func (bm *BuildMetrics) Snapshot() MetricsSnapshot {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	return MetricsSnapshot{
		TotalBuilds:      bm.TotalBuilds,
		SuccessfulBuilds: bm.SuccessfulBuilds,
		FailedBuilds:     bm.FailedBuilds,
		ImagesWritten:    bm.ImagesWritten,
		ImagesUnchanged:  bm.ImagesUnchanged,
		LastPosts:        bm.LastPosts,
		LastFeedItems:    bm.LastFeedItems,
		LastBuild:        bm.LastBuild,
		AverageDuration:  bm.AverageDuration,
		TotalDuration:    bm.TotalDuration,
	}
}

// SuccessRate returns the share of successful builds as a percentage.
func (bm *BuildMetrics) SuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.TotalBuilds == 0 {
		return 0.0
	}
	return float64(bm.SuccessfulBuilds) / float64(bm.TotalBuilds) * 100.0
}

// Reset zeroes every counter.
func (bm *BuildMetrics) Reset() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds = 0
	bm.SuccessfulBuilds = 0
	bm.FailedBuilds = 0
	bm.ImagesWritten = 0
	bm.ImagesUnchanged = 0
	bm.LastPosts = 0
	bm.LastFeedItems = 0
	bm.LastBuild = time.Time{}
	bm.AverageDuration = 0
	bm.TotalDuration = 0
}

// MetricsSnapshot is a lock-free copy of BuildMetrics.
type MetricsSnapshot struct {
	TotalBuilds      int64         `json:"total_builds"`
	SuccessfulBuilds int64         `json:"successful_builds"`
	FailedBuilds     int64         `json:"failed_builds"`
	ImagesWritten    int64         `json:"images_written"`
	ImagesUnchanged  int64         `json:"images_unchanged"`
	LastPosts        int           `json:"last_posts"`
	LastFeedItems    int           `json:"last_feed_items"`
	LastBuild        time.Time     `json:"last_build"`
	AverageDuration  time.Duration `json:"average_duration_ns"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
}
