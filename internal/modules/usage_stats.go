// Package modules hosts optional feature modules of the proxy server.
package modules

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/internal/utils"
	"github.com/poemonsense/antigravity-openai-proxy/pkg/redis"
)

// UsageStats counts served requests per model family and hour. With Redis
// configured the counters persist through the StatsStore; without it they
// live in process memory and reset on restart.
type UsageStats struct {
	store *redis.StatsStore

	mu     sync.Mutex
	memory map[string]map[string]int64 // hour -> field -> count

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewUsageStats creates the module. redisClient may be nil.
func NewUsageStats(redisClient *redis.Client) *UsageStats {
	u := &UsageStats{
		memory:   make(map[string]map[string]int64),
		stopChan: make(chan struct{}),
	}
	if redisClient != nil {
		u.store = redis.NewStatsStore(redisClient)
	}
	return u
}

// Start launches the hourly prune loop.
func (u *UsageStats) Start() {
	go u.pruneLoop()
	if u.store != nil {
		utils.Info("usage stats: redis-backed")
	} else {
		utils.Info("usage stats: in-memory (no redis configured)")
	}
}

// Stop terminates the prune loop.
func (u *UsageStats) Stop() {
	u.stopOnce.Do(func() { close(u.stopChan) })
}

func (u *UsageStats) pruneLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-u.stopChan:
			return
		case <-ticker.C:
			u.prune()
		}
	}
}

func (u *UsageStats) prune() {
	if u.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if n, err := u.store.Prune(ctx, 30); err != nil {
			utils.Warn("pruning usage stats: %v", err)
		} else if n > 0 {
			utils.Debug("pruned %d usage stat buckets", n)
		}
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02T15")
	u.mu.Lock()
	defer u.mu.Unlock()
	for hour := range u.memory {
		if hour < cutoff {
			delete(u.memory, hour)
		}
	}
}

// RecordRequest counts one served request for the model.
func (u *UsageStats) RecordRequest(ctx context.Context, model string) {
	family := config.GetModelFamily(model)
	if u.store != nil {
		if err := u.store.RecordRequest(ctx, family, model); err != nil {
			utils.Warn("recording usage: %v", err)
		}
		return
	}
	hour := time.Now().UTC().Format("2006-01-02T15")
	u.mu.Lock()
	defer u.mu.Unlock()
	bucket := u.memory[hour]
	if bucket == nil {
		bucket = make(map[string]int64)
		u.memory[hour] = bucket
	}
	bucket["_total"]++
	bucket[family+":_subtotal"]++
	bucket[family+":"+model]++
}

// History returns the hourly buckets of the last n days, newest first.
func (u *UsageStats) History(ctx context.Context, days int) ([]*redis.HourlyStats, error) {
	if u.store != nil {
		return u.store.GetHistory(ctx, days)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	var history []*redis.HourlyStats
	for hour, bucket := range u.memory {
		stats := &redis.HourlyStats{Hour: hour, Families: make(map[string]*redis.FamilyStats)}
		for field, count := range bucket {
			if field == "_total" {
				stats.Total = count
				continue
			}
			family, model, ok := strings.Cut(field, ":")
			if !ok {
				continue
			}
			fs := stats.Families[family]
			if fs == nil {
				fs = &redis.FamilyStats{Models: make(map[string]int64)}
				stats.Families[family] = fs
			}
			if model == "_subtotal" {
				fs.Subtotal = count
			} else {
				fs.Models[model] = count
			}
		}
		history = append(history, stats)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Hour > history[j].Hour })
	return history, nil
}
