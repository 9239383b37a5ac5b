package redis

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StatsTTL bounds how long hourly counters live.
const StatsTTL = 30 * 24 * time.Hour

// HourlyStats is the usage for one hour bucket.
type HourlyStats struct {
	Hour     string                  `json:"hour"` // "2006-01-02T15"
	Total    int64                   `json:"total"`
	Families map[string]*FamilyStats `json:"families"`
}

// FamilyStats is the usage of one model family within an hour.
type FamilyStats struct {
	Subtotal int64            `json:"subtotal"`
	Models   map[string]int64 `json:"models"`
}

// StatsStore records request counters in Redis hashes, one hash per hour,
// fields "_total", "family:_subtotal" and "family:model".
type StatsStore struct {
	client *Client
}

// NewStatsStore creates a StatsStore.
func NewStatsStore(client *Client) *StatsStore {
	return &StatsStore{client: client}
}

func hourKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15")
}

// RecordRequest increments the counters for one served request.
func (s *StatsStore) RecordRequest(ctx context.Context, family, model string) error {
	key := PrefixStats + hourKey(time.Now())
	if _, err := s.client.HIncrBy(ctx, key, "_total", 1); err != nil {
		return err
	}
	if _, err := s.client.HIncrBy(ctx, key, family+":_subtotal", 1); err != nil {
		return err
	}
	if _, err := s.client.HIncrBy(ctx, key, family+":"+model, 1); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, StatsTTL)
}

// GetHourlyStats reads one hour bucket, nil when empty.
func (s *StatsStore) GetHourlyStats(ctx context.Context, hour string) (*HourlyStats, error) {
	data, err := s.client.HGetAll(ctx, PrefixStats+hour)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	stats := &HourlyStats{Hour: hour, Families: make(map[string]*FamilyStats)}
	for field, value := range data {
		count, _ := strconv.ParseInt(value, 10, 64)
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
			fs = &FamilyStats{Models: make(map[string]int64)}
			stats.Families[family] = fs
		}
		if model == "_subtotal" {
			fs.Subtotal = count
		} else {
			fs.Models[model] = count
		}
	}
	return stats, nil
}

// GetHistory reads the buckets of the last n days, newest first.
func (s *StatsStore) GetHistory(ctx context.Context, days int) ([]*HourlyStats, error) {
	if days <= 0 {
		days = 30
	}
	keys, err := s.client.ScanAll(ctx, PrefixStats+"*")
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var history []*HourlyStats
	for _, key := range keys {
		hour := strings.TrimPrefix(key, PrefixStats)
		t, err := time.Parse("2006-01-02T15", hour)
		if err != nil || t.Before(cutoff) {
			continue
		}
		stats, err := s.GetHourlyStats(ctx, hour)
		if err != nil {
			return nil, err
		}
		if stats != nil {
			history = append(history, stats)
		}
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Hour > history[j].Hour })
	return history, nil
}

// Prune deletes buckets older than the retention window and returns how
// many were removed.
func (s *StatsStore) Prune(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = 30
	}
	keys, err := s.client.ScanAll(ctx, PrefixStats+"*")
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	pruned := 0
	for _, key := range keys {
		hour := strings.TrimPrefix(key, PrefixStats)
		t, err := time.Parse("2006-01-02T15", hour)
		if err != nil || !t.Before(cutoff) {
			continue
		}
		if err := s.client.Del(ctx, key); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}
