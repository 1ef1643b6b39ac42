package module

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

// ScheduleStore holds the backing schedules each module evaluates
type ScheduleStore interface {
	List(ctx context.Context, moduleID string) ([]model.Schedule, error)
	Put(ctx context.Context, moduleID string, s *model.Schedule) error
}

// RedisScheduleStore keeps one hash per module: field = schedule ID, value = JSON
type RedisScheduleStore struct {
	redis *redis.Client
}

func NewRedisScheduleStore(redisClient *redis.Client) *RedisScheduleStore {
	return &RedisScheduleStore{redis: redisClient}
}

func scheduleKey(moduleID string) string {
	return fmt.Sprintf("schedules:%s", moduleID)
}

func (s *RedisScheduleStore) List(ctx context.Context, moduleID string) ([]model.Schedule, error) {
	raw, err := s.redis.HGetAll(ctx, scheduleKey(moduleID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load schedules for %s: %w", moduleID, err)
	}

	out := make([]model.Schedule, 0, len(raw))
	for id, data := range raw {
		var sch model.Schedule
		if err := json.Unmarshal([]byte(data), &sch); err != nil {
			return nil, fmt.Errorf("corrupt schedule %s/%s: %w", moduleID, id, err)
		}
		out = append(out, sch)
	}
	sortSchedules(out)
	return out, nil
}

func (s *RedisScheduleStore) Put(ctx context.Context, moduleID string, sch *model.Schedule) error {
	sch.UpdatedAt = time.Now()
	data, err := json.Marshal(sch)
	if err != nil {
		return err
	}
	return s.redis.HSet(ctx, scheduleKey(moduleID), sch.ID, data).Err()
}

// MemoryScheduleStore is used in tests and when storage.driver is memory
type MemoryScheduleStore struct {
	mu   sync.RWMutex
	data map[string]map[string]model.Schedule
	// Err, when set, is returned by List
	Err error
}

func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{data: make(map[string]map[string]model.Schedule)}
}

func (s *MemoryScheduleStore) List(_ context.Context, moduleID string) ([]model.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]model.Schedule, 0, len(s.data[moduleID]))
	for _, sch := range s.data[moduleID] {
		out = append(out, sch)
	}
	sortSchedules(out)
	return out, nil
}

func (s *MemoryScheduleStore) Put(_ context.Context, moduleID string, sch *model.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data[moduleID] == nil {
		s.data[moduleID] = make(map[string]model.Schedule)
	}
	sch.UpdatedAt = time.Now()
	s.data[moduleID][sch.ID] = *sch
	return nil
}

// sortSchedules gives due-item queries a stable order
func sortSchedules(list []model.Schedule) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}
