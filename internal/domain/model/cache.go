// cache.go — слот кэша узла и статистика.
package model

import "time"

// CacheEntry — единственный слот кэша узла.
// Data — digest последнего записанного поля (не всей записи), Field — какое поле он отражает.
type CacheEntry struct {
	Field     Field
	Data      Word
	Timestamp time.Time
	TTL       time.Duration
}

// ExpiresAt возвращает момент, после которого слот недействителен.
func (e CacheEntry) ExpiresAt() time.Time {
	return e.Timestamp.Add(e.TTL)
}

// ValidAt проверяет правило валидности: now <= timestamp + ttl.
// Граница включительная.
func (e CacheEntry) ValidAt(now time.Time) bool {
	if e.Timestamp.IsZero() {
		return false
	}
	return !now.After(e.ExpiresAt())
}

// CacheInfo — сырое состояние слота и вычисленный флаг валидности.
type CacheInfo struct {
	Node    Node
	Entry   CacheEntry
	Exists  bool
	IsValid bool
}

// Statistics — счётчики резолвера.
type Statistics struct {
	TotalRecords     uint64 `json:"total_records"`
	TotalTextRecords uint64 `json:"total_text_records"`
	CacheHits        uint64 `json:"cache_hits"`
	CacheMisses      uint64 `json:"cache_misses"`
	// CacheHitRate — процент попаданий (целочисленный), 0 при отсутствии обращений
	CacheHitRate uint64 `json:"cache_hit_rate"`
}

// HitRate вычисляет hits * 100 / (hits + misses) без деления на ноль.
func HitRate(hits, misses uint64) uint64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return hits * 100 / total
}
