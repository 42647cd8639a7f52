// cache.go — слой кэша резолвера.
// Один слот на node: последняя мутация любого поля перезаписывает слот,
// поле-источник фиксируется в CacheEntry.Field. Попадание для адреса
// засчитывается только для слота с полем addr.
// Ёмкость ограничена hashicorp/golang-lru/v2, вытеснение — LRU.
package service

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
)

// EvictFunc вызывается при вытеснении слота по ёмкости.
type EvictFunc func(node model.Node, entry model.CacheEntry)

// CacheService — кэш digest-значений с TTL на слот.
// Сам по себе потокобезопасен (lru и счётчики), но согласованность
// с записями обеспечивает критическая секция ResolverService.
type CacheService struct {
	slots *lru.Cache[model.Node, model.CacheEntry]

	hits   atomic.Uint64
	misses atomic.Uint64

	mu         sync.RWMutex
	defaultTTL time.Duration
	maxTTL     time.Duration
	onEvict    EvictFunc
	muted      bool

	now func() time.Time
}

// NewCacheService создаёт кэш на maxEntries слотов.
// now — источник времени (nil — time.Now).
func NewCacheService(maxEntries int, defaultTTL, maxTTL time.Duration, now func() time.Time) (*CacheService, error) {
	if err := validateTTLs(defaultTTL, maxTTL); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}

	c := &CacheService{
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
		now:        now,
	}
	slots, err := lru.NewWithEvict[model.Node, model.CacheEntry](maxEntries, c.evicted)
	if err != nil {
		return nil, fmt.Errorf("создание LRU-кэша: %w", err)
	}
	c.slots = slots
	return c, nil
}

// evicted — callback golang-lru. Вызывается и при Remove/Purge,
// поэтому явные удаления выполняются с muted=true.
func (c *CacheService) evicted(node model.Node, entry model.CacheEntry) {
	c.mu.RLock()
	hook, muted := c.onEvict, c.muted
	c.mu.RUnlock()
	if muted {
		return
	}
	cacheEvictionsTotal.Inc()
	if hook != nil {
		hook(node, entry)
	}
}

// SetEvictHook устанавливает обработчик вытеснения (nil — снять).
func (c *CacheService) SetEvictHook(fn EvictFunc) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

func (c *CacheService) mute(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
}

// Refresh перезаписывает слот узла: поле, digest, текущее время и TTL.
func (c *CacheService) Refresh(node model.Node, field model.Field, data model.Word, ttl time.Duration) error {
	c.mu.RLock()
	maxTTL := c.maxTTL
	c.mu.RUnlock()

	// ttl = 0 допустим: слот валиден только в момент записи.
	if ttl < 0 {
		return fmt.Errorf("%w: ttl=%s", ErrInvalidTTLConfig, ttl)
	}
	if ttl > maxTTL {
		return fmt.Errorf("%w: ttl=%s, максимум=%s", ErrTTLExceedsMaximum, ttl, maxTTL)
	}

	c.slots.Add(node, model.CacheEntry{
		Field:     field,
		Data:      data,
		Timestamp: c.now().UTC(),
		TTL:       ttl,
	})
	return nil
}

// RefreshDefault перезаписывает слот с TTL по умолчанию.
func (c *CacheService) RefreshDefault(node model.Node, field model.Field, data model.Word) error {
	return c.Refresh(node, field, data, c.DefaultTTL())
}

// Restamp продлевает существующий слот: новое время и TTL, данные прежние.
// Возвращает false, если слота нет.
func (c *CacheService) Restamp(node model.Node, ttl time.Duration) (bool, error) {
	entry, ok := c.slots.Peek(node)
	if !ok {
		return false, nil
	}
	if err := c.Refresh(node, entry.Field, entry.Data, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// IsValid сообщает, жив ли слот узла. Счётчики не меняются.
func (c *CacheService) IsValid(node model.Node) bool {
	entry, ok := c.slots.Peek(node)
	return ok && entry.ValidAt(c.now())
}

// Read возвращает digest живого слота с полем field.
// Засчитывает попадание или промах.
func (c *CacheService) Read(node model.Node, field model.Field) (model.Word, bool) {
	entry, ok := c.slots.Get(node)
	if ok && entry.Field == field && entry.ValidAt(c.now()) {
		c.hits.Add(1)
		cacheHitsTotal.Inc()
		return entry.Data, true
	}
	c.misses.Add(1)
	cacheMissesTotal.Inc()
	return model.Word{}, false
}

// Info возвращает слот узла с признаками наличия и свежести.
func (c *CacheService) Info(node model.Node) model.CacheInfo {
	entry, ok := c.slots.Peek(node)
	if !ok {
		return model.CacheInfo{Node: node}
	}
	return model.CacheInfo{
		Node:    node,
		Entry:   entry,
		Exists:  true,
		IsValid: entry.ValidAt(c.now()),
	}
}

// Entry возвращает слот без учёта свежести (для журнала отката).
func (c *CacheService) Entry(node model.Node) (model.CacheEntry, bool) {
	return c.slots.Peek(node)
}

// Restore возвращает слот в прежнее состояние без вызова обработчика вытеснения.
func (c *CacheService) Restore(node model.Node, entry model.CacheEntry, existed bool) {
	c.mute(true)
	defer c.mute(false)
	if existed {
		c.slots.Add(node, entry)
		return
	}
	c.slots.Remove(node)
}

// Clear удаляет слот узла. Возвращает false, если слота не было.
func (c *CacheService) Clear(node model.Node) bool {
	c.mute(true)
	defer c.mute(false)
	return c.slots.Remove(node)
}

// ClearAll удаляет все слоты и обнуляет счётчики.
func (c *CacheService) ClearAll() {
	c.mute(true)
	defer c.mute(false)
	c.slots.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Counters возвращает счётчики попаданий и промахов.
func (c *CacheService) Counters() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// SetCounters восстанавливает счётчики (откат пакета).
func (c *CacheService) SetCounters(hits, misses uint64) {
	c.hits.Store(hits)
	c.misses.Store(misses)
}

// Len возвращает количество слотов.
func (c *CacheService) Len() int {
	return c.slots.Len()
}

// DefaultTTL возвращает TTL по умолчанию.
func (c *CacheService) DefaultTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultTTL
}

// TTLConfig возвращает TTL по умолчанию и потолок.
func (c *CacheService) TTLConfig() (defaultTTL, maxTTL time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultTTL, c.maxTTL
}

// SetTTLConfig меняет TTL по умолчанию и потолок.
// Существующие слоты сохраняют свой TTL.
func (c *CacheService) SetTTLConfig(defaultTTL, maxTTL time.Duration) error {
	if err := validateTTLs(defaultTTL, maxTTL); err != nil {
		return err
	}
	c.mu.Lock()
	c.defaultTTL, c.maxTTL = defaultTTL, maxTTL
	c.mu.Unlock()
	return nil
}

func validateTTLs(defaultTTL, maxTTL time.Duration) error {
	if defaultTTL <= 0 || maxTTL <= 0 || defaultTTL > maxTTL {
		return fmt.Errorf("%w: default=%s, max=%s", ErrInvalidTTLConfig, defaultTTL, maxTTL)
	}
	return nil
}
