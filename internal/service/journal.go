// journal.go — журнал отката пакетного выполнения (multicall).
// Перед первой записью в узел сохраняются снимки записи и слота кэша,
// вытесненные по ёмкости слоты копятся отдельно. При ошибке журнал
// восстанавливает состояние до начала пакета.
package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
	"github.com/bigkaa/goartstore/resolver-module/internal/repository"
)

// TransactionStatus — статус пакета.
type TransactionStatus string

const (
	// StatusPending — пакет выполняется
	StatusPending TransactionStatus = "pending"
	// StatusCommitted — все операции успешны
	StatusCommitted TransactionStatus = "committed"
	// StatusRolledBack — пакет откатан
	StatusRolledBack TransactionStatus = "rolled_back"
)

type recordUndo struct {
	record  model.Record
	existed bool
}

type slotUndo struct {
	entry   model.CacheEntry
	existed bool
}

type evictedSlot struct {
	node  model.Node
	entry model.CacheEntry
}

// journal — журнал одного пакета. Не синхронизирован: живёт
// внутри критической секции ResolverService.
type journal struct {
	TransactionID string
	Status        TransactionStatus
	StartedAt     time.Time
	CompletedAt   time.Time

	records map[model.Node]recordUndo
	slots   map[model.Node]slotUndo
	order   []model.Node
	evicted []evictedSlot

	totalRecords     uint64
	totalTextRecords uint64
	hits             uint64
	misses           uint64
}

func newJournal(now time.Time, totalRecords, totalTextRecords, hits, misses uint64) *journal {
	return &journal{
		TransactionID:    uuid.New().String(),
		Status:           StatusPending,
		StartedAt:        now.UTC(),
		records:          make(map[model.Node]recordUndo),
		slots:            make(map[model.Node]slotUndo),
		totalRecords:     totalRecords,
		totalTextRecords: totalTextRecords,
		hits:             hits,
		misses:           misses,
	}
}

// touch сохраняет состояние узла до первой записи в пакете.
func (j *journal) touch(node model.Node, repo repository.RecordRepository, cache *CacheService) {
	if _, seen := j.records[node]; seen {
		return
	}
	rec, existed := repo.Snapshot(node)
	j.records[node] = recordUndo{record: rec, existed: existed}
	entry, hadSlot := cache.Entry(node)
	if !hadSlot {
		// Слот мог быть вытеснен раньше в этом же пакете: первое
		// вытеснение хранит состояние до начала пакета.
		for _, ev := range j.evicted {
			if ev.node == node {
				entry, hadSlot = ev.entry, true
				break
			}
		}
	}
	j.slots[node] = slotUndo{entry: entry, existed: hadSlot}
	j.order = append(j.order, node)
}

// noteEviction запоминает слот, вытесненный по ёмкости.
func (j *journal) noteEviction(node model.Node, entry model.CacheEntry) {
	j.evicted = append(j.evicted, evictedSlot{node: node, entry: entry})
}

// rollback восстанавливает записи и кэш. Возвращает сохранённые счётчики записей.
//
// Порядок: сначала удаляются слоты затронутых узлов, затем возвращаются
// их прежние слоты, затем — вытесненные слоты незатронутых узлов.
// Так итоговое число слотов не превышает исходного и новых вытеснений нет.
func (j *journal) rollback(repo repository.RecordRepository, cache *CacheService, now time.Time) (totalRecords, totalTextRecords uint64) {
	for i := len(j.order) - 1; i >= 0; i-- {
		node := j.order[i]
		undo := j.records[node]
		repo.Restore(node, undo.record, undo.existed)
		cache.Restore(node, model.CacheEntry{}, false)
	}
	for _, node := range j.order {
		if undo := j.slots[node]; undo.existed {
			cache.Restore(node, undo.entry, true)
		}
	}
	restored := make(map[model.Node]bool, len(j.evicted))
	for _, ev := range j.evicted {
		if _, touched := j.slots[ev.node]; touched || restored[ev.node] {
			continue
		}
		cache.Restore(ev.node, ev.entry, true)
		restored[ev.node] = true
	}
	cache.SetCounters(j.hits, j.misses)

	j.Status = StatusRolledBack
	j.CompletedAt = now.UTC()
	return j.totalRecords, j.totalTextRecords
}

func (j *journal) commit(now time.Time) {
	j.Status = StatusCommitted
	j.CompletedAt = now.UTC()
}
