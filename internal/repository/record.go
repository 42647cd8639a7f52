package repository

import (
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
)

// recordRepo — реализация RecordRepository поверх map.
type recordRepo struct {
	records map[model.Node]*model.Record
}

// NewRecordRepository создаёт пустое хранилище записей.
func NewRecordRepository() RecordRepository {
	return &recordRepo{records: make(map[model.Node]*model.Record)}
}

// View вызывает fn для существующей записи.
func (r *recordRepo) View(node model.Node, fn func(rec *model.Record)) bool {
	rec, ok := r.records[node]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// Update применяет fn к записи, лениво создавая её.
func (r *recordRepo) Update(node model.Node, fn func(rec *model.Record)) {
	rec, ok := r.records[node]
	if !ok {
		rec = &model.Record{Texts: make(map[string]string)}
		r.records[node] = rec
	}
	fn(rec)
}

// Snapshot возвращает глубокую копию записи.
func (r *recordRepo) Snapshot(node model.Node) (model.Record, bool) {
	rec, ok := r.records[node]
	if !ok {
		return model.Record{}, false
	}
	return rec.Clone(), true
}

// Restore возвращает запись в состояние снимка.
func (r *recordRepo) Restore(node model.Node, rec model.Record, existed bool) {
	if !existed {
		delete(r.records, node)
		return
	}
	restored := rec.Clone()
	if restored.Texts == nil {
		restored.Texts = make(map[string]string)
	}
	r.records[node] = &restored
}

// Len возвращает количество записей.
func (r *recordRepo) Len() int {
	return len(r.records)
}
