// Пакет repository — хранилище записей резолвера (node → record).
// Хранилище in-memory и не синхронизировано: все вызовы выполняются
// под единой критической секцией ResolverService.
package repository

import (
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
)

// RecordRepository — интерфейс доступа к записям узлов.
type RecordRepository interface {
	// View вызывает fn для существующей записи. Возвращает false, если записи нет.
	// fn не должен сохранять указатель после возврата.
	View(node model.Node, fn func(rec *model.Record)) bool
	// Update вызывает fn для записи узла, создавая пустую (неактивную) при отсутствии.
	Update(node model.Node, fn func(rec *model.Record))
	// Snapshot возвращает глубокую копию записи и признак её существования.
	Snapshot(node model.Node) (model.Record, bool)
	// Restore возвращает запись в состояние снимка; existed=false удаляет запись.
	// Используется только откатом пакетного выполнения.
	Restore(node model.Node, rec model.Record, existed bool)
	// Len возвращает количество хранимых записей (включая неактивные).
	Len() int
}
