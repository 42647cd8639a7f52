// record.go — запись узла реестра и её снимки.
package model

import (
	"maps"
	"time"
)

// Ограничения полей записи.
const (
	// MaxNameLength — максимальная длина отображаемого имени в байтах.
	MaxNameLength = 255
	// MaxTextValueLength — максимальная длина значения текстовой записи в байтах.
	MaxTextValueLength = 1000
)

// Field — тип поля записи. Используется как тег слота кэша и имя операции в метриках.
type Field string

const (
	FieldAddress      Field = "addr"
	FieldName         Field = "name"
	FieldContentHash  Field = "contenthash"
	FieldPublicKey    Field = "pubkey"
	FieldText         Field = "text"
	FieldDAOSync      Field = "dao_sync"
	FieldContractSync Field = "contract_sync"
)

// PublicKey — пара 32-байтных координат.
type PublicKey struct {
	X Word `json:"x"`
	Y Word `json:"y"`
}

// Record — запись узла. Создаётся лениво при первой записи любого поля,
// IsActive переходит false → true ровно один раз и больше не сбрасывается.
type Record struct {
	Address     Address
	Name        string
	ContentHash []byte
	PublicKey   PublicKey
	// Texts — текстовые записи key → value; ключи уникальны в пределах узла
	Texts       map[string]string
	LastUpdated time.Time
	IsActive    bool
}

// Clone возвращает глубокую копию записи.
func (r *Record) Clone() Record {
	c := *r
	if r.ContentHash != nil {
		c.ContentHash = append([]byte(nil), r.ContentHash...)
	}
	if r.Texts != nil {
		c.Texts = maps.Clone(r.Texts)
	}
	return c
}

// RecordInfo — снимок скалярных полей записи (без текстовых записей,
// они запрашиваются отдельно — их количество не ограничено).
type RecordInfo struct {
	Node        Node      `json:"node"`
	Address     Address   `json:"addr"`
	Name        string    `json:"name"`
	ContentHash HexBytes  `json:"contenthash"`
	PublicKey   PublicKey `json:"pubkey"`
	TextCount   int       `json:"text_count"`
	LastUpdated time.Time `json:"last_updated"`
	IsActive    bool      `json:"is_active"`
}

// Info строит RecordInfo для узла. Для неактивной записи возвращаются нулевые значения.
func (r *Record) Info(node Node) RecordInfo {
	info := RecordInfo{Node: node, ContentHash: HexBytes{}}
	if r == nil || !r.IsActive {
		return info
	}
	info.Address = r.Address
	info.Name = r.Name
	info.ContentHash = append(HexBytes{}, r.ContentHash...)
	info.PublicKey = r.PublicKey
	info.TextCount = len(r.Texts)
	info.LastUpdated = r.LastUpdated
	info.IsActive = true
	return info
}
