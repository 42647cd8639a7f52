// resolver.go — ResolverService: состояние резолвера и все операции над ним.
// Записи, кэш, список авторизации и счётчики меняются под единой
// критической секцией (sync.RWMutex): мутации и multicall берут
// эксклюзивную блокировку, чтения — разделяемую, поэтому частичные
// записи читателям не видны.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/mode"
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/namehash"
	"github.com/bigkaa/goartstore/resolver-module/internal/repository"
)

// DefaultMaxMulticallOperations — лимит операций в пакете по умолчанию.
const DefaultMaxMulticallOperations = 256

// Collaborators — адреса внешних сервисов (реестр DAO и сервис метаданных).
// Резолвер их только хранит; синхронизацию инициируют сами сервисы.
type Collaborators struct {
	Registry        model.Address `json:"registry"`
	MetadataService model.Address `json:"metadata_service"`
}

// ResolverConfig — параметры ResolverService.
type ResolverConfig struct {
	// Collaborators — начальные адреса внешних сервисов
	Collaborators Collaborators
	// MaxMulticallOperations — лимит операций в пакете (0 — по умолчанию)
	MaxMulticallOperations int
	// Now — источник времени (nil — time.Now)
	Now func() time.Time
}

// ResolverService — авторитетное хранилище записей с кэшем и авторизацией.
type ResolverService struct {
	mu sync.RWMutex

	repo  repository.RecordRepository
	cache *CacheService
	authz *AuthorizationManager
	modes *mode.StateMachine

	collaborators    Collaborators
	totalRecords     uint64
	totalTextRecords uint64

	// journal — журнал текущего пакета; nil вне multicall
	journal *journal

	maxBatch int
	now      func() time.Time
	logger   *slog.Logger
}

// NewResolverService создаёт резолвер в режиме active.
func NewResolverService(
	repo repository.RecordRepository,
	cache *CacheService,
	authz *AuthorizationManager,
	cfg ResolverConfig,
	logger *slog.Logger,
) (*ResolverService, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	maxBatch := cfg.MaxMulticallOperations
	if maxBatch <= 0 {
		maxBatch = DefaultMaxMulticallOperations
	}
	modes, err := mode.NewStateMachine(mode.ModeActive, now)
	if err != nil {
		return nil, fmt.Errorf("инициализация режима: %w", err)
	}

	s := &ResolverService{
		repo:          repo,
		cache:         cache,
		authz:         authz,
		modes:         modes,
		collaborators: cfg.Collaborators,
		maxBatch:      maxBatch,
		now:           now,
		logger:        logger.With(slog.String("component", "resolver")),
	}
	cache.SetEvictHook(s.onEvict)
	recordsActive.Set(0)
	return s, nil
}

// onEvict журналирует вытеснение слота внутри пакета.
// Вызывается синхронно из CacheService под блокировкой s.mu.
func (s *ResolverService) onEvict(node model.Node, entry model.CacheEntry) {
	if s.journal != nil {
		s.journal.noteEviction(node, entry)
	}
}

// --- Сеттеры ---

// SetAddress устанавливает адрес узла.
func (s *ResolverService) SetAddress(ctx context.Context, caller model.Address, node model.Node, addr model.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe(ctx, model.FieldAddress, node, s.setAddress(caller, node, addr))
}

// SetName устанавливает отображаемое имя (до 255 байт).
func (s *ResolverService) SetName(ctx context.Context, caller model.Address, node model.Node, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe(ctx, model.FieldName, node, s.setName(caller, node, name))
}

// SetContentHash устанавливает content-hash узла.
func (s *ResolverService) SetContentHash(ctx context.Context, caller model.Address, node model.Node, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe(ctx, model.FieldContentHash, node, s.setContentHash(caller, node, hash))
}

// SetPublicKey устанавливает пару координат публичного ключа.
func (s *ResolverService) SetPublicKey(ctx context.Context, caller model.Address, node model.Node, x, y model.Word) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe(ctx, model.FieldPublicKey, node, s.setPublicKey(caller, node, x, y))
}

// SetText устанавливает одну текстовую запись.
func (s *ResolverService) SetText(ctx context.Context, caller model.Address, node model.Node, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe(ctx, model.FieldText, node, s.setText(caller, node, key, value))
}

// SetTextBatch устанавливает несколько текстовых записей за одну операцию.
// Пакет валидируется целиком до применения.
func (s *ResolverService) SetTextBatch(ctx context.Context, caller model.Address, node model.Node, keys, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe(ctx, model.FieldText, node, s.setTextBatch(caller, node, keys, values))
}

// SyncDAORecord — хук синхронизации от реестра DAO.
func (s *ResolverService) SyncDAORecord(ctx context.Context, caller model.Address, node model.Node, daoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe(ctx, model.FieldDAOSync, node, s.syncDAORecord(caller, node, daoID))
}

// SyncContractMetadata — хук синхронизации от сервиса метаданных.
func (s *ResolverService) SyncContractMetadata(ctx context.Context, caller model.Address, node model.Node, contract model.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe(ctx, model.FieldContractSync, node, s.syncContractMetadata(caller, node, contract))
}

func (s *ResolverService) setAddress(caller model.Address, node model.Node, addr model.Address) error {
	if err := s.checkWrite(caller, node); err != nil {
		return err
	}
	return s.applyWrite(node, model.FieldAddress, namehash.AddressWord(addr), func(rec *model.Record) {
		rec.Address = addr
	})
}

func (s *ResolverService) setName(caller model.Address, node model.Node, name string) error {
	if err := s.checkWrite(caller, node); err != nil {
		return err
	}
	if len(name) > model.MaxNameLength {
		return fmt.Errorf("%w: длина %d байт, максимум %d", ErrInvalidName, len(name), model.MaxNameLength)
	}
	return s.applyWrite(node, model.FieldName, namehash.Keccak256([]byte(name)), func(rec *model.Record) {
		rec.Name = name
	})
}

func (s *ResolverService) setContentHash(caller model.Address, node model.Node, hash []byte) error {
	if err := s.checkWrite(caller, node); err != nil {
		return err
	}
	stored := append([]byte(nil), hash...)
	return s.applyWrite(node, model.FieldContentHash, namehash.Keccak256(stored), func(rec *model.Record) {
		rec.ContentHash = stored
	})
}

func (s *ResolverService) setPublicKey(caller model.Address, node model.Node, x, y model.Word) error {
	if err := s.checkWrite(caller, node); err != nil {
		return err
	}
	pk := model.PublicKey{X: x, Y: y}
	return s.applyWrite(node, model.FieldPublicKey, namehash.PublicKeyDigest(pk), func(rec *model.Record) {
		rec.PublicKey = pk
	})
}

func (s *ResolverService) setText(caller model.Address, node model.Node, key, value string) error {
	if err := s.checkWrite(caller, node); err != nil {
		return err
	}
	if err := validateText(key, value); err != nil {
		return err
	}
	return s.applyWrite(node, model.FieldText, namehash.Keccak256([]byte(value)), func(rec *model.Record) {
		s.putText(rec, key, value)
	})
}

func (s *ResolverService) setTextBatch(caller model.Address, node model.Node, keys, values []string) error {
	if err := s.checkWrite(caller, node); err != nil {
		return err
	}
	if len(keys) != len(values) {
		return fmt.Errorf("%w: ключей %d, значений %d", ErrArityMismatch, len(keys), len(values))
	}
	if len(keys) == 0 {
		return ErrEmptyBatch
	}
	for i := range keys {
		if err := validateText(keys[i], values[i]); err != nil {
			return fmt.Errorf("элемент %d: %w", i, err)
		}
	}
	last := values[len(values)-1]
	return s.applyWrite(node, model.FieldText, namehash.Keccak256([]byte(last)), func(rec *model.Record) {
		for i := range keys {
			s.putText(rec, keys[i], values[i])
		}
	})
}

func (s *ResolverService) syncDAORecord(caller model.Address, node model.Node, daoID string) error {
	if err := s.checkWrite(caller, node); err != nil {
		return err
	}
	if daoID == "" {
		return fmt.Errorf("%w: пустой DAO id", ErrInvalidSyncSource)
	}
	return s.applyWrite(node, model.FieldDAOSync, namehash.Keccak256([]byte(daoID)), func(*model.Record) {})
}

func (s *ResolverService) syncContractMetadata(caller model.Address, node model.Node, contract model.Address) error {
	if err := s.checkWrite(caller, node); err != nil {
		return err
	}
	if contract.IsZero() {
		return fmt.Errorf("%w: нулевой адрес контракта", ErrInvalidSyncSource)
	}
	return s.applyWrite(node, model.FieldContractSync, namehash.AddressWord(contract), func(*model.Record) {})
}

// checkWrite — общий порядок проверок мутации: пауза, права, узел.
func (s *ResolverService) checkWrite(caller model.Address, node model.Node) error {
	if s.modes.IsPaused() {
		return ErrPaused
	}
	if !s.authz.IsAuthorized(caller) {
		return ErrUnauthorized
	}
	if node.IsZero() {
		return ErrInvalidNode
	}
	return nil
}

// applyWrite обновляет слот кэша, затем запись. Вызывается под s.mu.Lock.
// Слот обновляется первым: его ошибка не оставляет частичной записи.
func (s *ResolverService) applyWrite(node model.Node, field model.Field, digest model.Word, mutate func(rec *model.Record)) error {
	if s.journal != nil {
		s.journal.touch(node, s.repo, s.cache)
	}
	if err := s.cache.RefreshDefault(node, field, digest); err != nil {
		return err
	}

	now := s.now().UTC()
	s.repo.Update(node, func(rec *model.Record) {
		mutate(rec)
		rec.LastUpdated = now
		if !rec.IsActive {
			rec.IsActive = true
			s.totalRecords++
		}
	})
	recordsActive.Set(float64(s.totalRecords))
	return nil
}

// putText записывает ключ; счётчик растёт только для нового ключа узла.
func (s *ResolverService) putText(rec *model.Record, key, value string) {
	if _, exists := rec.Texts[key]; !exists {
		s.totalTextRecords++
	}
	rec.Texts[key] = value
}

func validateText(key, value string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: пустой ключ", ErrInvalidTextRecord)
	case value == "":
		return fmt.Errorf("%w: пустое значение для ключа %q", ErrInvalidTextRecord, key)
	case len(value) > model.MaxTextValueLength:
		return fmt.Errorf("%w: значение %d байт, максимум %d", ErrInvalidTextRecord, len(value), model.MaxTextValueLength)
	}
	return nil
}

// observe пишет метрики и debug-лог мутации.
func (s *ResolverService) observe(ctx context.Context, field model.Field, node model.Node, err error) error {
	mutationsTotal.WithLabelValues(string(field), statusLabel(err)).Inc()
	if err != nil {
		s.logger.DebugContext(ctx, "Мутация отклонена",
			slog.String("operation", string(field)),
			slog.String("node", node.Hex()),
			slog.String("error", err.Error()),
		)
		return err
	}
	s.logger.DebugContext(ctx, "Запись обновлена",
		slog.String("operation", string(field)),
		slog.String("node", node.Hex()),
	)
	return nil
}

// --- Чтение ---

// Address возвращает адрес узла. Сначала читается слот кэша:
// попадание засчитывается, только если слот жив и отражает адрес.
func (s *ResolverService) Address(node model.Node) model.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address(node)
}

func (s *ResolverService) address(node model.Node) model.Address {
	if w, ok := s.cache.Read(node, model.FieldAddress); ok {
		return namehash.AddressFromWord(w)
	}
	var addr model.Address
	s.viewActive(node, func(rec *model.Record) { addr = rec.Address })
	return addr
}

// Name возвращает отображаемое имя узла.
func (s *ResolverService) Name(node model.Node) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name(node)
}

func (s *ResolverService) name(node model.Node) string {
	var name string
	s.viewActive(node, func(rec *model.Record) { name = rec.Name })
	return name
}

// ContentHash возвращает копию content-hash (пустой срез, если не задан).
func (s *ResolverService) ContentHash(node model.Node) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contentHash(node)
}

func (s *ResolverService) contentHash(node model.Node) []byte {
	hash := []byte{}
	s.viewActive(node, func(rec *model.Record) { hash = append(hash, rec.ContentHash...) })
	return hash
}

// PublicKey возвращает публичный ключ узла.
func (s *ResolverService) PublicKey(node model.Node) model.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publicKey(node)
}

func (s *ResolverService) publicKey(node model.Node) model.PublicKey {
	var pk model.PublicKey
	s.viewActive(node, func(rec *model.Record) { pk = rec.PublicKey })
	return pk
}

// Text возвращает значение текстовой записи ("" если нет).
func (s *ResolverService) Text(node model.Node, key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text(node, key)
}

func (s *ResolverService) text(node model.Node, key string) string {
	var value string
	s.viewActive(node, func(rec *model.Record) { value = rec.Texts[key] })
	return value
}

// TextBatch возвращает значения для ключей в том же порядке.
func (s *ResolverService) TextBatch(node model.Node, keys []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.textBatch(node, keys)
}

func (s *ResolverService) textBatch(node model.Node, keys []string) []string {
	values := make([]string, len(keys))
	s.viewActive(node, func(rec *model.Record) {
		for i, k := range keys {
			values[i] = rec.Texts[k]
		}
	})
	return values
}

// HasRecord возвращает флаг активности записи.
func (s *ResolverService) HasRecord(node model.Node) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasRecord(node)
}

func (s *ResolverService) hasRecord(node model.Node) bool {
	active := false
	s.viewActive(node, func(*model.Record) { active = true })
	return active
}

// RecordInfo возвращает снимок скалярных полей записи.
func (s *ResolverService) RecordInfo(node model.Node) model.RecordInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recordInfo(node)
}

func (s *ResolverService) recordInfo(node model.Node) model.RecordInfo {
	var rec *model.Record
	info := rec.Info(node)
	s.repo.View(node, func(r *model.Record) { info = r.Info(node) })
	return info
}

// viewActive вызывает fn только для активной записи.
func (s *ResolverService) viewActive(node model.Node, fn func(rec *model.Record)) {
	s.repo.View(node, func(rec *model.Record) {
		if rec.IsActive {
			fn(rec)
		}
	})
}

// --- Кэш ---

// CacheInfo возвращает слот узла и признак валидности.
func (s *ResolverService) CacheInfo(node model.Node) model.CacheInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Info(node)
}

// IsCacheValid сообщает, жив ли слот узла.
func (s *ResolverService) IsCacheValid(node model.Node) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.IsValid(node)
}

// ClearCache удаляет слот узла. Требует авторизации.
func (s *ResolverService) ClearCache(ctx context.Context, caller model.Address, node model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWrite(caller, node); err != nil {
		return err
	}
	removed := s.cache.Clear(node)
	s.logger.DebugContext(ctx, "Слот кэша очищен",
		slog.String("node", node.Hex()),
		slog.Bool("existed", removed),
	)
	return nil
}

// RefreshCache продлевает существующий слот узла с заданным TTL.
// Возвращает false, если слота нет.
func (s *ResolverService) RefreshCache(ctx context.Context, caller model.Address, node model.Node, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWrite(caller, node); err != nil {
		return false, err
	}
	refreshed, err := s.cache.Restamp(node, ttl)
	if err != nil {
		return false, err
	}
	s.logger.DebugContext(ctx, "Слот кэша продлён",
		slog.String("node", node.Hex()),
		slog.Duration("ttl", ttl),
		slog.Bool("refreshed", refreshed),
	)
	return refreshed, nil
}

// ClearAllCache очищает кэш и обнуляет счётчики попаданий. Только владелец.
func (s *ResolverService) ClearAllCache(ctx context.Context, caller model.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authz.IsOwner(caller) {
		return ErrUnauthorized
	}
	s.cache.ClearAll()
	s.logger.InfoContext(ctx, "Кэш очищен полностью", slog.String("caller", caller.Hex()))
	return nil
}

// --- Администрирование ---

// Owner возвращает адрес владельца.
func (s *ResolverService) Owner() model.Address {
	return s.authz.Owner()
}

// IsAuthorized сообщает, может ли caller выполнять мутации.
func (s *ResolverService) IsAuthorized(caller model.Address) bool {
	return s.authz.IsAuthorized(caller)
}

// AuthorizedCallers возвращает список авторизованных (без владельца).
func (s *ResolverService) AuthorizedCallers() []model.Address {
	return s.authz.Callers()
}

// AddAuthorizedCaller добавляет target в список. Только владелец.
func (s *ResolverService) AddAuthorizedCaller(ctx context.Context, caller, target model.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authz.Add(caller, target); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Вызывающий авторизован", slog.String("target", target.Hex()))
	return nil
}

// RemoveAuthorizedCaller удаляет target из списка. Только владелец.
func (s *ResolverService) RemoveAuthorizedCaller(ctx context.Context, caller, target model.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authz.Remove(caller, target); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Авторизация отозвана", slog.String("target", target.Hex()))
	return nil
}

// Collaborators возвращает адреса внешних сервисов.
func (s *ResolverService) Collaborators() Collaborators {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collaborators
}

// SetCollaborators меняет адреса внешних сервисов. Только владелец.
// Нулевой адрес означает «не задан».
func (s *ResolverService) SetCollaborators(ctx context.Context, caller model.Address, c Collaborators) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authz.IsOwner(caller) {
		return ErrUnauthorized
	}
	s.collaborators = c
	s.logger.InfoContext(ctx, "Адреса коллабораторов обновлены",
		slog.String("registry", c.Registry.Hex()),
		slog.String("metadata_service", c.MetadataService.Hex()),
	)
	return nil
}

// TTLConfig возвращает TTL по умолчанию и потолок.
func (s *ResolverService) TTLConfig() (defaultTTL, maxTTL time.Duration) {
	return s.cache.TTLConfig()
}

// SetTTLConfig меняет TTL кэша. Только владелец.
func (s *ResolverService) SetTTLConfig(ctx context.Context, caller model.Address, defaultTTL, maxTTL time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authz.IsOwner(caller) {
		return ErrUnauthorized
	}
	if err := s.cache.SetTTLConfig(defaultTTL, maxTTL); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Конфигурация TTL обновлена",
		slog.Duration("default_ttl", defaultTTL),
		slog.Duration("max_ttl", maxTTL),
	)
	return nil
}

// Pause останавливает мутации. Только владелец.
func (s *ResolverService) Pause(ctx context.Context, caller model.Address) error {
	return s.transition(ctx, caller, mode.ModePaused)
}

// Unpause возобновляет мутации. Только владелец.
func (s *ResolverService) Unpause(ctx context.Context, caller model.Address) error {
	return s.transition(ctx, caller, mode.ModeActive)
}

func (s *ResolverService) transition(ctx context.Context, caller model.Address, target mode.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authz.IsOwner(caller) {
		return ErrUnauthorized
	}
	if err := s.modes.TransitionTo(target, caller.Hex()); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Режим резолвера изменён",
		slog.String("mode", string(target)),
		slog.String("caller", caller.Hex()),
	)
	return nil
}

// Mode возвращает текущий режим.
func (s *ResolverService) Mode() mode.Mode {
	return s.modes.CurrentMode()
}

// ModeHistory возвращает историю переходов режима.
func (s *ResolverService) ModeHistory() []mode.TransitionRecord {
	return s.modes.History()
}

// --- Статистика ---

// Statistics возвращает счётчики резолвера.
func (s *ResolverService) Statistics() model.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, misses := s.cache.Counters()
	return model.Statistics{
		TotalRecords:     s.totalRecords,
		TotalTextRecords: s.totalTextRecords,
		CacheHits:        hits,
		CacheMisses:      misses,
		CacheHitRate:     model.HitRate(hits, misses),
	}
}

// CheckReady реализует проверку готовности для /health/ready.
// На паузе резолвер отвечает на чтение, поэтому статус degraded, а не fail.
func (s *ResolverService) CheckReady() (status, message string) {
	if s.modes.IsPaused() {
		return "degraded", "мутации приостановлены"
	}
	return "ok", ""
}
