package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/mode"
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
	"github.com/bigkaa/goartstore/resolver-module/internal/domain/namehash"
)

// TestResolver_AddressRoundTrip проверяет запись и чтение адреса.
func TestResolver_AddressRoundTrip(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)
	addr := testAddr(0x42)

	if err := f.svc.SetAddress(ctx, writerAddr, node, addr); err != nil {
		t.Fatalf("SetAddress: %v", err)
	}
	if got := f.svc.Address(node); got != addr {
		t.Errorf("Address() = %s, ожидался %s", got, addr)
	}

	// После истечения TTL чтение идёт из хранилища
	f.clock.Advance(301 * time.Second)
	if got := f.svc.Address(node); got != addr {
		t.Errorf("Address() после истечения TTL = %s, ожидался %s", got, addr)
	}
	stats := f.svc.Statistics()
	if stats.CacheHits != 1 || stats.CacheMisses != 1 {
		t.Errorf("hits/misses = %d/%d, ожидалось 1/1", stats.CacheHits, stats.CacheMisses)
	}
}

// TestResolver_LazyActivation проверяет ленивую активацию записи.
func TestResolver_LazyActivation(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)

	if f.svc.HasRecord(node) {
		t.Fatal("HasRecord() = true до первой записи")
	}
	info := f.svc.RecordInfo(node)
	if info.IsActive || info.Name != "" || !info.Address.IsZero() {
		t.Errorf("RecordInfo() до записи = %+v", info)
	}

	if err := f.svc.SetName(ctx, writerAddr, node, "dao.eth"); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	if err := f.svc.SetName(ctx, writerAddr, node, "dao2.eth"); err != nil {
		t.Fatalf("SetName: %v", err)
	}

	if !f.svc.HasRecord(node) {
		t.Error("HasRecord() = false после записи")
	}
	if got := f.svc.Statistics().TotalRecords; got != 1 {
		t.Errorf("TotalRecords = %d, ожидалось 1", got)
	}
	info = f.svc.RecordInfo(node)
	if !info.IsActive || info.Name != "dao2.eth" || !info.LastUpdated.Equal(f.clock.Now()) {
		t.Errorf("RecordInfo() = %+v", info)
	}
}

// TestResolver_FailedWriteDoesNotActivate проверяет, что отклонённая запись не активирует узел.
func TestResolver_FailedWriteDoesNotActivate(t *testing.T) {
	f := newResolver(t, 100)
	node := testNode(1)

	err := f.svc.SetText(context.Background(), writerAddr, node, "url", "")
	if !errors.Is(err, ErrInvalidTextRecord) {
		t.Fatalf("SetText(пустое значение) = %v", err)
	}
	if f.svc.HasRecord(node) || f.svc.CacheInfo(node).Exists {
		t.Error("неудачная запись не должна оставлять следов")
	}
}

// TestResolver_TextCounter проверяет счётчик уникальных текстовых ключей.
func TestResolver_TextCounter(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)

	steps := []struct {
		key, value string
		want       uint64
	}{
		{"url", "https://a", 1},
		{"url", "https://b", 1},
		{"email", "dao@example.org", 2},
	}
	for _, st := range steps {
		if err := f.svc.SetText(ctx, writerAddr, node, st.key, st.value); err != nil {
			t.Fatalf("SetText(%s): %v", st.key, err)
		}
		if got := f.svc.Statistics().TotalTextRecords; got != st.want {
			t.Errorf("после %s=%s TotalTextRecords = %d, ожидалось %d", st.key, st.value, got, st.want)
		}
	}
	if got := f.svc.Text(node, "url"); got != "https://b" {
		t.Errorf("Text(url) = %q", got)
	}
}

// TestResolver_SetTextBatch проверяет пакетную запись текстов.
func TestResolver_SetTextBatch(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)

	tests := []struct {
		name    string
		keys    []string
		values  []string
		wantErr error
	}{
		{"разная длина", []string{"a"}, []string{"1", "2"}, ErrArityMismatch},
		{"пустой пакет", nil, nil, ErrEmptyBatch},
		{"пустой ключ в пакете", []string{"a", ""}, []string{"1", "2"}, ErrInvalidTextRecord},
		{"длинное значение", []string{"a"}, []string{strings.Repeat("x", 1001)}, ErrInvalidTextRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.SetTextBatch(ctx, writerAddr, node, tt.keys, tt.values)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SetTextBatch() = %v, ожидалась %v", err, tt.wantErr)
			}
		})
	}
	if f.svc.HasRecord(node) {
		t.Fatal("отклонённые пакеты не должны активировать запись")
	}

	keys := []string{"a", "b", "a"}
	values := []string{"1", "2", "3"}
	if err := f.svc.SetTextBatch(ctx, writerAddr, node, keys, values); err != nil {
		t.Fatalf("SetTextBatch: %v", err)
	}
	got := f.svc.TextBatch(node, []string{"a", "b", "missing"})
	if got[0] != "3" || got[1] != "2" || got[2] != "" {
		t.Errorf("TextBatch() = %v", got)
	}
	if n := f.svc.Statistics().TotalTextRecords; n != 2 {
		t.Errorf("TotalTextRecords = %d, ожидалось 2", n)
	}
	entry := f.svc.CacheInfo(node).Entry
	if entry.Field != model.FieldText || entry.Data != namehash.Keccak256([]byte("3")) {
		t.Errorf("слот кэша = %+v, ожидался digest последнего значения", entry)
	}
}

// TestResolver_TextValueLimits проверяет границы длины значения.
func TestResolver_TextValueLimits(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)

	if err := f.svc.SetText(ctx, writerAddr, node, "k", strings.Repeat("x", 1000)); err != nil {
		t.Errorf("значение 1000 байт: %v", err)
	}
	if err := f.svc.SetText(ctx, writerAddr, node, "k", strings.Repeat("x", 1001)); !errors.Is(err, ErrInvalidTextRecord) {
		t.Errorf("значение 1001 байт: %v", err)
	}
	if err := f.svc.SetName(ctx, writerAddr, node, strings.Repeat("n", 256)); !errors.Is(err, ErrInvalidName) {
		t.Errorf("имя 256 байт: %v", err)
	}
}

// TestResolver_SingleSlotOverwrite проверяет, что кэш отражает только последнее поле.
func TestResolver_SingleSlotOverwrite(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)
	addr := testAddr(0x42)

	_ = f.svc.SetAddress(ctx, writerAddr, node, addr)
	f.svc.Address(node)
	if s := f.svc.Statistics(); s.CacheHits != 1 {
		t.Fatalf("чтение сразу после SetAddress должно попасть в кэш: %+v", s)
	}

	_ = f.svc.SetText(ctx, writerAddr, node, "url", "https://dao")
	entry := f.svc.CacheInfo(node).Entry
	if entry.Field != model.FieldText || entry.Data != namehash.Keccak256([]byte("https://dao")) {
		t.Fatalf("слот = %+v, ожидался digest текста", entry)
	}

	if got := f.svc.Address(node); got != addr {
		t.Errorf("Address() = %s, ожидался %s из хранилища", got, addr)
	}
	if s := f.svc.Statistics(); s.CacheHits != 1 || s.CacheMisses != 1 {
		t.Errorf("hits/misses = %d/%d, ожидалось 1/1", s.CacheHits, s.CacheMisses)
	}
}

// TestResolver_AuthorizationGate проверяет допуск к мутациям.
func TestResolver_AuthorizationGate(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)

	setters := map[string]func(caller model.Address) error{
		"SetAddress": func(c model.Address) error { return f.svc.SetAddress(ctx, c, node, testAddr(1)) },
		"SetName":    func(c model.Address) error { return f.svc.SetName(ctx, c, node, "n") },
		"SetContentHash": func(c model.Address) error {
			return f.svc.SetContentHash(ctx, c, node, []byte{0xe3, 0x01})
		},
		"SetPublicKey": func(c model.Address) error {
			return f.svc.SetPublicKey(ctx, c, node, model.Word{1}, model.Word{2})
		},
		"SetText":      func(c model.Address) error { return f.svc.SetText(ctx, c, node, "k", "v") },
		"SetTextBatch": func(c model.Address) error { return f.svc.SetTextBatch(ctx, c, node, []string{"k"}, []string{"v"}) },
		"SyncDAORecord": func(c model.Address) error {
			return f.svc.SyncDAORecord(ctx, c, node, "dao-1")
		},
		"SyncContractMetadata": func(c model.Address) error {
			return f.svc.SyncContractMetadata(ctx, c, node, testAddr(9))
		},
		"ClearCache": func(c model.Address) error { return f.svc.ClearCache(ctx, c, node) },
	}

	for name, set := range setters {
		t.Run(name, func(t *testing.T) {
			if err := set(strangerAddr); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("посторонний: %v, ожидалась ErrUnauthorized", err)
			}
			if err := set(ownerAddr); err != nil {
				t.Errorf("владелец: %v", err)
			}
		})
	}

	if err := f.svc.AddAuthorizedCaller(ctx, ownerAddr, strangerAddr); err != nil {
		t.Fatalf("AddAuthorizedCaller: %v", err)
	}
	if err := f.svc.SetAddress(ctx, strangerAddr, node, testAddr(7)); err != nil {
		t.Errorf("после добавления в список: %v", err)
	}
	if err := f.svc.RemoveAuthorizedCaller(ctx, ownerAddr, strangerAddr); err != nil {
		t.Fatalf("RemoveAuthorizedCaller: %v", err)
	}
	if err := f.svc.SetAddress(ctx, strangerAddr, node, testAddr(8)); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("после удаления из списка: %v", err)
	}
}

// TestResolver_CheckOrder проверяет порядок проверок: пауза, права, узел, данные.
func TestResolver_CheckOrder(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()

	if err := f.svc.SetText(ctx, strangerAddr, model.Node{}, "", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("посторонний с нулевым узлом: %v, ожидалась ErrUnauthorized", err)
	}
	if err := f.svc.SetText(ctx, writerAddr, model.Node{}, "", ""); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("нулевой узел: %v, ожидалась ErrInvalidNode", err)
	}

	if err := f.svc.Pause(ctx, ownerAddr); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := f.svc.SetText(ctx, strangerAddr, model.Node{}, "", ""); !errors.Is(err, ErrPaused) {
		t.Errorf("пауза: %v, ожидалась ErrPaused", err)
	}
}

// TestResolver_PauseUnpause проверяет остановку мутаций при доступном чтении.
func TestResolver_PauseUnpause(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)
	_ = f.svc.SetName(ctx, writerAddr, node, "before")

	if err := f.svc.Pause(ctx, writerAddr); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Pause не владельцем: %v", err)
	}
	if err := f.svc.Pause(ctx, ownerAddr); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if f.svc.Mode() != mode.ModePaused {
		t.Errorf("Mode() = %s", f.svc.Mode())
	}

	if err := f.svc.SetName(ctx, writerAddr, node, "after"); !errors.Is(err, ErrPaused) {
		t.Errorf("SetName на паузе: %v", err)
	}
	if _, err := f.svc.RefreshCache(ctx, writerAddr, node, time.Minute); !errors.Is(err, ErrPaused) {
		t.Errorf("RefreshCache на паузе: %v", err)
	}
	if _, err := f.svc.Multicall(ctx, writerAddr, []Operation{
		mustOp(t, MethodSetName, SetNameArgs{Node: node, Name: "after"}),
	}); !errors.Is(err, ErrPaused) {
		t.Errorf("Multicall на паузе: %v", err)
	}
	if got := f.svc.Name(node); got != "before" {
		t.Errorf("Name() на паузе = %q", got)
	}

	var te *mode.TransitionError
	if err := f.svc.Pause(ctx, ownerAddr); !errors.As(err, &te) {
		t.Errorf("повторная пауза: %v, ожидалась TransitionError", err)
	}

	if err := f.svc.Unpause(ctx, ownerAddr); err != nil {
		t.Fatalf("Unpause: %v", err)
	}
	if err := f.svc.SetName(ctx, writerAddr, node, "after"); err != nil {
		t.Errorf("SetName после unpause: %v", err)
	}
	if h := f.svc.ModeHistory(); len(h) != 2 || h[0].Subject != ownerAddr.Hex() {
		t.Errorf("ModeHistory() = %+v", h)
	}
}

// TestResolver_OwnerOnlyAdmin проверяет операции только для владельца.
func TestResolver_OwnerOnlyAdmin(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()

	calls := map[string]func(caller model.Address) error{
		"ClearAllCache": func(c model.Address) error { return f.svc.ClearAllCache(ctx, c) },
		"SetCollaborators": func(c model.Address) error {
			return f.svc.SetCollaborators(ctx, c, Collaborators{Registry: testAddr(0x30)})
		},
		"SetTTLConfig":        func(c model.Address) error { return f.svc.SetTTLConfig(ctx, c, time.Minute, time.Hour) },
		"AddAuthorizedCaller": func(c model.Address) error { return f.svc.AddAuthorizedCaller(ctx, c, testAddr(0x31)) },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(writerAddr); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("авторизованный, но не владелец: %v", err)
			}
			if err := call(ownerAddr); err != nil {
				t.Errorf("владелец: %v", err)
			}
		})
	}

	if got := f.svc.Collaborators().Registry; got != testAddr(0x30) {
		t.Errorf("Collaborators().Registry = %s", got)
	}
	if def, maxTTL := f.svc.TTLConfig(); def != time.Minute || maxTTL != time.Hour {
		t.Errorf("TTLConfig() = %s, %s", def, maxTTL)
	}
}

// TestResolver_ClearCache проверяет очистку слота и полную очистку.
func TestResolver_ClearCache(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)
	addr := testAddr(5)

	_ = f.svc.SetAddress(ctx, writerAddr, node, addr)
	f.svc.Address(node)

	if err := f.svc.ClearCache(ctx, writerAddr, node); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if f.svc.IsCacheValid(node) {
		t.Error("слот валиден после ClearCache")
	}
	if got := f.svc.Address(node); got != addr {
		t.Errorf("Address() после ClearCache = %s", got)
	}

	if err := f.svc.ClearAllCache(ctx, ownerAddr); err != nil {
		t.Fatalf("ClearAllCache: %v", err)
	}
	if s := f.svc.Statistics(); s.CacheHits != 0 || s.CacheMisses != 0 || s.CacheHitRate != 0 {
		t.Errorf("Statistics() после ClearAll = %+v", s)
	}
	if s := f.svc.Statistics(); s.TotalRecords != 1 {
		t.Errorf("ClearAll не должен трогать записи: %+v", s)
	}
}

// TestResolver_RefreshCache проверяет продление слота.
func TestResolver_RefreshCache(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)

	ok, err := f.svc.RefreshCache(ctx, writerAddr, node, time.Minute)
	if err != nil || ok {
		t.Fatalf("RefreshCache() без слота = %v, %v", ok, err)
	}

	_ = f.svc.SetAddress(ctx, writerAddr, node, testAddr(5))
	if _, err := f.svc.RefreshCache(ctx, writerAddr, node, 2*time.Hour); !errors.Is(err, ErrTTLExceedsMaximum) {
		t.Errorf("RefreshCache(2h) = %v, ожидалась ErrTTLExceedsMaximum", err)
	}
	f.clock.Advance(290 * time.Second)
	if ok, err := f.svc.RefreshCache(ctx, writerAddr, node, 30*time.Minute); err != nil || !ok {
		t.Fatalf("RefreshCache() = %v, %v", ok, err)
	}
	f.clock.Advance(20 * time.Minute)
	if !f.svc.IsCacheValid(node) {
		t.Error("продлённый слот должен быть валиден")
	}
}

// TestResolver_Sync проверяет хуки синхронизации.
func TestResolver_Sync(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)
	contract := testAddr(0x77)

	if err := f.svc.SyncDAORecord(ctx, writerAddr, node, ""); !errors.Is(err, ErrInvalidSyncSource) {
		t.Errorf("пустой DAO id: %v", err)
	}
	if err := f.svc.SyncContractMetadata(ctx, writerAddr, node, model.Address{}); !errors.Is(err, ErrInvalidSyncSource) {
		t.Errorf("нулевой контракт: %v", err)
	}

	if err := f.svc.SyncDAORecord(ctx, writerAddr, node, "dao-42"); err != nil {
		t.Fatalf("SyncDAORecord: %v", err)
	}
	if !f.svc.HasRecord(node) {
		t.Error("синхронизация должна активировать запись")
	}
	entry := f.svc.CacheInfo(node).Entry
	if entry.Field != model.FieldDAOSync || entry.Data != namehash.Keccak256([]byte("dao-42")) {
		t.Errorf("слот после SyncDAORecord = %+v", entry)
	}

	f.clock.Advance(time.Minute)
	if err := f.svc.SyncContractMetadata(ctx, writerAddr, node, contract); err != nil {
		t.Fatalf("SyncContractMetadata: %v", err)
	}
	if got := f.svc.RecordInfo(node).LastUpdated; !got.Equal(f.clock.Now()) {
		t.Errorf("LastUpdated = %s, ожидалось %s", got, f.clock.Now())
	}
	if entry := f.svc.CacheInfo(node).Entry; entry.Data != namehash.AddressWord(contract) {
		t.Errorf("слот после SyncContractMetadata = %+v", entry)
	}
}

// TestResolver_TypedGetters проверяет остальные типизированные поля.
func TestResolver_TypedGetters(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)
	hash := []byte{0xe3, 0x01, 0x01, 0x70}
	x, y := model.Word{1}, model.Word{2}

	if got := f.svc.ContentHash(node); got == nil || len(got) != 0 {
		t.Errorf("ContentHash() неизвестного узла = %v, ожидался пустой срез", got)
	}

	_ = f.svc.SetContentHash(ctx, writerAddr, node, hash)
	_ = f.svc.SetPublicKey(ctx, writerAddr, node, x, y)

	got := f.svc.ContentHash(node)
	if string(got) != string(hash) {
		t.Errorf("ContentHash() = %x", got)
	}
	got[0] = 0
	if f.svc.ContentHash(node)[0] != 0xe3 {
		t.Error("ContentHash() должен возвращать копию")
	}
	if pk := f.svc.PublicKey(node); pk.X != x || pk.Y != y {
		t.Errorf("PublicKey() = %+v", pk)
	}
	info := f.svc.RecordInfo(node)
	if string(info.ContentHash) != string(hash) || info.PublicKey.X != x {
		t.Errorf("RecordInfo() = %+v", info)
	}
}

// TestResolver_HitRate проверяет арифметику процента попаданий: 3 hit + 1 miss = 75.
func TestResolver_HitRate(t *testing.T) {
	f := newResolver(t, 100)
	ctx := context.Background()
	node := testNode(1)

	if s := f.svc.Statistics(); s.CacheHitRate != 0 {
		t.Errorf("CacheHitRate без обращений = %d", s.CacheHitRate)
	}

	_ = f.svc.SetAddress(ctx, writerAddr, node, testAddr(1))
	for range 3 {
		f.svc.Address(node)
	}
	f.svc.Address(testNode(2))

	s := f.svc.Statistics()
	if s.CacheHits != 3 || s.CacheMisses != 1 || s.CacheHitRate != 75 {
		t.Errorf("Statistics() = %+v, ожидалось 3/1/75", s)
	}
}

// TestResolver_ConcurrentReadsAndWrites проверяет отсутствие гонок между чтением и записью.
func TestResolver_ConcurrentReadsAndWrites(t *testing.T) {
	f := newResolver(t, 8)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		node := testNode(byte(i%5 + 1))
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.svc.SetAddress(ctx, writerAddr, node, testAddr(byte(i)))
			_ = f.svc.SetText(ctx, writerAddr, node, "k", "v")
		}()
		go func() {
			defer wg.Done()
			_ = f.svc.Address(node)
			_ = f.svc.RecordInfo(node)
			_ = f.svc.Statistics()
		}()
	}
	wg.Wait()

	if s := f.svc.Statistics(); s.TotalRecords != 5 || s.TotalTextRecords != 5 {
		t.Errorf("Statistics() = %+v, ожидалось 5 записей и 5 текстов", s)
	}
}

// TestResolver_CheckReady проверяет статус готовности в зависимости от режима.
func TestResolver_CheckReady(t *testing.T) {
	f := newResolver(t, 10)
	ctx := context.Background()

	if st, _ := f.svc.CheckReady(); st != "ok" {
		t.Errorf("CheckReady() = %q, ожидался ok", st)
	}
	if err := f.svc.Pause(ctx, ownerAddr); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if st, msg := f.svc.CheckReady(); st != "degraded" || msg == "" {
		t.Errorf("CheckReady() на паузе = %q, %q", st, msg)
	}
}
