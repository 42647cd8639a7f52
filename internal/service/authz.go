// authz.go — менеджер авторизации: владелец и список авторизованных вызывающих.
package service

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
)

// AuthorizationManager — владелец плюс множество авторизованных адресов.
// Владелец фиксируется при создании и авторизован неявно.
type AuthorizationManager struct {
	mu      sync.RWMutex
	owner   model.Address
	callers map[model.Address]struct{}
}

// NewAuthorizationManager создаёт менеджер с владельцем и начальным списком.
func NewAuthorizationManager(owner model.Address, initial []model.Address) (*AuthorizationManager, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("%w: нулевой адрес владельца", ErrInvalidCaller)
	}
	m := &AuthorizationManager{
		owner:   owner,
		callers: make(map[model.Address]struct{}, len(initial)),
	}
	for _, c := range initial {
		if c.IsZero() {
			return nil, fmt.Errorf("%w: нулевой адрес в начальном списке", ErrInvalidCaller)
		}
		m.callers[c] = struct{}{}
	}
	return m, nil
}

// Owner возвращает адрес владельца.
func (m *AuthorizationManager) Owner() model.Address {
	return m.owner
}

// IsOwner сообщает, является ли caller владельцем.
func (m *AuthorizationManager) IsOwner(caller model.Address) bool {
	return !caller.IsZero() && caller == m.owner
}

// IsAuthorized — владелец или член списка.
func (m *AuthorizationManager) IsAuthorized(caller model.Address) bool {
	if m.IsOwner(caller) {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.callers[caller]
	return ok
}

// Add добавляет target в список. Только владелец.
// Повторное добавление идемпотентно.
func (m *AuthorizationManager) Add(caller, target model.Address) error {
	if !m.IsOwner(caller) {
		return ErrUnauthorized
	}
	if target.IsZero() {
		return ErrInvalidCaller
	}
	m.mu.Lock()
	m.callers[target] = struct{}{}
	m.mu.Unlock()
	return nil
}

// Remove удаляет target из списка. Только владелец.
// Удаление отсутствующего адреса не является ошибкой; владелец остаётся авторизованным.
func (m *AuthorizationManager) Remove(caller, target model.Address) error {
	if !m.IsOwner(caller) {
		return ErrUnauthorized
	}
	if target.IsZero() {
		return ErrInvalidCaller
	}
	m.mu.Lock()
	delete(m.callers, target)
	m.mu.Unlock()
	return nil
}

// Callers возвращает список авторизованных (без владельца), отсортированный по адресу.
func (m *AuthorizationManager) Callers() []model.Address {
	m.mu.RLock()
	out := make([]model.Address, 0, len(m.callers))
	for c := range m.callers {
		out = append(out, c)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return out
}
