// Пакет mode — конечный автомат режима работы резолвера.
//
// Два режима:
//   - active — мутации разрешены
//   - paused — все мутирующие операции отклоняются, чтение доступно
//
// Переходы: active → paused (pause), paused → active (unpause).
// Потокобезопасен через sync.RWMutex.
package mode

import (
	"fmt"
	"sync"
	"time"
)

// Mode — режим работы резолвера.
type Mode string

const (
	// ModeActive — штатная работа
	ModeActive Mode = "active"
	// ModePaused — мутации остановлены
	ModePaused Mode = "paused"
)

// Коды ошибок перехода.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
)

// TransitionRecord — запись о переходе между режимами.
type TransitionRecord struct {
	From      Mode      `json:"from"`
	To        Mode      `json:"to"`
	Subject   string    `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
}

// validTransitions — матрица допустимых переходов.
var validTransitions = map[Mode]map[Mode]bool{
	ModeActive: {ModePaused: true},
	ModePaused: {ModeActive: true},
}

// StateMachine — конечный автомат режима резолвера.
type StateMachine struct {
	mu      sync.RWMutex
	current Mode
	history []TransitionRecord
	now     func() time.Time
}

// NewStateMachine создаёт автомат с начальным режимом.
// now — источник времени для истории переходов (nil — time.Now).
func NewStateMachine(initial Mode, now func() time.Time) (*StateMachine, error) {
	if !isValidMode(initial) {
		return nil, fmt.Errorf("недопустимый начальный режим: %q", initial)
	}
	if now == nil {
		now = time.Now
	}

	return &StateMachine{
		current: initial,
		history: make([]TransitionRecord, 0),
		now:     now,
	}, nil
}

// CurrentMode возвращает текущий режим.
func (sm *StateMachine) CurrentMode() Mode {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// IsPaused сообщает, остановлены ли мутации.
func (sm *StateMachine) IsPaused() bool {
	return sm.CurrentMode() == ModePaused
}

// TransitionTo выполняет переход в указанный режим.
// subject — кто инициировал переход (адрес владельца).
func (sm *StateMachine) TransitionTo(target Mode, subject string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !isValidMode(target) {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("недопустимый целевой режим: %q", target),
		}
	}

	if !validTransitions[sm.current][target] {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("переход %s → %s недопустим", sm.current, target),
		}
	}

	sm.history = append(sm.history, TransitionRecord{
		From:      sm.current,
		To:        target,
		Subject:   subject,
		Timestamp: sm.now().UTC(),
	})
	sm.current = target

	return nil
}

// History возвращает историю переходов (копия).
func (sm *StateMachine) History() []TransitionRecord {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	result := make([]TransitionRecord, len(sm.history))
	copy(result, sm.history)
	return result
}

// TransitionError — ошибка перехода между режимами.
type TransitionError struct {
	Code    string
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func isValidMode(m Mode) bool {
	switch m {
	case ModeActive, ModePaused:
		return true
	default:
		return false
	}
}

// ParseMode преобразует строку в Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !isValidMode(m) {
		return "", fmt.Errorf("недопустимый режим: %q, допустимые: active, paused", s)
	}
	return m, nil
}
