package mode

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// TestNewStateMachine проверяет создание конечного автомата.
func TestNewStateMachine(t *testing.T) {
	tests := []struct {
		mode    Mode
		wantErr bool
	}{
		{ModeActive, false},
		{ModePaused, false},
		{Mode("readonly"), true},
		{Mode(""), true},
	}

	for _, tt := range tests {
		sm, err := NewStateMachine(tt.mode, nil)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewStateMachine(%q): ожидалась ошибка", tt.mode)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewStateMachine(%q): неожиданная ошибка: %v", tt.mode, err)
			continue
		}
		if sm.CurrentMode() != tt.mode {
			t.Errorf("CurrentMode(): ожидалось %q, получено %q", tt.mode, sm.CurrentMode())
		}
	}
}

// TestTransitions_PauseUnpause проверяет цикл active → paused → active и историю.
func TestTransitions_PauseUnpause(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sm, _ := NewStateMachine(ModeActive, func() time.Time { return fixed })

	if err := sm.TransitionTo(ModePaused, "0xowner"); err != nil {
		t.Fatalf("active → paused: %v", err)
	}
	if !sm.IsPaused() {
		t.Error("IsPaused() = false после pause")
	}
	if err := sm.TransitionTo(ModeActive, "0xowner"); err != nil {
		t.Fatalf("paused → active: %v", err)
	}

	history := sm.History()
	if len(history) != 2 {
		t.Fatalf("len(History) = %d, ожидалось 2", len(history))
	}
	if history[0].From != ModeActive || history[0].To != ModePaused {
		t.Errorf("history[0] = %+v, ожидался переход active → paused", history[0])
	}
	if !history[1].Timestamp.Equal(fixed) || history[1].Subject != "0xowner" {
		t.Errorf("history[1] = %+v, ожидались subject и время перехода", history[1])
	}
}

// TestTransitions_SameMode проверяет, что повторная пауза запрещена.
func TestTransitions_SameMode(t *testing.T) {
	sm, _ := NewStateMachine(ModeActive, nil)

	for _, target := range []Mode{ModeActive, Mode("bogus")} {
		err := sm.TransitionTo(target, "0xowner")
		var te *TransitionError
		if !errors.As(err, &te) {
			t.Fatalf("TransitionTo(%q): ожидалась TransitionError, получено %v", target, err)
		}
		if te.Code != CodeInvalidTransition {
			t.Errorf("код = %q, ожидался %q", te.Code, CodeInvalidTransition)
		}
	}
	if len(sm.History()) != 0 {
		t.Error("неудачный переход не должен попадать в историю")
	}
}

// TestParseMode проверяет разбор строкового режима.
func TestParseMode(t *testing.T) {
	if m, err := ParseMode("paused"); err != nil || m != ModePaused {
		t.Errorf("ParseMode(paused) = %q, %v", m, err)
	}
	if _, err := ParseMode("edit"); err == nil {
		t.Error("ParseMode(edit): ожидалась ошибка")
	}
}

// TestConcurrentAccess проверяет потокобезопасность чтения при переходах.
func TestConcurrentAccess(t *testing.T) {
	sm, _ := NewStateMachine(ModeActive, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = sm.IsPaused()
			_ = sm.History()
		}()
		go func() {
			defer wg.Done()
			_ = sm.TransitionTo(ModePaused, "a")
			_ = sm.TransitionTo(ModeActive, "a")
		}()
	}
	wg.Wait()
}
