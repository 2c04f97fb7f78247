package state

import (
	"errors"
	"testing"
)

// MockState is a test double for the State interface.
// It helps us track which methods have been called.
type MockState struct {
	ID            string
	OnEnterCalled bool
	OnExitCalled  bool
}

func (m *MockState) OnEnter() {
	m.OnEnterCalled = true
}

func (m *MockState) OnExit() {
	m.OnExitCalled = true
}

func (m *MockState) GetID() string {
	return m.ID
}

// reset clears the call tracking flags.
func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
}

func TestStateMachine_InitialState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	sm := NewBaseStateMachine(initialState)

	if !initialState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the initial state")
	}

	if sm.GetCurrentState() != initialState {
		t.Error("GetCurrentState should return the initial state")
	}
}

func TestStateMachine_ChangeState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	nextState := &MockState{ID: "next"}

	sm := NewBaseStateMachine(initialState, nextState)
	initialState.reset() // Reset after initialization
	if err := sm.AddTransition("initial", "next", nil); err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	err := sm.ChangeState("next")
	if err != nil {
		t.Fatalf("ChangeState should not return an error, but got: %v", err)
	}

	if !initialState.OnExitCalled {
		t.Error("Expected OnExit to be called on the old state")
	}

	if !nextState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the new state")
	}

	if sm.GetCurrentState() != nextState {
		t.Error("GetCurrentState should return the new state")
	}
}

func TestStateMachine_UnregisteredTransition(t *testing.T) {
	a := &MockState{ID: "a"}
	b := &MockState{ID: "b"}
	sm := NewBaseStateMachine(a, b)

	err := sm.ChangeState("b")
	if !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("Expected ErrTransitionNotAllowed, got %v", err)
	}
	if b.OnEnterCalled {
		t.Error("OnEnter must not run for a rejected transition")
	}
	if err := sm.AddTransition("a", "missing", nil); err == nil {
		t.Error("AddTransition should reject unknown states")
	}
}

func TestStateMachine_ConditionBlocksTransition(t *testing.T) {
	a := &MockState{ID: "a"}
	b := &MockState{ID: "b"}
	sm := NewBaseStateMachine(a, b)
	open := false
	sm.AddTransition("a", "b", func() bool { return open })

	if err := sm.ChangeState("b"); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("Expected condition to block the transition, got %v", err)
	}
	open = true
	if err := sm.ChangeState("b"); err != nil {
		t.Fatalf("Expected transition once the condition holds, got %v", err)
	}
}

func TestSessionMachine(t *testing.T) {
	var entered []string
	sm := NewSessionMachine(
		&Phase{Enter: func() { entered = append(entered, Authorized) }},
		&Phase{Enter: func() { entered = append(entered, Active) }},
		nil,
	)

	if err := sm.ChangeState(Active); err == nil {
		t.Fatal("Connecting must not jump straight to Active")
	}
	for _, next := range []string{Authorized, Active, Closed} {
		if err := sm.ChangeState(next); err != nil {
			t.Fatalf("ChangeState(%s) failed: %v", next, err)
		}
	}
	if !sm.Is(Closed) {
		t.Fatalf("Expected closed, got %s", sm.GetCurrentState().GetID())
	}
	if err := sm.ChangeState(Active); err == nil {
		t.Error("Closed must be final")
	}
	if len(entered) != 2 || entered[0] != Authorized || entered[1] != Active {
		t.Errorf("Unexpected enter hooks: %v", entered)
	}
}
