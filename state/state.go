package state

import (
	"errors"
	"fmt"
	"sync"
)

// 状态机接口
type StateMachine interface {
	ChangeState(id string) error
	GetCurrentState() State
	AddTransition(from, to string, condition func() bool) error
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	GetID() string
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// 基础状态机实现，只允许登记过的转换
type BaseStateMachine struct {
	currentState State
	states       map[string]State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State, others ...State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		states:       make(map[string]State),
		transitions:  make(map[string]map[string]func() bool),
	}
	for _, s := range append([]State{initialState}, others...) {
		machine.states[s.GetID()] = s
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(id string) error {
	sm.mutex.Lock()

	currentID := sm.currentState.GetID()
	newState, known := sm.states[id]
	condition, allowed := sm.transitions[currentID][id]
	if !known || !allowed || (condition != nil && !condition()) {
		sm.mutex.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, currentID, id)
	}

	old := sm.currentState
	sm.currentState = newState
	sm.mutex.Unlock()

	old.OnExit()
	newState.OnEnter()
	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

// Is reports whether the machine is in state id.
func (sm *BaseStateMachine) Is(id string) bool {
	return sm.GetCurrentState().GetID() == id
}

func (sm *BaseStateMachine) AddTransition(from, to string, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, ok := sm.states[from]; !ok {
		return fmt.Errorf("unknown state %q", from)
	}
	if _, ok := sm.states[to]; !ok {
		return fmt.Errorf("unknown state %q", to)
	}
	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[string]func() bool)
	}

	sm.transitions[from][to] = condition
	return nil
}

// Phase 会话阶段，进入时执行可选的回调
type Phase struct {
	ID    string
	Enter func()
	Exit  func()
}

func (p *Phase) GetID() string { return p.ID }

func (p *Phase) OnEnter() {
	if p.Enter != nil {
		p.Enter()
	}
}

func (p *Phase) OnExit() {
	if p.Exit != nil {
		p.Exit()
	}
}

// Session lifecycle phases.
const (
	Connecting = "connecting"
	Authorized = "authorized"
	Active     = "active"
	Closed     = "closed"
)

// NewSessionMachine builds Connecting -> Authorized -> Active -> Closed.
// Closed is reachable from every other phase and is final.
func NewSessionMachine(authorized, active, closed *Phase) *BaseStateMachine {
	sm := NewBaseStateMachine(&Phase{ID: Connecting},
		named(authorized, Authorized),
		named(active, Active),
		named(closed, Closed),
	)
	sm.AddTransition(Connecting, Authorized, nil)
	sm.AddTransition(Authorized, Active, nil)
	for _, from := range []string{Connecting, Authorized, Active} {
		sm.AddTransition(from, Closed, nil)
	}
	return sm
}

func named(p *Phase, id string) *Phase {
	if p == nil {
		p = &Phase{}
	}
	p.ID = id
	return p
}
