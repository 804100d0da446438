package brain

import (
	"context"
	"sync"
)

// MockBrain is a scripted backend for tests. Replies, battle outputs and
// errors are dequeued in order; calls are recorded for inspection.
type MockBrain struct {
	mu      sync.Mutex
	kind    Kind
	replies []string
	battles []battleStep
	calls   []MockCall
}

type battleStep struct {
	out *BattleOutput
	err error
}

// MockCall records a single backend invocation.
type MockCall struct {
	Op       string // "chat", "battle" or "scenario"
	Params   Params
	Messages []ChatMessage
	Scenario string
	Log      []TurnEvent
}

// NewMockBrain creates a mock reporting the given kind.
func NewMockBrain(kind Kind) *MockBrain {
	return &MockBrain{kind: kind}
}

func (m *MockBrain) Kind() Kind { return m.kind }

func (m *MockBrain) DefaultParams() Params {
	return Params{Model: "mock", MaxTokens: 512, StripStageActions: true}
}

// QueueReply enqueues the raw text returned by the next Chat call.
func (m *MockBrain) QueueReply(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, text)
}

// QueueBattle enqueues the result of the next BattleTurn call.
func (m *MockBrain) QueueBattle(out *BattleOutput, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.battles = append(m.battles, battleStep{out: out, err: err})
}

// Calls returns a copy of the recorded invocations.
func (m *MockBrain) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockBrain) Chat(ctx context.Context, params Params, messages []ChatMessage) (*Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Op: "chat", Params: params, Messages: messages})
	if len(m.replies) == 0 {
		return nil, newBackendError(m.kind, 0, "mock: no reply queued", nil)
	}
	text := m.replies[0]
	m.replies = m.replies[1:]
	return &Reply{Content: Postprocess(text, params.StripStageActions)}, nil
}

func (m *MockBrain) BattleTurn(ctx context.Context, params Params, scenario string, characters []Character, log []TurnEvent) (*BattleOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Op: "battle", Params: params, Scenario: scenario, Log: log})
	if len(m.battles) == 0 {
		return nil, newBackendError(m.kind, 0, "mock: no battle output queued", nil)
	}
	step := m.battles[0]
	m.battles = m.battles[1:]
	return step.out, step.err
}

func (m *MockBrain) GenerateScenario(ctx context.Context, characters []Character) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Op: "scenario"})
	if len(m.replies) == 0 {
		return "", newBackendError(m.kind, 0, "mock: no reply queued", nil)
	}
	text := m.replies[0]
	m.replies = m.replies[1:]
	return text, nil
}
