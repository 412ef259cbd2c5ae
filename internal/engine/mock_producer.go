package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"
)

// MockProducer is a scriptable service.RuleProducer for tests. Replies are
// queued per brand and handed out in order; the final reply sticks once the
// queue drains, so a brand stuck in a refinement loop keeps receiving it.
// Every call is recorded with a copy of its guidance.
type MockProducer struct {
	// ProduceRuleFn overrides the scripted behavior entirely when set.
	ProduceRuleFn func(ctx context.Context, brand model.Brand, prior *model.Rule, guidance *service.RuleGuidance) (*model.Rule, error)

	queues map[int64][]ProducerReply
	calls  []ProducerCall
	mu     sync.Mutex
}

// ProducerReply is one scripted producer response.
type ProducerReply struct {
	Rule *model.Rule
	Err  error
}

// ProducerCall records the arguments of one ProduceRule invocation.
type ProducerCall struct {
	Prior    *model.Rule
	Guidance *service.RuleGuidance
	Brand    model.Brand
}

// NewMockProducer creates a new mock rule producer.
func NewMockProducer() *MockProducer {
	return &MockProducer{
		queues: make(map[int64][]ProducerReply),
	}
}

// Queue appends scripted replies for a brand.
func (m *MockProducer) Queue(brandID int64, replies ...ProducerReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[brandID] = append(m.queues[brandID], replies...)
}

// QueueRule is shorthand for queueing one well-formed candidate.
func (m *MockProducer) QueueRule(brandID int64, pattern string, categories ...int64) {
	m.Queue(brandID, ProducerReply{Rule: &model.Rule{
		BrandID:     brandID,
		Pattern:     pattern,
		CategorySet: categories,
		Confidence:  0.9,
	}})
}

// ProduceRule implements service.RuleProducer.
func (m *MockProducer) ProduceRule(ctx context.Context, brand model.Brand, prior *model.Rule, guidance *service.RuleGuidance) (*model.Rule, error) {
	m.mu.Lock()

	var guidanceCopy *service.RuleGuidance
	if guidance != nil {
		copied := *guidance
		guidanceCopy = &copied
	}
	m.calls = append(m.calls, ProducerCall{Brand: brand, Prior: prior, Guidance: guidanceCopy})

	fn := m.ProduceRuleFn
	if fn != nil {
		m.mu.Unlock()
		return fn(ctx, brand, prior, guidance)
	}

	queue := m.queues[brand.ID]
	if len(queue) == 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("no scripted reply for brand %d", brand.ID)
	}

	reply := queue[0]
	if len(queue) > 1 {
		m.queues[brand.ID] = queue[1:]
	}
	m.mu.Unlock()

	if reply.Err != nil {
		return nil, reply.Err
	}
	// Hand out a copy: the controller versions and activates what it accepts.
	rule := *reply.Rule
	return &rule, nil
}

// Calls returns a copy of every recorded call.
func (m *MockProducer) Calls() []ProducerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProducerCall{}, m.calls...)
}

// CallsFor counts the calls made for one brand.
func (m *MockProducer) CallsFor(brandID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, call := range m.calls {
		if call.Brand.ID == brandID {
			n++
		}
	}
	return n
}

// Reset clears recorded calls and scripted replies.
func (m *MockProducer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues = make(map[int64][]ProducerReply)
	m.calls = nil
}

var _ service.RuleProducer = (*MockProducer)(nil)
