package engine

import (
	"context"
	"sync"

	"github.com/ledgerline/brandmatch/internal/model"
	"github.com/ledgerline/brandmatch/internal/service"
)

// MockFeedbackSource is a scriptable service.FeedbackSource for tests.
// Submissions are keyed by brand id and result version; a key with nothing
// scripted means no feedback exists and the result stands.
type MockFeedbackSource struct {
	// NextFn overrides the scripted behavior entirely when set.
	NextFn func(ctx context.Context, brandID int64, resultVersion int) (*model.FeedbackSubmission, error)

	replies map[FeedbackCall]*model.FeedbackSubmission
	calls   []FeedbackCall
	mu      sync.Mutex
}

// FeedbackCall identifies one result a source was asked about.
type FeedbackCall struct {
	BrandID int64
	Version int
}

// NewMockFeedbackSource creates a new mock feedback source.
func NewMockFeedbackSource() *MockFeedbackSource {
	return &MockFeedbackSource{
		replies: make(map[FeedbackCall]*model.FeedbackSubmission),
	}
}

// Approve scripts an approval for the brand's result version.
func (m *MockFeedbackSource) Approve(brandID int64, version int) {
	m.script(brandID, version, &model.FeedbackSubmission{
		BrandID:       brandID,
		ResultVersion: version,
		Type:          model.FeedbackApprove,
	})
}

// Reject scripts a rejection with the given text for the brand's result
// version.
func (m *MockFeedbackSource) Reject(brandID int64, version int, text string, cited ...model.TransactionID) {
	m.script(brandID, version, &model.FeedbackSubmission{
		BrandID:       brandID,
		ResultVersion: version,
		Type:          model.FeedbackReject,
		Text:          text,
		CitedIDs:      cited,
	})
}

// Submit scripts an arbitrary submission for the brand's result version.
func (m *MockFeedbackSource) Submit(brandID int64, version int, submission *model.FeedbackSubmission) {
	m.script(brandID, version, submission)
}

func (m *MockFeedbackSource) script(brandID int64, version int, submission *model.FeedbackSubmission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[FeedbackCall{BrandID: brandID, Version: version}] = submission
}

// Next implements service.FeedbackSource.
func (m *MockFeedbackSource) Next(ctx context.Context, brandID int64, resultVersion int) (*model.FeedbackSubmission, error) {
	m.mu.Lock()
	key := FeedbackCall{BrandID: brandID, Version: resultVersion}
	m.calls = append(m.calls, key)
	fn := m.NextFn
	reply := m.replies[key]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, brandID, resultVersion)
	}
	return reply, nil
}

// Calls returns the (brand, version) pairs feedback was requested for.
func (m *MockFeedbackSource) Calls() []FeedbackCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FeedbackCall{}, m.calls...)
}

var _ service.FeedbackSource = (*MockFeedbackSource)(nil)
