package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/brandmatch/internal/common"
	"github.com/ledgerline/brandmatch/internal/model"
)

type mockQueue struct {
	pending    map[int64][]*model.FeedbackSubmission
	consumed   []int64
	pendingErr error
	consumeErr error
}

func (m *mockQueue) GetPendingFeedback(_ context.Context, brandID int64) (*model.FeedbackSubmission, int64, error) {
	if m.pendingErr != nil {
		return nil, 0, m.pendingErr
	}
	queue := m.pending[brandID]
	if len(queue) == 0 {
		return nil, 0, fmt.Errorf("%w: pending feedback for brand %d", common.ErrNotFound, brandID)
	}
	return queue[0], int64(len(m.consumed) + 1), nil
}

func (m *mockQueue) MarkFeedbackConsumed(_ context.Context, id int64) error {
	if m.consumeErr != nil {
		return m.consumeErr
	}
	m.consumed = append(m.consumed, id)
	for brandID, queue := range m.pending {
		if len(queue) > 0 {
			m.pending[brandID] = queue[1:]
			break
		}
	}
	return nil
}

func TestStoreSource_EmptyQueueMeansNoFeedback(t *testing.T) {
	source := NewStoreSource(&mockQueue{}, slog.Default())

	submission, err := source.Next(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Nil(t, submission)
}

func TestStoreSource_ConsumesOldestSubmission(t *testing.T) {
	queue := &mockQueue{
		pending: map[int64][]*model.FeedbackSubmission{
			1: {
				{BrandID: 1, ResultVersion: 1, Type: model.FeedbackReject, Text: "too broad"},
				{BrandID: 1, ResultVersion: 2, Type: model.FeedbackApprove},
			},
		},
	}
	source := NewStoreSource(queue, slog.Default())
	ctx := context.Background()

	first, err := source.Next(ctx, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, model.FeedbackReject, first.Type)
	assert.Len(t, queue.consumed, 1, "the submission is consumed when handed out")

	second, err := source.Next(ctx, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, model.FeedbackApprove, second.Type)

	third, err := source.Next(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, third, "a consumed submission is never replayed")
}

func TestStoreSource_VersionSkewStillDelivers(t *testing.T) {
	queue := &mockQueue{
		pending: map[int64][]*model.FeedbackSubmission{
			1: {{BrandID: 1, ResultVersion: 3, Type: model.FeedbackApprove}},
		},
	}
	source := NewStoreSource(queue, slog.Default())

	submission, err := source.Next(context.Background(), 1, 1)
	require.NoError(t, err)
	require.NotNil(t, submission)
	assert.Equal(t, 3, submission.ResultVersion)
}

func TestStoreSource_StorageErrorsPropagate(t *testing.T) {
	source := NewStoreSource(&mockQueue{pendingErr: errors.New("disk gone")}, slog.Default())
	_, err := source.Next(context.Background(), 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending feedback")

	queue := &mockQueue{
		pending: map[int64][]*model.FeedbackSubmission{
			1: {{BrandID: 1, ResultVersion: 1, Type: model.FeedbackApprove}},
		},
		consumeErr: errors.New("locked"),
	}
	source = NewStoreSource(queue, slog.Default())
	_, err = source.Next(context.Background(), 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consume")
}
