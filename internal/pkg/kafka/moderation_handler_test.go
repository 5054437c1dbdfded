package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
)

type fakeScheduler struct {
	mu       sync.Mutex
	calls    []string
	failures int32
}

func (f *fakeScheduler) ResumeModeration(_ context.Context, postID string) error {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return errors.New("moderation queue full")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, postID)
	return nil
}

type fakeSession struct {
	ctx     context.Context
	mu      sync.Mutex
	marked  []int64
	commits int
}

func (s *fakeSession) Claims() map[string][]int32                        { return nil }
func (s *fakeSession) MemberID() string                                  { return "m" }
func (s *fakeSession) GenerationID() int32                               { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)           {}
func (s *fakeSession) ResetOffset(string, int32, int64, string)          {}
func (s *fakeSession) Context() context.Context                          { return s.ctx }
func (s *fakeSession) Commit()                                           { s.mu.Lock(); s.commits++; s.mu.Unlock() }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func requestMessage(t *testing.T, offset int64, postID string) *sarama.ConsumerMessage {
	raw, err := json.Marshal(ModerationRequest{PostID: postID})
	assert.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "post.moderation.requested", Offset: offset, Value: raw}
}

func TestModerationHandlerRetriesUntilScheduled(t *testing.T) {
	sched := &fakeScheduler{failures: 2}
	h := NewModerationRequestsHandler(sched)
	session := &fakeSession{ctx: context.Background()}

	processBatch(session, []*sarama.ConsumerMessage{
		requestMessage(t, 10, "p-1"),
		requestMessage(t, 11, "p-2"),
	}, h.handle)

	assert.ElementsMatch(t, []string{"p-1", "p-2"}, sched.calls)
	assert.Equal(t, []int64{11}, session.marked)
	assert.Equal(t, 1, session.commits)
}

func TestModerationHandlerDropsMalformed(t *testing.T) {
	sched := &fakeScheduler{}
	h := NewModerationRequestsHandler(sched)

	err := h.handle(context.Background(), &sarama.ConsumerMessage{Value: []byte("{not json")})
	assert.NoError(t, err)
	err = h.handle(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"post_id":""}`)})
	assert.NoError(t, err)
	assert.Empty(t, sched.calls)
}

func TestProcessBatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	session := &fakeSession{ctx: ctx}
	cancel()

	processBatch(session, []*sarama.ConsumerMessage{{Offset: 1}}, func(context.Context, *sarama.ConsumerMessage) error {
		return errors.New("always failing")
	})
	assert.Empty(t, session.marked)
}
