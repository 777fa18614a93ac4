package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"servio/marketplace-core/internal/apperr"
	"servio/marketplace-core/internal/feed"
	"servio/marketplace-core/internal/models"
	"servio/marketplace-core/internal/queue"
)

// fakeStore is the in-memory backing state shared by the fake repositories.
// The adapters below mirror the typed errors, compare-and-set semantics and
// feed publishing of the Postgres implementations; with broker left nil no
// events are emitted.
type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	byPair        map[[2]string]string
	messages      map[string][]*models.Message
	hires         map[string]*models.Hire
	reviews       map[string]*models.Review // keyed by hire id
	profiles      map[string]*models.Profile
	base          time.Time
	seq           int

	broker feed.Broker
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]*models.Conversation),
		byPair:        make(map[[2]string]string),
		messages:      make(map[string][]*models.Message),
		hires:         make(map[string]*models.Hire),
		reviews:       make(map[string]*models.Review),
		profiles:      make(map[string]*models.Profile),
		base:          time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// nowLocked hands out strictly increasing timestamps, standing in for the
// server-assigned clock.
func (s *fakeStore) nowLocked() time.Time {
	s.seq++
	return s.base.Add(time.Duration(s.seq) * time.Millisecond)
}

func (s *fakeStore) addProfile(id, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = &models.Profile{ID: id, Role: role, Verified: true}
}

func (s *fakeStore) setHireStatus(id string, status models.HireStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hires[id].Status = status
}

func (s *fakeStore) setVerified(id string, verified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id].Verified = verified
}

func (s *fakeStore) publish(collection, op string, record any) {
	if s.broker == nil {
		return
	}
	if ev, err := feed.NewEvent(collection, op, record); err == nil {
		_ = s.broker.Publish(context.Background(), ev)
	}
}

type fakeConversationRepo struct{ s *fakeStore }

func (r fakeConversationRepo) Resolve(_ context.Context, userA, userB string) (*models.Conversation, error) {
	low, high := models.CanonicalPair(userA, userB)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if id, ok := r.s.byPair[[2]string{low, high}]; ok {
		return r.s.conversations[id], nil
	}
	conv := &models.Conversation{
		ID:             uuid.New().String(),
		Participant1ID: low,
		Participant2ID: high,
		LastMessageAt:  r.s.nowLocked(),
		CreatedAt:      r.s.base,
	}
	r.s.conversations[conv.ID] = conv
	r.s.byPair[[2]string{low, high}] = conv.ID
	return conv, nil
}

func (r fakeConversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.conversations[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "conversation %s not found", id)
	}
	return conv, nil
}

func (r fakeConversationRepo) ListForUser(_ context.Context, userID string) ([]*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Conversation
	for _, conv := range r.s.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

type fakeMessageRepo struct{ s *fakeStore }

func (r fakeMessageRepo) Append(_ context.Context, msg *models.Message, recipientID string) error {
	r.s.mu.Lock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = r.s.nowLocked()
	r.s.messages[msg.ConversationID] = append(r.s.messages[msg.ConversationID], msg)
	r.s.conversations[msg.ConversationID].LastMessageAt = msg.CreatedAt
	r.s.mu.Unlock()

	r.s.publish(feed.CollectionMessages, feed.OpInsert, feed.MessageState{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientID:    recipientID,
	})
	return nil
}

func (r fakeMessageRepo) List(_ context.Context, conversationID string, limit int, beforeMessageID string) ([]*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msgs := r.s.messages[conversationID]
	if beforeMessageID != "" {
		for i, m := range msgs {
			if m.ID == beforeMessageID {
				msgs = msgs[:i]
				break
			}
		}
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (r fakeMessageRepo) MarkConversationRead(_ context.Context, conversationID, readerID string) (int, error) {
	r.s.mu.Lock()
	var flipped []*models.Message
	for _, m := range r.s.messages[conversationID] {
		if m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			flipped = append(flipped, m)
		}
	}
	r.s.mu.Unlock()

	r.publishRead(flipped, readerID)
	return len(flipped), nil
}

func (r fakeMessageRepo) MarkAllRead(_ context.Context, readerID string) (int, error) {
	r.s.mu.Lock()
	var flipped []*models.Message
	for convID, msgs := range r.s.messages {
		if !r.s.conversations[convID].HasParticipant(readerID) {
			continue
		}
		for _, m := range msgs {
			if m.SenderID != readerID && !m.IsRead {
				m.IsRead = true
				flipped = append(flipped, m)
			}
		}
	}
	r.s.mu.Unlock()

	r.publishRead(flipped, readerID)
	return len(flipped), nil
}

func (r fakeMessageRepo) publishRead(flipped []*models.Message, readerID string) {
	for _, m := range flipped {
		r.s.publish(feed.CollectionMessages, feed.OpUpdate, feed.MessageState{
			ID:          m.ID,
			SenderID:    m.SenderID,
			RecipientID: readerID,
			IsRead:      true,
		})
	}
}

func (r fakeMessageRepo) ListUnreadIDs(_ context.Context, userID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for convID, msgs := range r.s.messages {
		if !r.s.conversations[convID].HasParticipant(userID) {
			continue
		}
		for _, m := range msgs {
			if m.SenderID != userID && !m.IsRead {
				ids = append(ids, m.ID)
			}
		}
	}
	return ids, nil
}

type fakeHireRepo struct{ s *fakeStore }

func (r fakeHireRepo) Create(_ context.Context, hire *models.Hire) error {
	r.s.mu.Lock()
	if hire.ID == "" {
		hire.ID = uuid.New().String()
	}
	hire.Status = models.HireStatusPending
	hire.CreatedAt = r.s.nowLocked()
	stored := *hire
	r.s.hires[hire.ID] = &stored
	r.s.mu.Unlock()

	r.publishState(feed.OpInsert, hire)
	return nil
}

func (r fakeHireRepo) GetByID(_ context.Context, id string) (*models.Hire, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	hire, ok := r.s.hires[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "hire %s not found", id)
	}
	copied := *hire
	return &copied, nil
}

func (r fakeHireRepo) Transition(_ context.Context, hireID string, from, to models.HireStatus) (*models.Hire, error) {
	r.s.mu.Lock()
	hire, ok := r.s.hires[hireID]
	if !ok {
		r.s.mu.Unlock()
		return nil, apperr.Newf(apperr.KindNotFound, "hire %s not found", hireID)
	}
	if hire.Status != from {
		status := hire.Status
		r.s.mu.Unlock()
		if status.Terminal() {
			return nil, apperr.Newf(apperr.KindInvalidTransition,
				"hire %s is %s and accepts no further transitions", hireID, status)
		}
		return nil, apperr.Newf(apperr.KindInvalidTransition,
			"hire %s is %s, cannot move %s -> %s", hireID, status, from, to)
	}
	hire.Status = to
	copied := *hire
	r.s.mu.Unlock()

	r.publishState(feed.OpUpdate, &copied)
	return &copied, nil
}

func (r fakeHireRepo) publishState(op string, hire *models.Hire) {
	r.s.publish(feed.CollectionHires, op, feed.HireState{
		ID:         hire.ID,
		ServiceID:  hire.ServiceID,
		ClientID:   hire.ClientID,
		ProviderID: hire.ProviderID,
		Status:     string(hire.Status),
	})
}

func (r fakeHireRepo) ListPendingIDs(_ context.Context, providerID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for _, hire := range r.s.hires {
		if hire.ProviderID == providerID && hire.Status == models.HireStatusPending {
			ids = append(ids, hire.ID)
		}
	}
	return ids, nil
}

type fakeReviewRepo struct{ s *fakeStore }

func (r fakeReviewRepo) Create(_ context.Context, review *models.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.reviews[review.HireID]; exists {
		return apperr.Newf(apperr.KindConflict, "hire %s already has a review", review.HireID)
	}
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	review.CreatedAt = r.s.nowLocked()
	r.s.reviews[review.HireID] = review
	return nil
}

func (r fakeReviewRepo) GetByHireID(_ context.Context, hireID string) (*models.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	review, ok := r.s.reviews[hireID]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "no review for hire %s", hireID)
	}
	return review, nil
}

func (r fakeReviewRepo) ListForService(_ context.Context, serviceID string) ([]*models.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Review
	for _, review := range r.s.reviews {
		if review.ServiceID == serviceID {
			out = append(out, review)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeProfileRepo struct{ s *fakeStore }

func (r fakeProfileRepo) GetByID(_ context.Context, id string) (*models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.profiles[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "profile %s not found", id)
	}
	return profile, nil
}

// fakeTasks implements queue.Client and queue.Server. With dispatch set,
// enqueued tasks run their registered handler synchronously.
type fakeTasks struct {
	mu       sync.Mutex
	handlers map[string]queue.Handler
	enqueued []queue.Task
	failErr  error
	dispatch bool
}

func newFakeTasks(dispatch bool) *fakeTasks {
	return &fakeTasks{handlers: make(map[string]queue.Handler), dispatch: dispatch}
}

func (q *fakeTasks) Register(taskType string, h queue.Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = h
}

func (q *fakeTasks) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (q *fakeTasks) Enqueue(ctx context.Context, task queue.Task) (string, error) {
	q.mu.Lock()
	if q.failErr != nil {
		err := q.failErr
		q.mu.Unlock()
		return "", err
	}
	q.enqueued = append(q.enqueued, task)
	h := q.handlers[task.Type]
	dispatch := q.dispatch
	q.mu.Unlock()

	if dispatch && h != nil {
		_ = h(ctx, task)
	}
	return uuid.New().String(), nil
}

func (q *fakeTasks) Close() error { return nil }

// testEnv wires the services over one shared fake store.
type testEnv struct {
	store         *fakeStore
	tasks         *fakeTasks
	conversations ConversationService
	hires         HireService
	reviews       ReviewService
}

func newTestEnv(t *testing.T, dispatchTasks bool) *testEnv {
	t.Helper()
	store := newFakeStore()
	tasks := newFakeTasks(dispatchTasks)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	conversations := NewConversationService(fakeConversationRepo{store}, fakeMessageRepo{store}, logger)
	hires := NewHireService(fakeHireRepo{store}, fakeProfileRepo{store}, conversations, tasks, logger)
	reviews := NewReviewService(fakeReviewRepo{store}, fakeHireRepo{store}, logger)
	RegisterSeedOpeningMessageTask(tasks, conversations, logger)

	return &testEnv{
		store:         store,
		tasks:         tasks,
		conversations: conversations,
		hires:         hires,
		reviews:       reviews,
	}
}
