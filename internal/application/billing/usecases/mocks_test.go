package usecases

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"fileharbor/internal/application/billing/providergateway"
	"fileharbor/internal/domain/payment"
	paymentvo "fileharbor/internal/domain/payment/valueobjects"
	"fileharbor/internal/domain/subscription"
)

// In-memory fakes shared by the use case tests. They intentionally mirror the
// store contracts closely enough to observe writes and force failures.

type fakeSubscriptionRepo struct {
	mu     sync.Mutex
	subs   map[uint]*subscription.Subscription
	nextID uint

	getErr    error
	updateErr error
	updates   int
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{subs: make(map[uint]*subscription.Subscription), nextID: 1}
}

func (r *fakeSubscriptionRepo) add(sub *subscription.Subscription) *subscription.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID() == 0 {
		_ = sub.SetID(r.nextID)
		r.nextID++
	}
	r.subs[sub.ID()] = sub
	return sub
}

func (r *fakeSubscriptionRepo) Create(ctx context.Context, sub *subscription.Subscription) error {
	r.add(sub)
	return nil
}

func (r *fakeSubscriptionRepo) GetByID(ctx context.Context, subID uint) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	sub, ok := r.subs[subID]
	if !ok {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (r *fakeSubscriptionRepo) GetBySID(ctx context.Context, sid string) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.SID() == sid {
			return sub, nil
		}
	}
	return nil, subscription.ErrSubscriptionNotFound
}

func (r *fakeSubscriptionRepo) GetCurrentByUserID(ctx context.Context, userID uint) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *subscription.Subscription
	for _, sub := range r.subs {
		if sub.UserID() != userID {
			continue
		}
		if latest == nil || sub.CreatedAt().After(latest.CreatedAt()) || sub.ID() > latest.ID() {
			latest = sub
		}
	}
	if latest == nil {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return latest, nil
}

func (r *fakeSubscriptionRepo) Update(ctx context.Context, sub *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updates++
	r.subs[sub.ID()] = sub
	return nil
}

func (r *fakeSubscriptionRepo) FindDueCancellations(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*subscription.Subscription
	for _, sub := range r.subs {
		if sub.CancelAtPeriodEnd() && sub.IsPeriodEnded(now) {
			due = append(due, sub)
		}
	}
	return due, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*subscription.SubscriptionHistory

	createErr error
}

func (r *fakeHistoryRepo) Create(ctx context.Context, history *subscription.SubscriptionHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.entries = append(r.entries, history)
	return nil
}

func (r *fakeHistoryRepo) GetBySubscriptionID(ctx context.Context, subscriptionID uint) ([]*subscription.SubscriptionHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*subscription.SubscriptionHistory
	for _, h := range r.entries {
		if h.SubscriptionID() == subscriptionID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments []*payment.Payment
	nextID   uint

	creates int
	updates int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{nextID: 1}
}

func (r *fakePaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.SetID(r.nextID)
	r.nextID++
	r.payments = append(r.payments, p)
	r.creates++
	return nil
}

func (r *fakePaymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	return nil
}

func (r *fakePaymentRepo) GetByID(ctx context.Context, paymentID uint) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ID() == paymentID {
			return p, nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (r *fakePaymentRepo) GetBySubscriptionAndReference(ctx context.Context, subscriptionID uint, providerReference string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.SubscriptionID() == subscriptionID && p.ProviderReference() == providerReference {
			return p, nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (r *fakePaymentRepo) GetBySubscriptionID(ctx context.Context, subscriptionID uint) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.SubscriptionID() == subscriptionID {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeTxRunner runs the function directly; transactional scoping is covered
// by the repository integration tests. The before hook simulates a concurrent
// writer landing between an outside-tx read and the transaction start.
type fakeTxRunner struct {
	txCount int
	before  func()
	err     error
}

func (r *fakeTxRunner) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.run(ctx, fn)
}

func (r *fakeTxRunner) RunInRepeatableRead(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.run(ctx, fn)
}

func (r *fakeTxRunner) run(ctx context.Context, fn func(ctx context.Context) error) error {
	r.txCount++
	if r.err != nil {
		return r.err
	}
	if r.before != nil {
		r.before()
	}
	return fn(ctx)
}

type fakeLock struct {
	mu       *sync.Mutex
	key      string
	acquires *int
	denied   bool
	held     bool
}

func (l *fakeLock) Acquire(ctx context.Context, timeout time.Duration) bool {
	if l.denied {
		return false
	}
	l.mu.Lock()
	l.held = true
	if l.acquires != nil {
		*l.acquires++
	}
	return true
}

func (l *fakeLock) Release(ctx context.Context) bool {
	if !l.held {
		return false
	}
	l.held = false
	l.mu.Unlock()
	return true
}

func (l *fakeLock) Extend(ctx context.Context, ttl time.Duration) bool { return l.held }
func (l *fakeLock) Key() string                                       { return l.key }

type fakeLockManager struct {
	mu       sync.Mutex
	locks    map[uint]*sync.Mutex
	denied   bool
	acquires int
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{locks: make(map[uint]*sync.Mutex)}
}

func (m *fakeLockManager) SubscriptionLock(subscriptionID uint) DistributedLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	inner, ok := m.locks[subscriptionID]
	if !ok {
		inner = &sync.Mutex{}
		m.locks[subscriptionID] = inner
	}
	return &fakeLock{mu: inner, key: "lock:subscription:test", acquires: &m.acquires, denied: m.denied}
}

// fakeIdempotencyStore caches successful results by key, like the Redis-backed
// implementation but in process memory.
type fakeIdempotencyStore struct {
	mu      sync.Mutex
	results map[string][]byte
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{results: make(map[string][]byte)}
}

func (s *fakeIdempotencyStore) WithIdempotency(ctx context.Context, key string, ttl time.Duration, op func(ctx context.Context) ([]byte, error)) (*IdempotentResult, error) {
	s.mu.Lock()
	if cached, ok := s.results[key]; ok {
		s.mu.Unlock()
		return &IdempotentResult{IsNew: false, FromCache: true, Result: cached}, nil
	}
	s.mu.Unlock()

	result, err := op(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.results[key] = result
	s.mu.Unlock()
	return &IdempotentResult{IsNew: true, FromCache: false, Result: result}, nil
}

func seedPendingPayment(t testing.TB, repo *fakePaymentRepo, sub *subscription.Subscription, reference string) *payment.Payment {
	t.Helper()
	p, err := payment.NewPayment(sub.ID(), sub.UserID(), paymentvo.NewMoney(1999, "USD"), reference, "seeded charge")
	if err != nil {
		t.Fatalf("failed to seed payment: %v", err)
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("failed to store seeded payment: %v", err)
	}
	return p
}

type fakeAuditLogger struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *fakeAuditLogger) Record(ctx context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

type fakeGateway struct {
	mu         sync.Mutex
	calls      int
	fail       bool
	externalID string
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, req providergateway.CreateSubscriptionRequest) (*providergateway.CreateSubscriptionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail {
		return nil, errors.New("provider unavailable")
	}
	externalID := g.externalID
	if externalID == "" {
		externalID = "EXT_SUB_1"
	}
	return &providergateway.CreateSubscriptionResponse{ProviderSubscriptionID: externalID}, nil
}

func (g *fakeGateway) VerifyNotification(req *http.Request) (*providergateway.NotificationData, error) {
	return nil, errors.New("not implemented")
}
