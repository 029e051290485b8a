package memory

import (
	"context"
	"sync"

	"docpay/internal/domain/session"
)

// SessionStore is the in-memory live session map, keyed by reference
// with a secondary index on the provider transaction id.
type SessionStore struct {
	mu     sync.RWMutex
	byRef  map[string]*session.Session
	byTxID map[string]*session.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byRef:  make(map[string]*session.Session),
		byTxID: make(map[string]*session.Session),
	}
}

func (s *SessionStore) Put(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byRef[sess.Reference] = sess
	if sess.ProviderTransactionID != "" {
		s.byTxID[sess.ProviderTransactionID] = sess
	}
}

func (s *SessionStore) Get(reference string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byRef[reference]
	return sess, ok
}

func (s *SessionStore) GetByProviderTransactionID(providerTxID string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byTxID[providerTxID]
	return sess, ok
}

// DeliveryGuard is the single-process at-most-once guard. Deployments
// with more than one instance back it with the Redis guard instead.
type DeliveryGuard struct {
	mu       sync.Mutex
	acquired map[string]struct{}
}

func NewDeliveryGuard() *DeliveryGuard {
	return &DeliveryGuard{acquired: make(map[string]struct{})}
}

func (g *DeliveryGuard) Acquire(_ context.Context, reference string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, dup := g.acquired[reference]; dup {
		return false, nil
	}
	g.acquired[reference] = struct{}{}
	return true, nil
}
