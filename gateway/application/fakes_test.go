package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"query-gateway/gateway/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type storedValue struct {
	val       []byte
	expiresAt time.Time
}

// fakeStore conta leituras/escritas e respeita TTL pelo relógio fake.
type fakeStore struct {
	mu      sync.Mutex
	clock   *fakeClock
	data    map[string]storedValue
	gets    int
	sets    int
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func newFakeStore(clock *fakeClock) *fakeStore {
	return &fakeStore{clock: clock, data: map[string]storedValue{}}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	if !ok || !s.clock.Now().Before(v.expiresAt) {
		return nil, false, nil
	}
	return v.val, true, nil
}

func (s *fakeStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.lastTTL = ttl
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = storedValue{val: val, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *fakeStore) counts() (gets, sets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.sets
}

type fakeBackend struct {
	calls   atomic.Int32
	status  int
	body    []byte
	err     error
	block   chan struct{}
	lastURL atomic.Value
	payload atomic.Value
}

func (b *fakeBackend) Call(ctx context.Context, url string, payload []byte) (int, []byte, error) {
	b.calls.Add(1)
	b.lastURL.Store(url)
	b.payload.Store(string(payload))
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return 0, nil, domain.Unavailable(ctx.Err())
		}
	}
	if b.err != nil {
		return 0, nil, b.err
	}
	if b.status < 200 || b.status > 299 {
		return 0, nil, &domain.BackendError{Status: b.status, Body: b.body}
	}
	return b.status, b.body, nil
}

var errStoreDown = errors.New("store down")
