// Package memory is an in-process backend whose sessions are driven by code.
// Tests use it to script what the native layer reports.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/genricoloni/nowplaying/internal/domain"
)

var (
	_ domain.Backend         = (*Backend)(nil)
	_ domain.SessionNotifier = (*Backend)(nil)
	_ domain.Session         = (*Session)(nil)
	_ domain.Subscriber      = (*PushSession)(nil)
	_ domain.Revocable       = (*subscription)(nil)
)

// Backend serves whatever session was last installed with SetSession
type Backend struct {
	mu        sync.Mutex
	session   domain.Session
	err       error
	resolves  int
	listeners *listeners
}

// New creates a backend with no active session
func New() *Backend {
	return &Backend{listeners: newListeners()}
}

// Name implements domain.Backend
func (b *Backend) Name() string {
	return "memory"
}

// SetSession installs s as the active session and signals session listeners.
// A nil session makes ActiveSession fail with ErrNoActiveSession.
func (b *Backend) SetSession(s domain.Session) {
	b.mu.Lock()
	b.session = s
	b.mu.Unlock()
	b.listeners.emit()
}

// SetError makes ActiveSession fail with err until cleared with nil
func (b *Backend) SetError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

// Resolves counts ActiveSession calls
func (b *Backend) Resolves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolves
}

// SessionListeners reports how many session-change registrations are live
func (b *Backend) SessionListeners() int {
	return b.listeners.count()
}

// ActiveSession implements domain.Backend
func (b *Backend) ActiveSession(ctx context.Context) (domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolves++
	if b.err != nil {
		return nil, b.err
	}
	if b.session == nil {
		return nil, domain.ErrNoActiveSession
	}
	return b.session, nil
}

// RevokeSessionListeners ends every session-change registration, as a
// dropped bus connection would
func (b *Backend) RevokeSessionListeners() {
	b.listeners.revoke()
}

// NotifySessionChanges implements domain.SessionNotifier
func (b *Backend) NotifySessionChanges(notify func()) (domain.Subscription, error) {
	return b.listeners.add(notify), nil
}

// Step is one scripted answer to Session.Properties
type Step struct {
	Bag *Bag
	Err error
}

// Session is a poll-based session. Properties answers follow the script
// and the last step repeats once the script is exhausted.
type Session struct {
	id string

	mu          sync.Mutex
	script      []Step
	calls       int
	status      domain.RawStatus
	statusErr   error
	timeline    *Timeline
	timelineErr error
}

// NewSession creates a poll-based session reporting bag
func NewSession(id string, bag *Bag) *Session {
	return &Session{id: id, script: []Step{{Bag: bag}}}
}

// ID implements domain.Session
func (s *Session) ID() string {
	return s.id
}

// Script replaces the Properties answers
func (s *Session) Script(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = steps
	s.calls = 0
}

// SetBag makes every following Properties call return bag
func (s *Session) SetBag(bag *Bag) {
	s.Script(Step{Bag: bag})
}

// SetStatus sets the raw playback status and its error
func (s *Session) SetStatus(raw domain.RawStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.statusErr = raw, err
}

// SetTimeline sets the raw timeline sample and its error
func (s *Session) SetTimeline(tl *Timeline, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline, s.timelineErr = tl, err
}

// PropertyCalls counts Properties calls since the last Script
func (s *Session) PropertyCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Properties implements domain.Session
func (s *Session) Properties(ctx context.Context) (domain.PropertyBag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return nil, fmt.Errorf("session %s has no properties", s.id)
	}
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	step := s.script[i]
	if step.Err != nil {
		return nil, step.Err
	}
	if step.Bag == nil {
		return nil, nil
	}
	return step.Bag, nil
}

// PlaybackStatus implements domain.Session
func (s *Session) PlaybackStatus(ctx context.Context) (domain.RawStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusErr
}

// Timeline implements domain.Session
func (s *Session) Timeline(ctx context.Context) (domain.RawTimeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timelineErr != nil {
		return nil, s.timelineErr
	}
	if s.timeline == nil {
		return nil, domain.ErrFieldUnsupported
	}
	return s.timeline, nil
}

// PushSession is a Session that notifies subscribers when Emit is called
type PushSession struct {
	*Session
	subscribeErr error
	subscribers  *listeners
}

// NewPushSession creates a push-based session reporting bag
func NewPushSession(id string, bag *Bag) *PushSession {
	return &PushSession{Session: NewSession(id, bag), subscribers: newListeners()}
}

// FailSubscribe makes Subscribe fail with err
func (s *PushSession) FailSubscribe(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribeErr = err
}

// Subscribe implements domain.Subscriber
func (s *PushSession) Subscribe(notify func()) (domain.Subscription, error) {
	s.mu.Lock()
	err := s.subscribeErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.subscribers.add(notify), nil
}

// Emit invokes every subscriber, as a native property-change event would
func (s *PushSession) Emit() {
	s.subscribers.emit()
}

// Revoke ends every subscription, as a native event source going away would
func (s *PushSession) Revoke() {
	s.subscribers.revoke()
}

// Subscriptions reports how many subscriptions are live
func (s *PushSession) Subscriptions() int {
	return s.subscribers.count()
}

type listeners struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscription
}

func newListeners() *listeners {
	return &listeners{subs: make(map[int]*subscription)}
}

func (l *listeners) add(fn func()) *subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	sub := &subscription{owner: l, token: l.next, fn: fn, lost: make(chan struct{})}
	l.subs[l.next] = sub
	return sub
}

func (l *listeners) remove(token int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs, token)
}

func (l *listeners) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

func (l *listeners) emit() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.subs))
	for _, sub := range l.subs {
		fns = append(fns, sub.fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// revoke drops every registration and signals each as lost
func (l *listeners) revoke() {
	l.mu.Lock()
	subs := l.subs
	l.subs = make(map[int]*subscription)
	l.mu.Unlock()
	for _, sub := range subs {
		close(sub.lost)
	}
}

type subscription struct {
	owner *listeners
	token int
	fn    func()
	lost  chan struct{}
	once  sync.Once
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() { s.owner.remove(s.token) })
	return nil
}

func (s *subscription) Lost() <-chan struct{} {
	return s.lost
}
