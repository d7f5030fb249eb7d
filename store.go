package authstate

import (
	"context"
	"sync"
	"time"
)

// Store owns the authentication state of the process and keeps it
// consistent with the session provider. One Store is created at startup and
// injected into every consumer.
type Store struct {
	provider SessionProvider
	logger   Logger
	lp       LoggerProvider
	activity ActivitySink
	now      func() time.Time
	initCtx  context.Context

	mu       sync.Mutex
	state    AuthState
	settled  bool
	cycle    int
	inFlight int
	pending  *Session
	closed   bool
	changed  chan struct{}
	subs     map[int]func(AuthState)
	nextSub  int

	subscription Subscription
	initDone     chan struct{}
}

// StoreOption customizes store construction.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger Logger) StoreOption {
	return func(s *Store) {
		s.lp, s.logger = ResolveLogger("auth.store", nil, logger)
	}
}

// WithLoggerProvider resolves the store logger from provider.
func WithLoggerProvider(provider LoggerProvider) StoreOption {
	return func(s *Store) {
		s.lp, s.logger = ResolveLogger("auth.store", provider, s.logger)
	}
}

// WithActivitySink sets the ActivitySink used to publish state events.
func WithActivitySink(sink ActivitySink) StoreOption {
	return func(s *Store) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInitContext sets the context used by the initial session fetch.
func WithInitContext(ctx context.Context) StoreOption {
	return func(s *Store) {
		if ctx != nil {
			s.initCtx = ctx
		}
	}
}

// NewStore subscribes to the provider change stream and starts the initial
// session fetch. Both run concurrently and either may settle the state.
func NewStore(provider SessionProvider, opts ...StoreOption) *Store {
	s := &Store{
		provider: provider,
		activity: noopActivitySink{},
		now:      time.Now,
		initCtx:  context.Background(),
		state:    initialState(),
		changed:  make(chan struct{}),
		subs:     map[int]func(AuthState){},
		initDone: make(chan struct{}),
	}
	s.lp, s.logger = ResolveLogger("auth.store", nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.subscription = provider.OnSessionChange(s.handleSessionChange)

	go s.loadInitialSession()

	return s
}

// State returns a snapshot of the current state
func (s *Store) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// CurrentUser returns a copy of the authenticated user or nil
func (s *Store) CurrentUser() *User {
	return s.State().User
}

// IsAuthenticated reports whether a user is signed in
func (s *Store) IsAuthenticated() bool {
	return s.State().IsAuthenticated
}

// IsLoading reports whether a session check or sign in/out is in flight
func (s *Store) IsLoading() bool {
	return s.State().Loading
}

// LastError returns the message of the most recent failure, empty if none
func (s *Store) LastError() string {
	return s.State().Error
}

// SignIn validates the credentials and asks the provider to sign in. The
// loading flag is raised before the provider is called. On success the
// authenticated state is applied by the session change event, not here.
func (s *Store) SignIn(ctx context.Context, creds Credentials) error {
	creds = creds.Normalize()

	cycle, err := s.begin(ReasonSignIn, true)
	if err != nil {
		return err
	}

	if err := creds.Validate(); err != nil {
		richErr := wrapStoreError(ErrInvalidCredentials, "sign_in", err)
		s.fail(cycle, ReasonSignInFailure, richErr.Message)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSignInFailure,
			Email:     creds.Email,
			Metadata:  map[string]any{"error": richErr.Message, "stage": "validation"},
		})
		return richErr
	}

	session, err := s.provider.SignInWithPassword(ctx, creds.Email, creds.Password)
	if err != nil {
		richErr := wrapStoreError(ErrSignIn, "sign_in", err)
		s.logger.Error("sign in failed", "email", creds.Email, "error", err)
		s.fail(cycle, ReasonSignInFailure, richErr.Message)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSignInFailure,
			Email:     creds.Email,
			Metadata:  map[string]any{"error": richErr.Message},
		})
		return richErr
	}
	s.finish()

	event := ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		Email:     creds.Email,
	}
	if session.Valid() {
		event.UserID = session.User.ID
	}
	s.recordActivity(ctx, event)

	return nil
}

// SignOut asks the provider to end the session. On success the
// unauthenticated state is applied by the session change event.
func (s *Store) SignOut(ctx context.Context) error {
	user := s.CurrentUser()

	cycle, err := s.begin(ReasonSignOut, false)
	if err != nil {
		return err
	}

	if err := s.provider.SignOut(ctx); err != nil {
		richErr := wrapStoreError(ErrSignOut, "sign_out", err)
		s.logger.Error("sign out failed", "error", err)
		s.fail(cycle, ReasonSignOutFailure, richErr.Message)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSignOutFailure,
			Metadata:  map[string]any{"error": richErr.Message},
		})
		return richErr
	}
	s.finish()

	event := ActivityEvent{EventType: ActivityEventSignOutSuccess}
	if user != nil {
		event.UserID = user.ID
		event.Email = user.Email
	}
	s.recordActivity(ctx, event)

	return nil
}

// ClearError clears the error message and nothing else. It does not notify
// when there is no error.
func (s *Store) ClearError() {
	s.mu.Lock()
	if s.state.Error == "" {
		s.mu.Unlock()
		return
	}
	next := s.state
	next.Error = ""
	notify := s.replaceLocked(next, ReasonClearError)
	s.mu.Unlock()

	notify()
}

// WaitSettled blocks until loading is false and returns that snapshot. It
// has no timeout of its own; ctx bounds the wait.
func (s *Store) WaitSettled(ctx context.Context) (AuthState, error) {
	for {
		s.mu.Lock()
		state := s.state.clone()
		changed := s.changed
		s.mu.Unlock()

		if !state.Loading {
			return state, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Subscribe registers fn to receive every new snapshot. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(AuthState)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Initialized is closed once the initial session fetch returned, whatever
// its outcome and whether or not it was applied.
func (s *Store) Initialized() <-chan struct{} {
	return s.initDone
}

// Close detaches the store from the provider. Later commands fail with
// ErrStoreClosed, reads keep returning the last snapshot.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.subscription
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (s *Store) handleSessionChange(event SessionEvent, session *Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	// A restored session only counts until something else settled the
	// state, and waits while a sign in/out is in flight.
	if event == EventInitialSession && !s.acceptInitialLocked(session) {
		s.mu.Unlock()
		s.logger.Debug("initial session event deferred or ignored")
		return
	}

	s.settled = true
	s.pending = nil
	tr, notify := s.settleLocked(session, ReasonSessionChange)
	s.mu.Unlock()

	s.logger.Debug("session change", "event", event, "from", tr.From, "to", tr.To)
	notify()

	s.recordActivity(s.initCtx, s.settledEvent(tr, session, map[string]any{
		"event": string(event),
	}))
}

func (s *Store) loadInitialSession() {
	defer close(s.initDone)

	session, err := s.provider.GetCurrentSession(s.initCtx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if s.settled || (err != nil && s.inFlight > 0) {
		s.mu.Unlock()
		if err != nil {
			s.logger.Warn("initial session fetch failed after settlement", "error", err)
			return
		}
		s.logger.Debug("initial session ignored, state already settled")
		return
	}

	if err == nil && !s.acceptInitialLocked(session) {
		s.mu.Unlock()
		s.logger.Debug("initial session deferred until sign in/out completes")
		return
	}
	s.settled = true
	s.pending = nil

	if err != nil {
		richErr := wrapStoreError(ErrInitialization, "get_current_session", err)
		from := s.state.Phase()
		next := AuthState{Error: richErr.Message}
		notify := s.replaceLocked(next, ReasonInitFailure)
		s.mu.Unlock()

		s.logger.Error("initial session fetch failed", "error", err)
		notify()

		s.recordActivity(s.initCtx, ActivityEvent{
			EventType: ActivityEventInitFailure,
			FromPhase: from,
			ToPhase:   next.Phase(),
			Metadata:  map[string]any{"error": richErr.Message},
		})
		return
	}

	tr, notify := s.settleLocked(session, ReasonInitialSession)
	s.mu.Unlock()

	notify()

	s.recordActivity(s.initCtx, s.settledEvent(tr, session, map[string]any{
		"source": string(ReasonInitialSession),
	}))
}

// acceptInitialLocked reports whether a restored session may settle the
// state now. While a sign in/out is in flight a valid session is kept
// aside and applied if that call fails.
func (s *Store) acceptInitialLocked(session *Session) bool {
	if s.settled {
		return false
	}
	if s.inFlight > 0 {
		if session.Valid() {
			s.pending = session.Clone()
		}
		return false
	}
	return true
}

// begin raises the loading flag and opens a new settlement cycle. The
// returned cycle identifies the call in fail.
func (s *Store) begin(reason TransitionReason, clearError bool) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrStoreClosed
	}
	s.cycle++
	s.inFlight++
	cycle := s.cycle
	next := s.state
	next.Loading = true
	if clearError {
		next.Error = ""
	}
	notify := s.replaceLocked(next, reason)
	s.mu.Unlock()

	notify()
	return cycle, nil
}

// finish closes a sign in/out call whose outcome arrives as a change event.
func (s *Store) finish() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
}

// fail ends the loading pulse of cycle without touching the user. A failure
// from a call that a newer one superseded leaves the state alone. If the
// initial fetch restored a session meanwhile, it is applied now.
func (s *Store) fail(cycle int, reason TransitionReason, msg string) {
	s.mu.Lock()
	s.inFlight--
	current := cycle == s.cycle

	var restored *Session
	if !s.settled && s.inFlight == 0 && s.pending != nil {
		restored = s.pending
		s.pending = nil
		s.settled = true
	}

	if !current && restored == nil {
		s.mu.Unlock()
		s.logger.Debug("superseded call failed, state left to the newer call", "reason", reason)
		return
	}

	var (
		tr     Transition
		notify func()
	)
	if restored != nil {
		from := s.state.Phase()
		next := settledState(restored)
		next.Error = s.state.Error
		if current {
			next.Error = msg
		}
		notify = s.replaceLocked(next, ReasonInitialSession)
		tr = Transition{From: from, To: next.Phase(), Reason: ReasonInitialSession}
	} else {
		next := s.state
		next.Loading = false
		next.Error = msg
		notify = s.replaceLocked(next, reason)
	}
	s.mu.Unlock()

	notify()

	if restored != nil {
		s.recordActivity(s.initCtx, s.settledEvent(tr, restored, map[string]any{
			"source": string(ReasonInitialSession),
		}))
	}
}

func (s *Store) settleLocked(session *Session, reason TransitionReason) (Transition, func()) {
	from := s.state.Phase()
	next := settledState(session)
	notify := s.replaceLocked(next, reason)
	return Transition{From: from, To: next.Phase(), Reason: reason}, notify
}

// replaceLocked swaps the whole state and wakes waiters. It returns the
// subscriber fan out, to be called once the lock is released.
func (s *Store) replaceLocked(next AuthState, reason TransitionReason) func() {
	next.IsAuthenticated = next.User != nil
	prev := s.state
	s.state = next

	close(s.changed)
	s.changed = make(chan struct{})

	if prev.Phase() != next.Phase() {
		s.logger.Debug("auth state transition", "from", prev.Phase(), "to", next.Phase(), "reason", reason)
	}

	if len(s.subs) == 0 {
		return func() {}
	}

	subs := make([]func(AuthState), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	snapshot := next.clone()

	return func() {
		for _, fn := range subs {
			fn(snapshot.clone())
		}
	}
}

func (s *Store) settledEvent(tr Transition, session *Session, meta map[string]any) ActivityEvent {
	event := ActivityEvent{
		EventType: ActivityEventSessionReceived,
		FromPhase: tr.From,
		ToPhase:   tr.To,
		Metadata:  meta,
	}
	if tr.Settles() {
		event.EventType = ActivityEventSettled
	}
	if session.Valid() {
		event.UserID = session.User.ID
		event.Email = session.User.Email
	}
	return event
}

func (s *Store) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sink := normalizeActivitySink(s.activity)
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error", "error", err)
	}
}
