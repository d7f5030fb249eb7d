package authstate

// Phase is the coarse state of the store as seen by the guard
type Phase string

const (
	// PhaseUnsettled means a session check or a sign in/out call is in flight
	PhaseUnsettled Phase = "unsettled"
	// PhaseAuthenticated means the store holds a user
	PhaseAuthenticated Phase = "authenticated"
	// PhaseUnauthenticated means the store settled without a user
	PhaseUnauthenticated Phase = "unauthenticated"
)

// AuthState is an immutable snapshot of the authentication state.
// IsAuthenticated is true iff User is not nil.
type AuthState struct {
	User            *User  `json:"user"`
	IsAuthenticated bool   `json:"is_authenticated"`
	Loading         bool   `json:"loading"`
	Error           string `json:"error,omitempty"`
}

// initialState is the state of a freshly constructed store
func initialState() AuthState {
	return AuthState{Loading: true}
}

// Phase derives the state machine phase from the snapshot
func (s AuthState) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseUnsettled
	case s.IsAuthenticated:
		return PhaseAuthenticated
	default:
		return PhaseUnauthenticated
	}
}

// HasError reports whether the last operation left an error message
func (s AuthState) HasError() bool {
	return s.Error != ""
}

func (s AuthState) clone() AuthState {
	s.User = s.User.Clone()
	return s
}

// settledState builds the replacement applied by every settlement: user
// and authentication flag from the session, loading off, error cleared.
func settledState(session *Session) AuthState {
	if !session.Valid() {
		return AuthState{}
	}
	return AuthState{
		User:            session.User.Clone(),
		IsAuthenticated: true,
	}
}

// Transition describes one atomic replacement of the state
type Transition struct {
	From   Phase
	To     Phase
	Reason TransitionReason
}

// TransitionReason names the store handler that replaced the state
type TransitionReason string

const (
	ReasonSessionChange  TransitionReason = "session_change"
	ReasonInitialSession TransitionReason = "initial_session"
	ReasonInitFailure    TransitionReason = "initial_session_failure"
	ReasonSignIn         TransitionReason = "sign_in"
	ReasonSignInFailure  TransitionReason = "sign_in_failure"
	ReasonSignOut        TransitionReason = "sign_out"
	ReasonSignOutFailure TransitionReason = "sign_out_failure"
	ReasonClearError     TransitionReason = "clear_error"
)

// Settles reports whether the transition ends a loading pulse
func (t Transition) Settles() bool {
	return t.From == PhaseUnsettled && t.To != PhaseUnsettled
}
