package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/invoicegate/core"
	"github.com/layer-3/invoicegate/ports"
	"go.uber.org/zap"
)

const (
	// InactivityTimeout ends a session without user interaction
	InactivityTimeout = 30 * time.Minute

	// CheckInterval is the cadence of the background session check
	CheckInterval = 60 * time.Second
)

// ActivityKind is a user interaction that keeps the session alive
type ActivityKind string

const (
	ActivityPointerDown ActivityKind = "pointerdown"
	ActivityPointerMove ActivityKind = "pointermove"
	ActivityKeyPress    ActivityKind = "keypress"
	ActivityScroll      ActivityKind = "scroll"
	ActivityTouchStart  ActivityKind = "touchstart"
	ActivityClick       ActivityKind = "click"
)

// Valid reports whether k is a recognised interaction
func (k ActivityKind) Valid() bool {
	switch k {
	case ActivityPointerDown, ActivityPointerMove, ActivityKeyPress,
		ActivityScroll, ActivityTouchStart, ActivityClick:
		return true
	}
	return false
}

// ExpiryReason tells why a session ended without an explicit logout
type ExpiryReason string

const (
	ExpiryReasonInactivity    ExpiryReason = "inactivity"
	ExpiryReasonRefreshFailed ExpiryReason = "refresh_failed"
)

// ExpiryNotice is handed to OnExpired listeners
type ExpiryNotice struct {
	Reason  ExpiryReason
	Message string // Asks the user to sign in again
}

// Result is the outcome of every user-facing authentication call
type Result struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	User    *core.User `json:"user,omitempty"`
}

func failed(message string) Result {
	return Result{Success: false, Message: message}
}

// SessionInfo is a snapshot of the session
type SessionInfo struct {
	IsAuthenticated bool
	User            *core.User
	TokenExpiry     int64 // Unix seconds
	TimeUntilExpiry time.Duration
	State           core.SessionState
	LastActivity    int64 // Unix milliseconds
}

// Config wires a SessionManager
type Config struct {
	Backend  Backend
	Store    ports.TokenStore
	Notifier ports.SessionNotifier // optional
	Provider WalletProvider        // optional, needed for AuthenticateWithWallet
	Clock    func() time.Time
	Logger   *zap.Logger

	InactivityTimeout time.Duration
	CheckInterval     time.Duration
}

// SessionManager owns the client's token pair and session state.
//
// Several managers may share one TokenStore and Notifier. Only the manager
// running a login, refresh or logout writes the store; the others reload
// from it when notified.
type SessionManager struct {
	backend    Backend
	store      ports.TokenStore
	notifier   ports.SessionNotifier
	provider   WalletProvider
	now        func() time.Time
	logger     *zap.Logger
	inactivity time.Duration
	interval   time.Duration
	id         string

	// waitMu guards the refresh queue
	waitMu     sync.Mutex
	waiters    []*refreshWaiter
	refreshing bool

	// mu guards everything below and serialises store writes with state changes
	mu           sync.Mutex
	state        core.SessionState
	pair         core.TokenPair
	claims       *Claims
	lastActivity time.Time
	wallet       string // Wallet the session was opened with
	version      uint64 // Bumped on every session change
	listener     ListenerID
	listening    bool
	onExpired    []func(ExpiryNotice)
}

// NewSessionManager creates an anonymous session manager
func NewSessionManager(cfg Config) (*SessionManager, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("%w: backend is required", core.ErrInvalidInput)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: token store is required", core.ErrInvalidInput)
	}
	m := &SessionManager{
		backend:    cfg.Backend,
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		provider:   cfg.Provider,
		now:        cfg.Clock,
		logger:     cfg.Logger,
		inactivity: cfg.InactivityTimeout,
		interval:   cfg.CheckInterval,
		id:         uuid.New().String(),
		state:      core.StateAnonymous,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.inactivity <= 0 {
		m.inactivity = InactivityTimeout
	}
	if m.interval <= 0 {
		m.interval = CheckInterval
	}
	m.lastActivity = m.now()
	return m, nil
}

// ID identifies this manager as the origin of the events it publishes
func (m *SessionManager) ID() string {
	return m.id
}

// OnExpired registers fn to be told when the session ends on its own
func (m *SessionManager) OnExpired(fn func(ExpiryNotice)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpired = append(m.onExpired, fn)
}

// Init restores the session from the token store
func (m *SessionManager) Init(ctx context.Context) error {
	pair, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("failed to load stored session", zap.Error(err))
		return fmt.Errorf("failed to load session: %w", err)
	}

	m.mu.Lock()
	if pair.Empty() || DecodeToken(pair.AccessToken) == nil {
		m.resetLocked(core.StateAnonymous)
		m.mu.Unlock()
		return nil
	}

	m.applyLocked(pair)
	m.lastActivity = m.now()
	if !IsTokenExpired(pair.AccessToken, m.now()) {
		m.mu.Unlock()
		return nil
	}
	if pair.RefreshToken == "" {
		m.resetLocked(core.StateAnonymous)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	m.RefreshToken(ctx)
	return nil
}

// applyLocked takes pair as the live session without writing the store.
// The inactivity clock is left alone: a refreshed or synced pair is not activity.
func (m *SessionManager) applyLocked(pair core.TokenPair) {
	claims := DecodeToken(pair.AccessToken)
	m.pair = pair
	m.claims = claims
	m.state = core.StateAuthenticated
	m.wallet = ""
	if claims != nil {
		m.wallet = strings.ToLower(claims.Wallet)
	}
	if m.wallet != "" {
		m.attachLocked()
	} else {
		m.detachLocked()
	}
	m.version++
}

// resetLocked drops the in-memory session without writing the store
func (m *SessionManager) resetLocked(state core.SessionState) {
	m.pair = core.TokenPair{}
	m.claims = nil
	m.wallet = ""
	m.state = state
	m.version++
	m.detachLocked()
}

// SetSession stores pair and makes it the live session. It counts as a
// sign-in and restarts the inactivity clock.
func (m *SessionManager) SetSession(ctx context.Context, pair core.TokenPair) error {
	if DecodeToken(pair.AccessToken) == nil {
		return core.ErrInvalidToken
	}

	m.mu.Lock()
	err := m.beginLocked(ctx, pair)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.publish(ctx, core.SessionEventReplaced)
	return nil
}

func (m *SessionManager) setLocked(ctx context.Context, pair core.TokenPair) error {
	if err := m.store.Save(ctx, pair); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	m.applyLocked(pair)
	return nil
}

// beginLocked is setLocked for a fresh sign-in
func (m *SessionManager) beginLocked(ctx context.Context, pair core.TokenPair) error {
	if err := m.setLocked(ctx, pair); err != nil {
		return err
	}
	m.lastActivity = m.now()
	return nil
}

// ClearSession removes the stored pair and the live session
func (m *SessionManager) ClearSession(ctx context.Context) error {
	m.mu.Lock()
	err := m.clearLocked(ctx, core.StateAnonymous)
	m.mu.Unlock()

	m.publish(ctx, core.SessionEventRemoved)
	return err
}

// clearLocked always resets memory, even when the store write fails
func (m *SessionManager) clearLocked(ctx context.Context, state core.SessionState) error {
	err := m.store.Clear(ctx)
	m.resetLocked(state)
	if err != nil {
		m.logger.Warn("failed to clear stored session", zap.Error(err))
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// expireLocked ends the session and returns the OnExpired listeners to notify
func (m *SessionManager) expireLocked(ctx context.Context, reason ExpiryReason) []func(ExpiryNotice) {
	_ = m.clearLocked(ctx, core.StateExpired)
	m.logger.Info("session expired", zap.String("reason", string(reason)))
	handlers := make([]func(ExpiryNotice), len(m.onExpired))
	copy(handlers, m.onExpired)
	return handlers
}

func (m *SessionManager) notifyExpired(ctx context.Context, reason ExpiryReason, handlers []func(ExpiryNotice)) {
	m.publish(ctx, core.SessionEventRemoved)

	notice := ExpiryNotice{Reason: reason, Message: "Your session has expired. Please sign in again."}
	if reason == ExpiryReasonInactivity {
		notice.Message = "You were signed out due to inactivity. Please sign in again."
	}
	for _, h := range handlers {
		h(notice)
	}
}

func (m *SessionManager) publish(ctx context.Context, t core.SessionEventType) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, core.SessionEvent{Type: t, Origin: m.id}); err != nil {
		m.logger.Warn("failed to publish session event", zap.String("type", string(t)), zap.Error(err))
	}
}

// RecordActivity resets the inactivity clock. Only lastActivity changes.
func (m *SessionManager) RecordActivity(kind ActivityKind) {
	if !kind.Valid() {
		return
	}
	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
}

// CheckSession expires an idle session and refreshes one close to expiry
func (m *SessionManager) CheckSession(ctx context.Context) {
	m.mu.Lock()
	if m.state != core.StateAuthenticated {
		m.mu.Unlock()
		return
	}

	now := m.now()
	if now.Sub(m.lastActivity) > m.inactivity {
		handlers := m.expireLocked(ctx, ExpiryReasonInactivity)
		m.mu.Unlock()
		m.notifyExpired(ctx, ExpiryReasonInactivity, handlers)
		return
	}

	needsRefresh := ShouldRefreshToken(m.pair.AccessToken, now)
	m.mu.Unlock()

	if needsRefresh {
		m.RefreshToken(ctx)
	}
}

// refreshWaiter is a caller queued on the in-flight refresh
type refreshWaiter struct {
	result chan bool // unbuffered: a send completes only once the waiter has taken it
	gone   chan struct{}
}

func newRefreshWaiter() *refreshWaiter {
	return &refreshWaiter{result: make(chan bool), gone: make(chan struct{})}
}

// releaseRefreshWaiters hands ok to each waiter in queue order, one at a
// time. Waiters that gave up are skipped.
func releaseRefreshWaiters(waiters []*refreshWaiter, ok bool) {
	for _, w := range waiters {
		select {
		case w.result <- ok:
		case <-w.gone:
		}
	}
}

// RefreshToken exchanges the refresh token for a new pair. Concurrent callers
// share one in-flight refresh and are released with its result in the order
// they called. A failed refresh expires the session and is not retried.
func (m *SessionManager) RefreshToken(ctx context.Context) bool {
	w := newRefreshWaiter()

	m.waitMu.Lock()
	m.waiters = append(m.waiters, w)
	lead := !m.refreshing
	m.refreshing = true
	m.waitMu.Unlock()

	if lead {
		go m.runRefresh(context.WithoutCancel(ctx))
	}

	select {
	case ok := <-w.result:
		return ok
	case <-ctx.Done():
		close(w.gone)
		return false
	}
}

func (m *SessionManager) runRefresh(ctx context.Context) {
	ok := m.refresh(ctx)

	m.waitMu.Lock()
	waiters := m.waiters
	m.waiters = nil
	m.refreshing = false
	m.waitMu.Unlock()

	releaseRefreshWaiters(waiters, ok)
}

func (m *SessionManager) refresh(ctx context.Context) bool {
	m.mu.Lock()
	if m.pair.RefreshToken == "" || (m.state != core.StateAuthenticated && m.state != core.StateRefreshing) {
		m.mu.Unlock()
		return false
	}
	version := m.version
	refreshToken := m.pair.RefreshToken
	m.state = core.StateRefreshing
	m.mu.Unlock()

	pair, err := m.backend.Refresh(ctx, refreshToken)

	m.mu.Lock()
	if m.version != version {
		// Logged out or replaced while the call was in flight
		ok := m.state == core.StateAuthenticated
		m.mu.Unlock()
		m.logger.Debug("discarded stale refresh result")
		return ok
	}

	if err == nil && DecodeToken(pair.AccessToken) == nil {
		err = core.ErrInvalidToken
	}
	if err == nil {
		wallet := m.wallet
		err = m.setLocked(ctx, pair)
		if err == nil {
			if m.wallet == "" && wallet != "" {
				m.wallet = wallet
				m.attachLocked()
			}
			m.mu.Unlock()
			m.publish(ctx, core.SessionEventReplaced)
			return true
		}
	}

	m.logger.Warn("token refresh failed", zap.Error(err))
	handlers := m.expireLocked(ctx, ExpiryReasonRefreshFailed)
	m.mu.Unlock()
	m.notifyExpired(ctx, ExpiryReasonRefreshFailed, handlers)
	return false
}

// AccessToken returns a usable access token, refreshing it first when it is
// about to expire
func (m *SessionManager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	state, token := m.state, m.pair.AccessToken
	m.mu.Unlock()

	if state != core.StateAuthenticated && state != core.StateRefreshing {
		return "", core.ErrNotAuthenticated
	}
	if ShouldRefreshToken(token, m.now()) {
		if !m.RefreshToken(ctx) {
			return "", core.ErrNotAuthenticated
		}
		m.mu.Lock()
		token = m.pair.AccessToken
		m.mu.Unlock()
	}
	return token, nil
}

// IsAuthenticated reports whether a structurally valid, unexpired access token is held
func (m *SessionManager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticatedLocked(m.now())
}

func (m *SessionManager) authenticatedLocked(now time.Time) bool {
	if m.state != core.StateAuthenticated && m.state != core.StateRefreshing {
		return false
	}
	return !IsTokenExpired(m.pair.AccessToken, now)
}

// GetSessionInfo returns a snapshot of the session
func (m *SessionManager) GetSessionInfo() SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	info := SessionInfo{
		IsAuthenticated: m.authenticatedLocked(now),
		State:           m.state,
		LastActivity:    m.lastActivity.UnixMilli(),
	}
	if !info.IsAuthenticated {
		return info
	}

	info.TokenExpiry = tokenExpiry(m.claims)
	info.User = &core.User{ID: m.claims.Subject, Email: m.claims.Email, Role: m.claims.Role}
	if remaining := time.Unix(info.TokenExpiry, 0).Sub(now); remaining > 0 {
		info.TimeUntilExpiry = remaining
	}
	return info
}

// CreateChallenge requests a signing challenge for address
func (m *SessionManager) CreateChallenge(ctx context.Context, address string) (*Challenge, error) {
	return m.backend.CreateChallenge(ctx, address)
}

// VerifySignature checks a personal-sign signature locally
func (m *SessionManager) VerifySignature(signature, message, address string) bool {
	return VerifySignature(signature, message, address)
}

// Login signs in through the account backend
func (m *SessionManager) Login(ctx context.Context, creds Credentials) Result {
	return m.openSession(ctx, "Login successful", func() (core.TokenPair, error) {
		return m.backend.Login(ctx, creds)
	})
}

// Register creates an account and signs in
func (m *SessionManager) Register(ctx context.Context, creds Credentials) Result {
	return m.openSession(ctx, "Registration successful", func() (core.TokenPair, error) {
		return m.backend.Register(ctx, creds)
	})
}

// SocialLogin signs in with an identity provider token
func (m *SessionManager) SocialLogin(ctx context.Context, creds SocialCredentials) Result {
	return m.openSession(ctx, "Login successful", func() (core.TokenPair, error) {
		return m.backend.SocialLogin(ctx, creds)
	})
}

func (m *SessionManager) openSession(ctx context.Context, success string, obtain func() (core.TokenPair, error)) Result {
	pair, err := obtain()
	if err != nil {
		m.logger.Info("authentication failed", zap.Error(err))
		return failed(messageFor(err))
	}
	if err := m.SetSession(ctx, pair); err != nil {
		m.logger.Warn("failed to set session", zap.Error(err))
		return failed(messageFor(err))
	}
	return Result{Success: true, Message: success, User: m.GetSessionInfo().User}
}

// AuthenticateWithWallet signs a server challenge with the wallet provider
// and opens a session for the wallet. An empty address uses the provider's
// first account.
func (m *SessionManager) AuthenticateWithWallet(ctx context.Context, address string) Result {
	if m.provider == nil {
		return failed(ErrNoProvider.Error())
	}

	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		accounts, err := RequestAccounts(ctx, m.provider)
		if err != nil || len(accounts) == 0 {
			return failed("could not connect to wallet")
		}
		address = strings.ToLower(accounts[0])
	}

	challenge, err := m.backend.CreateChallenge(ctx, address)
	if err != nil {
		m.logger.Info("challenge request failed", zap.Error(err))
		return failed(messageFor(err))
	}

	signature, err := PersonalSign(ctx, m.provider, challenge.Message, address)
	if err != nil {
		m.logger.Info("wallet signature failed", zap.Error(err))
		return failed("signature request was rejected")
	}

	// Saves a round trip; the server checks again
	if !VerifySignature(signature, challenge.Message, address) {
		return failed(core.ErrInvalidSignature.Error())
	}

	pair, err := m.backend.VerifyWallet(ctx, VerifyRequest{
		WalletAddress: address,
		Signature:     signature,
		Message:       challenge.Message,
		Nonce:         challenge.Nonce,
	})
	if err != nil {
		m.logger.Info("wallet verification failed", zap.Error(err))
		return failed(messageFor(err))
	}

	if DecodeToken(pair.AccessToken) == nil {
		return failed(messageFor(core.ErrInvalidToken))
	}

	m.mu.Lock()
	if err := m.beginLocked(ctx, pair); err != nil {
		m.mu.Unlock()
		return failed(messageFor(err))
	}
	m.wallet = address
	m.attachLocked()
	m.mu.Unlock()
	m.publish(ctx, core.SessionEventReplaced)

	return Result{Success: true, Message: "Wallet authenticated", User: m.GetSessionInfo().User}
}

// attachLocked follows account switches of the session wallet
func (m *SessionManager) attachLocked() {
	if m.provider == nil || m.listening {
		return
	}
	m.listener = m.provider.On(EventAccountsChanged, m.onAccountsChanged)
	m.listening = true
}

func (m *SessionManager) detachLocked() {
	if !m.listening {
		return
	}
	m.provider.RemoveListener(EventAccountsChanged, m.listener)
	m.listening = false
}

func (m *SessionManager) onAccountsChanged(payload interface{}) {
	accounts, _ := payload.([]string)

	m.mu.Lock()
	wallet := m.wallet
	m.mu.Unlock()
	if wallet == "" {
		return
	}
	if len(accounts) > 0 && strings.EqualFold(accounts[0], wallet) {
		return
	}

	m.logger.Info("wallet account changed, signing out", zap.String("wallet", wallet))
	// Provider callbacks must not block on the network
	go m.Logout(context.Background())
}

// Logout ends the session locally and revokes it on the server
func (m *SessionManager) Logout(ctx context.Context) {
	m.mu.Lock()
	refreshToken := m.pair.RefreshToken
	_ = m.clearLocked(ctx, core.StateAnonymous)
	m.mu.Unlock()

	m.publish(ctx, core.SessionEventRemoved)

	if refreshToken == "" {
		return
	}
	if err := m.backend.Logout(ctx, refreshToken); err != nil {
		m.logger.Warn("server logout failed", zap.Error(err))
	}
}

// Start subscribes to session events and runs the periodic check in the
// background until ctx is done
func (m *SessionManager) Start(ctx context.Context) error {
	var events <-chan core.SessionEvent
	if m.notifier != nil {
		var err error
		if events, err = m.notifier.Subscribe(ctx); err != nil {
			return fmt.Errorf("failed to subscribe to session events: %w", err)
		}
	}

	go m.loop(ctx, events)
	return nil
}

// Run is Start followed by waiting for ctx
func (m *SessionManager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (m *SessionManager) loop(ctx context.Context, events <-chan core.SessionEvent) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckSession(ctx)
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			m.HandleEvent(ctx, event)
		}
	}
}

// HandleEvent applies a change made by another manager sharing the store
func (m *SessionManager) HandleEvent(ctx context.Context, event core.SessionEvent) {
	if event.Origin == m.id {
		return
	}

	switch event.Type {
	case core.SessionEventRemoved:
		m.mu.Lock()
		m.resetLocked(core.StateAnonymous)
		m.mu.Unlock()
	case core.SessionEventReplaced:
		pair, err := m.store.Load(ctx)
		if err != nil {
			m.logger.Warn("failed to reload session", zap.Error(err))
			return
		}
		m.mu.Lock()
		if pair.Empty() || IsTokenExpired(pair.AccessToken, m.now()) {
			m.resetLocked(core.StateAnonymous)
		} else {
			signedIn := m.state == core.StateAuthenticated || m.state == core.StateRefreshing
			m.applyLocked(pair)
			// A sign-in elsewhere starts this manager's clock; a refresh does not
			if !signedIn {
				m.lastActivity = m.now()
			}
		}
		m.mu.Unlock()
	}
}
