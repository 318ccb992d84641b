// Package voice turns a spoken sentence into a stored expense through an
// explicit state machine:
//
//	Idle -> Listening -> Transcribed -> Submitting -> Result
//
// Error is reachable from Listening and Submitting. Reset returns to Idle
// from Transcribed, Result and Error.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
)

type State int

const (
	Idle State = iota
	Listening
	Transcribed
	Submitting
	Result
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Transcribed:
		return "transcribed"
	case Submitting:
		return "submitting"
	case Result:
		return "result"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrUnsupported means no speech recognizer is available; voice entry
	// is disabled.
	ErrUnsupported       = errors.New("speech recognition is not supported")
	ErrNoSpeech          = errors.New("no speech was recognized")
	ErrInvalidTransition = errors.New("invalid voice state transition")
	ErrNoUser            = errors.New("voice entry needs a signed-in user")
)

// Recognizer hands out exclusive speech handles.
type Recognizer interface {
	Open(ctx context.Context) (Handle, error)
}

// Handle is one open recognition session, e.g. a microphone stream. It
// must be closed on every exit from Listening.
type Handle interface {
	Transcript(ctx context.Context) (string, error)
	Close() error
}

// Parser submits a transcript to the remote AI parse endpoint and stores the
// resulting expense.
type Parser interface {
	ParseExpense(ctx context.Context, userID, text string) (core.Expense, error)
}

// Snapshot is the machine's observable state.
type Snapshot struct {
	State      State
	Transcript string
	Expense    *core.Expense
	Err        error
}

type Machine struct {
	rec    Recognizer
	parser Parser
	userID func() string
	logger *log.Logger

	mu         sync.Mutex
	state      State
	transcript string
	expense    *core.Expense
	err        error
	handle     Handle
	cancel     context.CancelFunc
	listenDone chan struct{}
	listenSeq  uint64
	onChange   []func(Snapshot)
}

// New builds a machine. rec may be nil, in which case Start reports
// ErrUnsupported.
func New(rec Recognizer, parser Parser, userID func() string, logger *log.Logger) *Machine {
	if logger == nil {
		logger = log.Discard()
	}
	return &Machine{
		rec:    rec,
		parser: parser,
		userID: userID,
		logger: logger.WithComponent(log.ComponentVoice),
	}
}

// Supported reports whether a recognizer is configured.
func (m *Machine) Supported() bool {
	return m.rec != nil
}

// OnChange registers fn to be called after every transition.
func (m *Machine) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{State: m.state, Transcript: m.transcript, Err: m.err}
	if m.expense != nil {
		e := *m.expense
		snap.Expense = &e
	}
	return snap
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transitionLocked moves to next and returns the listeners to notify once
// the lock is released.
func (m *Machine) transitionLocked(next State) (Snapshot, []func(Snapshot)) {
	prev := m.state
	m.state = next
	metrics.VoiceTransitions.WithLabelValues(prev.String(), next.String()).Inc()
	m.logger.Debug("Voice state changed", log.FieldFromState, prev.String(), log.FieldState, next.String())
	return m.snapshotLocked(), append([]func(Snapshot){}, m.onChange...)
}

func notify(snap Snapshot, fns []func(Snapshot)) {
	for _, fn := range fns {
		fn(snap)
	}
}

// Start acquires a speech handle and begins listening. The transcript
// arrives asynchronously; use Await or OnChange to observe it.
func (m *Machine) Start(ctx context.Context) error {
	if m.rec == nil {
		return ErrUnsupported
	}

	m.mu.Lock()
	if m.state != Idle {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("start from %s: %w", state, ErrInvalidTransition)
	}
	// held across Open: one handle at a time
	h, err := m.rec.Open(ctx)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("open recognizer: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.listenSeq++
	seq := m.listenSeq
	done := make(chan struct{})
	m.handle, m.cancel, m.listenDone = h, cancel, done
	m.transcript, m.expense, m.err = "", nil, nil
	snap, fns := m.transitionLocked(Listening)
	m.mu.Unlock()
	notify(snap, fns)

	go func() {
		defer close(done)
		text, err := h.Transcript(listenCtx)
		m.finishListening(seq, text, err)
	}()
	return nil
}

// release closes the speech handle. Callers hold m.mu.
func (m *Machine) releaseLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.handle != nil {
		if err := m.handle.Close(); err != nil {
			m.logger.Warn("Failed to release speech handle", log.FieldError, err.Error())
		}
		m.handle = nil
	}
}

func (m *Machine) finishListening(seq uint64, text string, err error) {
	m.mu.Lock()
	if m.state != Listening || seq != m.listenSeq {
		// stopped or closed meanwhile
		m.mu.Unlock()
		return
	}
	m.releaseLocked()

	text = strings.TrimSpace(text)
	var next State
	switch {
	case err != nil:
		m.err = err
		next = Error
	case text == "":
		m.err = ErrNoSpeech
		next = Error
	default:
		m.transcript = text
		next = Transcribed
	}
	snap, fns := m.transitionLocked(next)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("Speech recognition failed", log.FieldError, err.Error())
	}
	notify(snap, fns)
}

// Await blocks until listening ends and returns the resulting snapshot.
func (m *Machine) Await(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	done := m.listenDone
	m.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return m.Snapshot(), ctx.Err()
		}
	}
	return m.Snapshot(), nil
}

// Stop ends listening before a result; the machine returns to Idle.
// Outside Listening it does nothing.
func (m *Machine) Stop() {
	m.mu.Lock()
	if m.state != Listening {
		m.mu.Unlock()
		return
	}
	m.listenSeq++
	m.releaseLocked()
	snap, fns := m.transitionLocked(Idle)
	m.mu.Unlock()
	notify(snap, fns)
}

// Confirm sends the transcript to the parse endpoint. It is allowed from
// Transcribed, and from Error when a transcript was kept, which retries
// without speaking again.
func (m *Machine) Confirm(ctx context.Context) (core.Expense, error) {
	m.mu.Lock()
	if m.state != Transcribed && !(m.state == Error && m.transcript != "") {
		state := m.state
		m.mu.Unlock()
		return core.Expense{}, fmt.Errorf("confirm from %s: %w", state, ErrInvalidTransition)
	}
	userID := ""
	if m.userID != nil {
		userID = m.userID()
	}
	if userID == "" {
		m.mu.Unlock()
		return core.Expense{}, ErrNoUser
	}
	text := m.transcript
	m.err = nil
	snap, fns := m.transitionLocked(Submitting)
	m.mu.Unlock()
	notify(snap, fns)

	e, err := m.parser.ParseExpense(ctx, userID, text)

	m.mu.Lock()
	if m.state != Submitting {
		m.mu.Unlock()
		return e, err
	}
	if err != nil {
		m.err = err
		snap, fns = m.transitionLocked(Error)
	} else {
		m.expense = &e
		snap, fns = m.transitionLocked(Result)
	}
	m.mu.Unlock()
	notify(snap, fns)

	if err != nil {
		m.logger.WarnContext(ctx, "Voice expense parse failed", log.FieldError, err.Error())
		return core.Expense{}, err
	}
	m.logger.InfoContext(ctx, "Voice expense recorded", log.FieldExpenseID, e.ID, log.FieldAmount, e.Amount.String())
	return e, nil
}

// Reset returns to Idle and forgets transcript and result.
func (m *Machine) Reset() error {
	m.mu.Lock()
	switch m.state {
	case Idle:
		m.mu.Unlock()
		return nil
	case Transcribed, Result, Error:
	default:
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("reset from %s: %w", state, ErrInvalidTransition)
	}
	m.transcript, m.expense, m.err = "", nil, nil
	snap, fns := m.transitionLocked(Idle)
	m.mu.Unlock()
	notify(snap, fns)
	return nil
}

// Close releases the speech handle on teardown, whatever the state.
func (m *Machine) Close() error {
	m.mu.Lock()
	if m.state != Listening {
		m.mu.Unlock()
		return nil
	}
	m.listenSeq++
	m.releaseLocked()
	snap, fns := m.transitionLocked(Idle)
	m.mu.Unlock()
	notify(snap, fns)
	return nil
}

// Summary is the confirmation read back to the user after a Result.
func (m *Machine) Summary(currency string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Result || m.expense == nil {
		return ""
	}
	return Summary(*m.expense, currency)
}

// Summary renders e as "You spent $500.00 on Groceries in the category
// Food & Dining on 2026-10-18."
func Summary(e core.Expense, currency string) string {
	var b strings.Builder
	b.WriteString("You spent ")
	b.WriteString(core.FormatCurrency(e.Amount.Decimal, currency))
	if e.Title != "" {
		b.WriteString(" on ")
		b.WriteString(e.Title)
	}
	if e.Category != "" {
		b.WriteString(" in the category ")
		b.WriteString(e.Category)
	}
	if !e.Date.IsZero() {
		b.WriteString(" on ")
		b.WriteString(e.Date.String())
	}
	b.WriteString(".")
	return b.String()
}
