// Package display sequences what the checkpoint shows: an idle panel, a
// loading placeholder while a profile is being fetched, and the profile
// itself for a fixed number of frames.
package display

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
)

// Mode is the display state.
type Mode int

const (
	Idle Mode = iota
	MatchedPending
	ShowingProfile
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "IDLE"
	case MatchedPending:
		return "MATCHED_PENDING"
	case ShowingProfile:
		return "SHOWING_PROFILE"
	default:
		return "UNKNOWN"
	}
}

// Panel selects the mode panel image drawn next to the camera feed.
type Panel int

const (
	PanelActive Panel = iota
	PanelProfile
	PanelMarked
	PanelAlreadyMarked
)

// Session is one recognized-identity display cycle.
type Session struct {
	ID        uuid.UUID
	Epoch     uint64
	StudentID string
	Counter   int
	Mode      Mode
}

// View is everything the renderer needs for the current frame.
type View struct {
	Mode      Mode
	Panel     Panel
	SessionID uuid.UUID
	StudentID string
	Counter   int

	// Loading is set while the profile fetch is outstanding.
	Loading bool
	// ShowProfile is set during the early part of the display cycle.
	ShowProfile bool
	// Entry holds the fetched profile when Mode is ShowingProfile.
	Entry attendance.Entry
}

// CacheReader is the read side of the attendance cache.
type CacheReader interface {
	Get(id string) (attendance.Entry, bool)
}

// Dispatcher starts a persistence worker without blocking.
type Dispatcher interface {
	Dispatch(req attendance.Request) bool
}

// Machine is the display state machine. It is owned by the frame loop and
// is not safe for concurrent use.
type Machine struct {
	cfg      config.DisplayConfig
	cache    CacheReader
	dispatch Dispatcher
	log      logrus.FieldLogger

	epoch   uint64
	session *Session
	entry   attendance.Entry
}

// NewMachine creates an idle state machine.
func NewMachine(cfg config.DisplayConfig, cache CacheReader, dispatch Dispatcher, log logrus.FieldLogger) *Machine {
	return &Machine{
		cfg:      cfg,
		cache:    cache,
		dispatch: dispatch,
		log:      log,
	}
}

// Mode returns the current state.
func (m *Machine) Mode() Mode {
	if m.session == nil {
		return Idle
	}
	return m.session.Mode
}

// Session returns a copy of the active session, or nil when idle.
func (m *Machine) Session() *Session {
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Step advances the machine by one processed frame. matched holds the
// identity keys recognized on that frame in detection order; only the first
// one can start a session and only when the machine is idle.
func (m *Machine) Step(matched []string) {
	if m.session == nil {
		if len(matched) > 0 {
			m.start(matched[0])
		}
		return
	}

	s := m.session
	s.Counter++

	switch s.Mode {
	case MatchedPending:
		if e, ok := m.cache.Get(s.StudentID); ok && e.Epoch >= s.Epoch {
			m.entry = e
			s.Mode = ShowingProfile
			m.sessionLog().WithField("counter", s.Counter).Debug("Profile ready")
			return
		}
		if s.Counter > m.cfg.LoadingTimeoutFrames {
			m.sessionLog().Warn("Profile fetch timed out")
			m.reset()
		}
	case ShowingProfile:
		if s.Counter >= m.cfg.CycleFrames {
			m.reset()
		}
	}
}

// View describes what to render for the current state.
func (m *Machine) View() View {
	if m.session == nil {
		return View{Mode: Idle, Panel: PanelActive}
	}

	s := m.session
	v := View{
		Mode:      s.Mode,
		SessionID: s.ID,
		StudentID: s.StudentID,
		Counter:   s.Counter,
	}

	switch s.Mode {
	case MatchedPending:
		v.Panel = PanelProfile
		v.Loading = true
	case ShowingProfile:
		v.Entry = m.entry
		switch {
		case s.Counter <= m.cfg.ProfileFrames:
			v.Panel = PanelProfile
			v.ShowProfile = true
		case m.entry.Recorded:
			v.Panel = PanelMarked
		default:
			v.Panel = PanelAlreadyMarked
		}
	}
	return v
}

func (m *Machine) start(studentID string) {
	m.epoch++
	m.session = &Session{
		ID:        uuid.New(),
		Epoch:     m.epoch,
		StudentID: studentID,
		Mode:      MatchedPending,
	}
	m.entry = attendance.Entry{}

	log := m.sessionLog()
	if m.dispatch.Dispatch(attendance.Request{ID: studentID, Epoch: m.epoch}) {
		log.Info("Session started")
	} else {
		log.Info("Session started, fetch queued behind running worker")
	}
}

func (m *Machine) reset() {
	m.sessionLog().WithField("counter", m.session.Counter).Debug("Session ended")
	m.session = nil
	m.entry = attendance.Entry{}
}

func (m *Machine) sessionLog() logrus.FieldLogger {
	return m.log.WithFields(logrus.Fields{
		"session":    m.session.ID.String(),
		"student_id": m.session.StudentID,
		"epoch":      m.session.Epoch,
	})
}
