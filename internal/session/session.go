// Package session implements the logind-backed session authority: taking
// and releasing raw device file descriptors, and reacting to VT
// pause/resume notifications, grounded on
// original_source/backend/drm/session.c's sd-bus calls reimplemented over
// github.com/godbus/dbus/v5 against org.freedesktop.login1.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"github.com/tmarsh-oss/go-drmoutput/internal/logging"
)

const (
	loginBusName   = "org.freedesktop.login1"
	loginObjPath   = "/org/freedesktop/login1"
	managerIface   = "org.freedesktop.login1.Manager"
	sessionIface   = "org.freedesktop.login1.Session"
)

// PauseFunc is invoked when logind pauses access to a previously-taken
// device (VT switch away, or another session taking control). pauseType is
// "pause", "gone" or "force" as sent on the wire.
type PauseFunc func(major, minor uint32, pauseType string)

// ResumeFunc is invoked when logind hands a fresh fd back for a
// previously-paused device, e.g. on VT switch back.
type ResumeFunc func(major, minor uint32, fd int)

// Session wraps a logind session: a D-Bus connection scoped to the caller's
// own session object, taken-and-controlled once at Open and released at
// Close, mirroring otd_session's bus/id/path/seat fields.
type Session struct {
	mu     sync.Mutex
	conn   *dbus.Conn
	path   dbus.ObjectPath
	seat   string
	logger *logging.Logger

	active bool

	onPause  PauseFunc
	onResume ResumeFunc

	sigCh  chan *dbus.Signal
	cancel context.CancelFunc
	done   chan struct{}
}

// Open connects to the system bus, resolves the caller's own logind
// session by pid, and performs the Activate+TakeControl handshake
// session.c's otd_new_session performs before any device is taken.
func Open(logger *logging.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.Default()
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("session: connect system bus: %w", err)
	}

	manager := conn.Object(loginBusName, dbus.ObjectPath(loginObjPath))

	var sessionPath dbus.ObjectPath
	if err := manager.Call(managerIface+".GetSessionByPID", 0, uint32(os.Getpid())).Store(&sessionPath); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: GetSessionByPID: %w", err)
	}

	s := &Session{conn: conn, path: sessionPath, logger: logger, active: true}

	sessionObj := conn.Object(loginBusName, sessionPath)
	if err := sessionObj.Call(sessionIface+".Activate", 0).Err; err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: Activate: %w", err)
	}
	if err := sessionObj.Call(sessionIface+".TakeControl", 0, false).Err; err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: TakeControl: %w", err)
	}

	var seat dbus.Variant
	if err := sessionObj.Call("org.freedesktop.DBus.Properties.Get", 0, sessionIface, "Seat").Store(&seat); err == nil {
		if tuple, ok := seat.Value().([]interface{}); ok && len(tuple) > 0 {
			if name, ok := tuple[0].(string); ok {
				s.seat = name
			}
		}
	}
	if s.seat == "" {
		s.seat = "seat0"
	}

	s.subscribe()
	return s, nil
}

// Seat returns the seat the session belongs to (default "seat0").
func (s *Session) Seat() string { return s.seat }

func (s *Session) sessionObj() dbus.BusObject {
	return s.conn.Object(loginBusName, s.path)
}

// OnPause registers the callback invoked for a PauseDevice signal.
func (s *Session) OnPause(fn PauseFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPause = fn
}

// OnResume registers the callback invoked for a ResumeDevice signal.
func (s *Session) OnResume(fn ResumeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResume = fn
}

// subscribe arms the PauseDevice/ResumeDevice match rules and starts the
// dispatch goroutine. logind emits PauseDevice and expects a matching
// PauseDeviceComplete once the client has stopped using the fd; ResumeDevice
// carries the replacement fd directly in its signal body.
func (s *Session) subscribe() {
	_ = s.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(s.path),
		dbus.WithMatchInterface(sessionIface),
		dbus.WithMatchMember("PauseDevice"),
	)
	_ = s.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(s.path),
		dbus.WithMatchInterface(sessionIface),
		dbus.WithMatchMember("ResumeDevice"),
	)

	s.sigCh = make(chan *dbus.Signal, 16)
	s.conn.Signal(s.sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.dispatch(ctx)
}

func (s *Session) dispatch(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-s.sigCh:
			if !ok {
				return
			}
			s.handleSignal(sig)
		}
	}
}

func (s *Session) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case sessionIface + ".PauseDevice":
		if len(sig.Body) < 3 {
			return
		}
		major, _ := sig.Body[0].(uint32)
		minor, _ := sig.Body[1].(uint32)
		pauseType, _ := sig.Body[2].(string)

		s.mu.Lock()
		s.active = false
		fn := s.onPause
		s.mu.Unlock()

		// PauseComplete acknowledges a "pause" (not "force"/"gone")
		// notification so logind knows the client has stopped using the
		// device; a dropped ack just means logind force-revokes sooner.
		if pauseType == "pause" {
			_ = s.sessionObj().Call(sessionIface+".PauseDeviceComplete", 0, major, minor).Err
		}
		if fn != nil {
			fn(major, minor, pauseType)
		}

	case sessionIface + ".ResumeDevice":
		if len(sig.Body) < 3 {
			return
		}
		major, _ := sig.Body[0].(uint32)
		minor, _ := sig.Body[1].(uint32)
		fdVal, _ := sig.Body[2].(dbus.UnixFD)

		fd, err := unix.Dup(int(fdVal))
		if err != nil {
			s.logger.Warnf("session: dup resumed fd: %v", err)
			return
		}
		unix.CloseOnExec(fd)

		s.mu.Lock()
		s.active = true
		fn := s.onResume
		s.mu.Unlock()

		if fn != nil {
			fn(major, minor, fd)
		} else {
			unix.Close(fd)
		}
	}
}

// Active reports whether the session currently has device access (false
// between a PauseDevice and the matching ResumeDevice).
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// TakeDevice asks logind for a device fd by path, the equivalent of
// session.c's take_device: stat the path for its major/minor, call
// TakeDevice, and dup the returned fd since the dbus message's fd is
// closed once the message itself is freed.
func (s *Session) TakeDevice(path string) (fd int, pausedInitially bool, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return -1, false, fmt.Errorf("session: stat %s: %w", path, err)
	}
	major := unix.Major(uint64(st.Rdev))
	minor := unix.Minor(uint64(st.Rdev))

	var rawFD dbus.UnixFD
	var paused bool
	if err := s.sessionObj().Call(sessionIface+".TakeDevice", 0, major, minor).Store(&rawFD, &paused); err != nil {
		return -1, false, fmt.Errorf("session: TakeDevice(%s): %w", path, err)
	}

	dupFD, err := unix.Dup(int(rawFD))
	if err != nil {
		return -1, false, fmt.Errorf("session: dup device fd: %w", err)
	}
	unix.CloseOnExec(dupFD)
	return dupFD, paused, nil
}

// ReleaseDevice informs logind a device fd is no longer in use. The fd
// itself is left to the caller to close.
func (s *Session) ReleaseDevice(fd int) error {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return fmt.Errorf("session: fstat: %w", err)
	}
	major := unix.Major(uint64(st.Rdev))
	minor := unix.Minor(uint64(st.Rdev))
	return s.sessionObj().Call(sessionIface+".ReleaseDevice", 0, major, minor).Err
}

// Close releases control of the session and tears down the bus connection.
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	_ = s.sessionObj().Call(sessionIface+".ReleaseControl", 0).Err
	return s.conn.Close()
}
