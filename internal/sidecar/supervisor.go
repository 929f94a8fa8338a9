package sidecar

import (
	"log"
	"sync"
	"time"
)

// LaunchIDEnv carries the application launch id to the helper.
const LaunchIDEnv = "AVVA_LAUNCH_ID"

// Status is a point-in-time view of the supervised helper.
type Status struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Pid       int    `json:"pid,omitempty"`
	Running   bool   `json:"running"`
	StartedAt string `json:"started_at,omitempty"`
	ExitCode  *int   `json:"exit_code,omitempty"`
	Dropped   int64  `json:"dropped_events"`
	LaunchID  string `json:"launch_id"`
}

// Supervisor owns the single helper of one application launch.
type Supervisor struct {
	desc        Descriptor
	launchID    string
	pidfile     string
	stopTimeout time.Duration
	logger      *log.Logger

	mu      sync.Mutex
	started bool
	handle  *Handle
	subs    map[int]chan Event
	nextSub int
	closed  bool
	pumped  chan struct{}
}

func NewSupervisor(desc Descriptor, launchID, pidfile string, stopTimeout time.Duration, logger *log.Logger) *Supervisor {
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}
	return &Supervisor{
		desc:        desc,
		launchID:    launchID,
		pidfile:     pidfile,
		stopTimeout: stopTimeout,
		logger:      logger,
		subs:        map[int]chan Event{},
	}
}

// Start resolves and spawns the helper. A second call fails with ErrAlreadyStarted
// even if the first helper has already exited.
func (s *Supervisor) Start() (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, ErrAlreadyStarted
	}

	d := s.desc
	d.Env = make(map[string]string, len(s.desc.Env)+1)
	for k, v := range s.desc.Env {
		d.Env[k] = v
	}
	d.Env[LaunchIDEnv] = s.launchID

	h, err := Spawn(d)
	if err != nil {
		return nil, err
	}
	s.started = true
	s.handle = h
	s.pumped = make(chan struct{})

	if s.pidfile != "" {
		rec := PidRecord{
			Pid:       h.Pid(),
			Path:      h.Path(),
			LaunchID:  s.launchID,
			StartedAt: h.StartedAt().Format(time.RFC3339),
		}
		if err := WritePidfile(s.pidfile, rec); err != nil {
			s.logger.Printf("sidecar: pidfile not written: %v", err)
		}
	}

	s.logger.Printf("sidecar: started name=%s pid=%d path=%s", s.desc.Name, h.Pid(), h.Path())
	go s.pump(h)
	return h, nil
}

func (s *Supervisor) pump(h *Handle) {
	defer close(s.pumped)
	for ev := range h.Events() {
		s.mu.Lock()
		for _, ch := range s.subs {
			select {
			case ch <- ev:
			default:
			}
		}
		s.mu.Unlock()
	}

	s.logger.Printf("sidecar: exited name=%s pid=%d code=%d dropped=%d", s.desc.Name, h.Pid(), h.ExitCode(), h.Dropped())

	s.mu.Lock()
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
}

// Subscribe returns a copy of the helper event stream and a cancel func. Slow
// subscribers lose events rather than stalling others. The channel is closed
// when the helper exits or cancel is called.
func (s *Supervisor) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
		})
	}
}

func (s *Supervisor) Handle() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Supervisor) LaunchID() string { return s.launchID }

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()

	st := Status{Name: s.desc.Name, LaunchID: s.launchID}
	if h == nil {
		return st
	}
	st.Path = h.Path()
	st.Pid = h.Pid()
	st.Running = h.Running()
	st.StartedAt = h.StartedAt().Format(time.RFC3339)
	st.Dropped = h.Dropped()
	if !st.Running {
		code := h.ExitCode()
		st.ExitCode = &code
	}
	return st
}

// Stop terminates the helper, waits for its events to drain and removes the
// pidfile. It is safe to call more than once and before Start.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	h := s.handle
	pumped := s.pumped
	s.mu.Unlock()
	if h == nil {
		return nil
	}

	err := h.Stop(s.stopTimeout)
	if err != nil {
		s.logger.Printf("sidecar: stop failed pid=%d: %v", h.Pid(), err)
	} else {
		<-pumped
	}
	if s.pidfile != "" {
		if rmErr := RemovePidfile(s.pidfile); rmErr != nil {
			s.logger.Printf("sidecar: pidfile not removed: %v", rmErr)
		}
	}
	return err
}
