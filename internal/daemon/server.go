package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwulff/hush/internal/policy"
	"github.com/jwulff/hush/internal/store"
	"github.com/jwulff/hush/internal/timer"
	"github.com/jwulff/hush/internal/voice"
)

// Server accepts NDJSON command connections on a Unix socket and streams
// session events to subscribers. Every client speaks the same command
// vocabulary; the server is a thin dispatch layer over the state machine.
type Server struct {
	socketPath string
	machine    *timer.Machine
	store      *store.Store
	log        zerolog.Logger

	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup

	mu    sync.Mutex
	subs  map[*subscriber]struct{}
	conns map[net.Conn]struct{}
}

// subscriber is one event-stream connection. Events are delivered through a
// buffered channel; a slow consumer drops events rather than blocking the
// state machine.
type subscriber struct {
	events chan Event
}

// NewServer wires a server over the state machine and store. Machine events
// are broadcast to all subscribers as they land.
func NewServer(socketPath string, machine *timer.Machine, st *store.Store, log zerolog.Logger) *Server {
	s := &Server{
		socketPath: socketPath,
		machine:    machine,
		store:      st,
		log:        log.With().Str("component", "server").Logger(),
		quit:       make(chan struct{}),
		subs:       make(map[*subscriber]struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
	machine.OnEvent(s.onMachineEvent)
	return s
}

// Start begins listening on the Unix socket. A stale socket file from a
// previous run is removed first.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	s.log.Info().Str("socket", s.socketPath).Msg("listening")
	return nil
}

// Stop closes the listener, disconnects all clients, and removes the socket
// file.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	var actorID string
	defer func() {
		if actorID == "" {
			return
		}
		if err := s.store.UnregisterActor(actorID); err != nil {
			s.log.Warn().Err(err).Str("actor", actorID).Msg("unregister actor failed")
		}
	}()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var cmd Command
		if err := dec.Decode(&cmd); err != nil {
			return
		}

		if cmd.ActorID != "" {
			actorID = cmd.ActorID
		}

		if cmd.Cmd == CmdSubscribe {
			if err := s.registerActor(cmd); err != nil {
				enc.Encode(Response{OK: false, Error: err.Error()})
				return
			}
			if err := enc.Encode(Response{OK: true}); err != nil {
				return
			}
			s.streamEvents(conn, enc)
			return
		}

		resp := s.dispatch(cmd)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

// streamEvents turns the connection into a one-way event feed until the
// client goes away or the server shuts down.
func (s *Server) streamEvents(conn net.Conn, enc *json.Encoder) {
	sub := &subscriber{events: make(chan Event, 32)}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	}()

	// Seed the new subscriber with the current state so it never renders
	// stale on connect.
	snap := s.machine.Snapshot()
	if err := enc.Encode(Event{Event: EventStatus, Session: &snap}); err != nil {
		return
	}

	for {
		select {
		case <-s.quit:
			return
		case ev := <-sub.events:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := enc.Encode(ev); err != nil {
				return
			}
		}
	}
}

func (s *Server) registerActor(cmd Command) error {
	if cmd.ActorID == "" {
		return nil
	}
	return s.store.RegisterActor(store.Actor{
		ID:          cmd.ActorID,
		DisplayName: cmd.DisplayName,
		ConnectedAt: time.Now(),
	})
}

func (s *Server) dispatch(cmd Command) Response {
	switch cmd.Cmd {
	case CmdHello:
		if err := s.registerActor(cmd); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		actors, err := s.store.Actors()
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		n := len(actors)
		return Response{OK: true, Actors: &n}

	case CmdStart:
		s.machine.Start()
		return s.snapshotResponse()

	case CmdStop:
		reason := timer.StopManual
		if cmd.Reason != "" {
			reason = timer.StopReason(cmd.Reason)
			// scheduled is reserved for the evaluator's finish path.
			switch reason {
			case timer.StopManual, timer.StopVoiceAny, timer.StopVoiceKeyword, timer.StopError:
			default:
				return Response{OK: false, Error: fmt.Sprintf("unknown stop reason %q", cmd.Reason)}
			}
		}
		s.machine.Stop(reason)
		return s.snapshotResponse()

	case CmdReset:
		s.machine.Reset()
		return s.snapshotResponse()

	case CmdStatus:
		resp := s.snapshotResponse()
		if actors, err := s.store.Actors(); err == nil {
			n := len(actors)
			resp.Actors = &n
		}
		return resp

	case CmdRefresh:
		snap := s.machine.Snapshot()
		s.broadcast(Event{Event: EventStatus, Session: &snap})
		return s.snapshotResponse()

	case CmdSetVoice:
		if cmd.Enabled != nil {
			s.machine.SetVoiceEnabled(*cmd.Enabled)
		}
		if cmd.Mode != "" {
			mode := timer.VoiceMode(cmd.Mode)
			if mode != timer.VoiceModeAny && mode != timer.VoiceModeKeyword {
				return Response{OK: false, Error: fmt.Sprintf("unknown voice mode %q", cmd.Mode)}
			}
			s.machine.SetVoiceMode(mode)
		}
		if cmd.Keyword != nil {
			s.machine.SetKeyword(*cmd.Keyword)
		}
		vc := s.machine.Voice()
		return Response{OK: true, Voice: &vc}

	case CmdSetKeyword:
		if cmd.Keyword == nil {
			return Response{OK: false, Error: "keyword is required"}
		}
		s.machine.SetKeyword(*cmd.Keyword)
		vc := s.machine.Voice()
		return Response{OK: true, Voice: &vc}

	case CmdSetCountdown:
		if cmd.CountdownMs == nil {
			return Response{OK: false, Error: "countdownMs is required"}
		}
		s.machine.SetCountdown(time.Duration(*cmd.CountdownMs) * time.Millisecond)
		return s.snapshotResponse()

	case CmdSimulate:
		stopped := policy.Apply(s.machine, cmd.Text)
		resp := s.snapshotResponse()
		resp.Stopped = &stopped
		return resp

	case CmdHistory:
		limit := 0
		if cmd.Limit != nil {
			limit = *cmd.Limit
		}
		history, err := s.store.History(limit)
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true, History: history}

	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", cmd.Cmd)}
	}
}

func (s *Server) snapshotResponse() Response {
	snap := s.machine.Snapshot()
	vc := s.machine.Voice()
	return Response{OK: true, Session: &snap, Voice: &vc}
}

func (s *Server) onMachineEvent(ev timer.Event) {
	out := Event{Session: &ev.Session}
	switch ev.Kind {
	case timer.EventStarted:
		out.Event = EventStarted
	case timer.EventStopped:
		out.Event = EventStopped
		out.Reason = string(ev.Session.StopReason)
		out.DurationMs = Int64Ptr(ev.Session.DurationMs)
	case timer.EventReset:
		out.Event = EventReset
	default:
		return
	}
	s.broadcast(out)
}

// VoiceWarning broadcasts a recognition failure to subscribers. Sensor
// failures never touch the session; manual timing keeps working.
func (s *Server) VoiceWarning(w voice.Warning) {
	ev := Event{Message: w.Err.Error()}
	switch w.Kind {
	case voice.WarnUnsupported:
		ev.Event = EventVoiceUnsupported
	case voice.WarnPermission:
		ev.Event = EventVoicePermissionDenied
	default:
		ev.Event = EventVoiceStreamError
	}
	s.broadcast(ev)
}

func (s *Server) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub.events <- ev:
		default:
			// Drop rather than stall every other subscriber.
		}
	}
}
