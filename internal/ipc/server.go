package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"governor/internal/daemon"
	"governor/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// stop asks the process to shut down; wired by daemonrun.
	stop func()
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, stop func(), logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, stop: stop, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Governor", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		stop:      stop,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	stop   func()
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.RunID = status.Loop.RunID
	resp.Mode = string(status.Loop.Mode)
	resp.GameDetected = status.Loop.Signals.Game
	resp.TrainDetected = status.Loop.Signals.Training
	resp.Tick = status.Loop.Tick
	for _, subsystem := range status.Loop.Pending {
		resp.Pending = append(resp.Pending, string(subsystem))
	}
	resp.PausePresent = status.PausePresent
	resp.StartedAt = status.Loop.StartedAt
	resp.LastTransition = status.Loop.LastTransition
	resp.LastTrigger = status.Loop.LastTrigger
	resp.LockPath = status.LockFilePath
	resp.HistoryDBPath = status.HistoryDBPath
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	if s.stop != nil {
		s.stop()
	} else {
		s.daemon.Stop()
	}
	resp.Stopped = true
	s.log().Info("daemon stopped via ipc")
	return nil
}

func (s *service) Pause(req PauseRequest, resp *PauseResponse) error {
	if err := s.daemon.SetPause(req.On); err != nil {
		return err
	}
	resp.Paused = req.On
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Transitions = make([]Transition, 0, len(entries))
	for _, entry := range entries {
		outcomes := make(map[string]string, len(entry.Outcomes))
		for subsystem, outcome := range entry.Outcomes {
			outcomes[string(subsystem)] = outcome
		}
		resp.Transitions = append(resp.Transitions, Transition{
			OccurredAt: entry.OccurredAt,
			From:       string(entry.From),
			To:         string(entry.To),
			Trigger:    entry.Trigger,
			Outcomes:   outcomes,
		})
	}
	return nil
}
