package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"autorip/internal/daemon"
	"autorip/internal/history"
	"autorip/internal/logging"
)

const serviceName = "Autorip"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. shutdown is
// invoked when a client requests daemon shutdown.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, shutdown func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx, shutdown: shutdown}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the server is closed.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
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
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
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

// Close stops the server and removes the socket file. Open client
// connections are served until the clients hang up.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	started, err := s.daemon.StartPolling()
	if err != nil {
		resp.Message = err.Error()
		return nil
	}
	resp.Started = started
	if started {
		resp.Message = "polling started"
		s.logger.Info("polling started via IPC", logging.String(logging.FieldEventType, "ipc_poll_start"))
	} else {
		resp.Message = "polling already running"
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	resp.Stopped = s.daemon.StopPolling()
	if resp.Stopped {
		resp.Message = "polling stopped"
		s.logger.Info("polling stopped via IPC", logging.String(logging.FieldEventType, "ipc_poll_stop"))
	} else {
		resp.Message = "polling was not running"
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.Polling = status.Polling
	resp.Phase = status.Phase.String()
	resp.CurrentOperation = status.CurrentOperation
	resp.Mode = string(status.Mode)
	resp.IntervalSeconds = int(status.Interval.Seconds())
	resp.LastTransition = status.LastTransition
	resp.NetlinkActive = status.NetlinkActive
	resp.HistoryPath = status.HistoryPath
	resp.LockPath = status.LockFilePath
	resp.PID = os.Getpid()
	resp.Tracked = make([]TrackedDisc, 0, len(status.Tracked))
	for _, tracked := range status.Tracked {
		resp.Tracked = append(resp.Tracked, TrackedDisc{DriveID: tracked.DriveID, Title: tracked.Title})
	}
	if status.LastRun != nil {
		entry := FromHistoryEntry(*status.LastRun)
		resp.LastRun = &entry
	}
	return nil
}

func (s *service) Scan(_ ScanRequest, resp *ScanResponse) error {
	resp.Started = s.daemon.Scan()
	if resp.Started {
		resp.Message = "scan started"
	} else {
		resp.Message = "scan skipped: polling stopped or an operation is in flight"
	}
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, FromHistoryEntry(entry))
	}
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	if s.shutdown == nil {
		return errors.New("shutdown not supported")
	}
	s.logger.Info("daemon shutdown requested via IPC", logging.String(logging.FieldEventType, "ipc_shutdown"))
	s.shutdown()
	resp.Accepted = true
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

// FromHistoryEntry converts a journaled run to its wire form.
func FromHistoryEntry(entry history.Entry) HistoryEntry {
	out := HistoryEntry{
		ID:         entry.ID,
		Mode:       entry.Mode,
		Status:     string(entry.Status),
		Error:      entry.Error,
		StartedAt:  entry.StartedAt,
		FinishedAt: entry.FinishedAt,
		Discs:      make([]HistoryDisc, 0, len(entry.Discs)),
	}
	for _, d := range entry.Discs {
		out.Discs = append(out.Discs, HistoryDisc(d))
	}
	return out
}
