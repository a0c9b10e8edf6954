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
	"time"

	"log/slog"

	"conveyor/internal/daemon"
	"conveyor/internal/logging"
	"conveyor/internal/logs"
	"conveyor/internal/queue"
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
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
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
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Conveyor", srv); err != nil {
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
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
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
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockFilePath
	resp.QueueDBPath = status.QueueDBPath
	resp.LastError = status.LastError
	resp.QueueStats = map[string]int{
		"total":    status.Queue.Total,
		"created":  status.Queue.Created,
		"running":  status.Queue.Running,
		"passed":   status.Queue.Passed,
		"failed":   status.Queue.Failed,
		"errored":  status.Queue.Errored,
		"canceled": status.Queue.Canceled,
	}
	for _, dep := range status.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return nil
}

func (s *service) BuildSubmit(req BuildSubmitRequest, resp *BuildSubmitResponse) error {
	build, err := s.daemon.SubmitBuild(s.ctx, req.Path)
	if err != nil {
		return err
	}
	resp.Build = FromBuild(build)
	s.logger.Info("build submitted via IPC",
		logging.String(logging.FieldEventType, "build_submit"),
		logging.Int64(logging.FieldBuildID, build.ID),
	)
	return nil
}

func (s *service) BuildList(req BuildListRequest, resp *BuildListResponse) error {
	statuses := make([]queue.BuildStatus, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := queue.ParseBuildStatus(status)
		if !ok {
			return fmt.Errorf("unknown build status %q", status)
		}
		statuses = append(statuses, parsed)
	}
	builds, err := s.daemon.ListBuilds(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Builds = make([]BuildSummary, 0, len(builds))
	for _, build := range builds {
		resp.Builds = append(resp.Builds, FromBuild(build))
	}
	return nil
}

func (s *service) BuildDescribe(req BuildDescribeRequest, resp *BuildDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid build id %d", req.ID)
	}
	build, jobs, err := s.daemon.DescribeBuild(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Build = FromBuild(build)
	resp.Jobs = make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, FromJob(job))
	}
	return nil
}

func (s *service) BuildCancel(req BuildCancelRequest, resp *BuildCancelResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid build id %d", req.ID)
	}
	build, err := s.daemon.CancelBuild(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Build = FromBuild(build)
	s.logger.Info("build canceled via IPC",
		logging.String(logging.FieldEventType, "build_cancel"),
		logging.Int64(logging.FieldBuildID, build.ID),
	)
	return nil
}

func (s *service) BuildRetry(req BuildRetryRequest, resp *BuildRetryResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid build id %d", req.ID)
	}
	build, err := s.daemon.RetryBuild(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Build = FromBuild(build)
	s.logger.Info("build requeued via IPC",
		logging.String(logging.FieldEventType, "build_retry"),
		logging.Int64(logging.FieldBuildID, build.ID),
	)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	path := s.daemon.LogPath()
	if req.BuildID > 0 {
		jobPath, err := s.daemon.JobLogPath(s.ctx, req.BuildID, req.JobNumber)
		if err != nil {
			return err
		}
		path = jobPath
	}

	opts := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
	}
	ctx := s.ctx
	if req.Follow && req.WaitMillis > 0 {
		opts.Wait = time.Duration(req.WaitMillis) * time.Millisecond
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, opts.Wait+time.Second)
		defer cancel()
	}

	result, err := logs.Tail(ctx, path, opts)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	resp.Path = path
	return nil
}

func (s *service) QueueClear(req QueueClearRequest, resp *QueueClearResponse) error {
	var (
		removed int64
		err     error
	)
	if req.FinishedOnly {
		removed, err = s.daemon.ClearFinished(s.ctx)
	} else {
		removed, err = s.daemon.ClearQueue(s.ctx)
	}
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int64("removed_count", removed),
	)
	return nil
}
