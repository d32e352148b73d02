// Unix domain socket server for thermite operator control, grounded on
// internal/operator/server.go.
//
// Protocol: newline-delimited JSON over a Unix domain socket.
// Socket path: /run/thermite/operator.sock (configurable).
// Permissions: 0600, owned by the process's own user.
//
// Commands (JSON request → JSON response):
//
//	{"cmd":"status"}
//	  → Returns the engine's current platform, function id, threads, and
//	    total iterations.
//	  → Response: {"ok":true,"platform":"HSW","function_id":5,"threads":8,"iterations":12345}
//
//	{"cmd":"switch","settings":[{"group":"L1","weight":4}]}
//	  → Publishes new payload settings and broadcasts SWITCH to every
//	    worker. Rate-limited by a token bucket (spec.md has no notion of
//	    this — thermite adds it so a misbehaving operator script cannot
//	    thrash the recompile path).
//	  → Response: {"ok":true}
//
//	{"cmd":"stop"}
//	  → Cancels the run's context, causing an early, clean shutdown.
//	  → Response: {"ok":true}
//
// Security:
//   - Socket is created with 0600 permissions.
//   - Each connection is handled in its own goroutine.
//   - Max concurrent connections: 4 (operator use only).
//   - Max request size: 4096 bytes.
//   - Connection timeout: 10s read/write.
package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/thermite/internal/payload"
)

const (
	maxConcurrentConns = 4
	maxRequestBytes    = 4096
	connTimeout        = 10 * time.Second
)

// EngineControl is the interface the operator server uses to inspect and
// mutate a running engine. Implemented by internal/controller.OperatorAdapter,
// which wraps a controller.Controller.
type EngineControl interface {
	Status() EngineStatus
	Switch(settings []payload.Setting) error
}

// EngineStatus mirrors controller.Status's fields, decoupling this package
// from importing internal/controller directly (which would create an
// import cycle if controller ever wanted to reference operator).
type EngineStatus struct {
	Platform   string
	FunctionID int
	Threads    int
	Iterations uint64
}

// Request is the JSON structure for operator commands.
type Request struct {
	Cmd      string           `json:"cmd"` // status | switch | stop
	Settings []SettingRequest `json:"settings,omitempty"`
}

// SettingRequest mirrors payload.Setting for the wire protocol.
type SettingRequest struct {
	Group  string `json:"group"`
	Weight int    `json:"weight"`
}

// Response is the JSON structure for operator command responses.
type Response struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	Platform   string `json:"platform,omitempty"`
	FunctionID int    `json:"function_id,omitempty"`
	Threads    int    `json:"threads,omitempty"`
	Iterations uint64 `json:"iterations,omitempty"`
}

// Server is the operator Unix domain socket server.
type Server struct {
	socketPath string
	engine     EngineControl
	cancelRun  context.CancelFunc
	rateLimit  *TokenBucket
	log        *zap.Logger
	sem        chan struct{}
}

// NewServer creates an operator Server. cancelRun is called to service a
// "stop" command; rateLimit guards "switch".
func NewServer(socketPath string, engine EngineControl, cancelRun context.CancelFunc, rateLimit *TokenBucket, log *zap.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		engine:     engine,
		cancelRun:  cancelRun,
		rateLimit:  rateLimit,
		log:        log,
		sem:        make(chan struct{}, maxConcurrentConns),
	}
}

// ListenAndServe starts the operator socket server, removing any stale
// socket file first. Blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("operator: remove stale socket %q: %w", s.socketPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("operator: mkdir %q: %w", filepath.Dir(s.socketPath), err)
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("operator: listen %q: %w", s.socketPath, err)
	}
	defer lis.Close()

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		return fmt.Errorf("operator: chmod %q: %w", s.socketPath, err)
	}

	s.log.Info("operator socket listening", zap.String("path", s.socketPath))

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Error("operator: accept error", zap.Error(err))
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
		default:
			s.log.Warn("operator: max connections reached, rejecting")
			_ = conn.Close()
			continue
		}

		go func(c net.Conn) {
			defer func() { <-s.sem }()
			defer c.Close()
			s.handleConn(c)
		}(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		s.log.Warn("operator: read error", zap.Error(err))
		return
	}

	var req Request
	if err := json.Unmarshal(buf[:n], &req); err != nil {
		s.writeResponse(conn, Response{OK: false, Error: "invalid JSON: " + err.Error()})
		return
	}

	resp := s.dispatch(req)
	s.writeResponse(conn, resp)
}

func (s *Server) dispatch(req Request) Response {
	switch req.Cmd {
	case "status":
		return s.cmdStatus()
	case "switch":
		return s.cmdSwitch(req)
	case "stop":
		return s.cmdStop()
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}

func (s *Server) cmdStatus() Response {
	st := s.engine.Status()
	return Response{
		OK:         true,
		Platform:   st.Platform,
		FunctionID: st.FunctionID,
		Threads:    st.Threads,
		Iterations: st.Iterations,
	}
}

func (s *Server) cmdSwitch(req Request) Response {
	if len(req.Settings) == 0 {
		return Response{OK: false, Error: "switch requires at least one setting"}
	}
	if s.rateLimit != nil && !s.rateLimit.Allow() {
		return Response{OK: false, Error: "rate limit exceeded, try again later"}
	}

	settings := make([]payload.Setting, len(req.Settings))
	for i, s2 := range req.Settings {
		settings[i] = payload.Setting{Group: s2.Group, Weight: s2.Weight}
	}
	if err := s.engine.Switch(settings); err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	s.log.Info("operator: switch dispatched", zap.Int("settings", len(settings)))
	return Response{OK: true}
}

func (s *Server) cmdStop() Response {
	if s.cancelRun == nil {
		return Response{OK: false, Error: "stop not supported: no cancel function configured"}
	}
	s.log.Info("operator: stop requested")
	s.cancelRun()
	return Response{OK: true}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}
