package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/khirotaka/bmi-mcp/internal/config"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// safeEnvVars are inherited from the parent; everything else must be listed
// in the server config.
var safeEnvVars = []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TZ", "TMPDIR", "LOG_LEVEL"}

// Launcher spawns one registry process per Dial.
type Launcher struct {
	cfg config.ServerConfig
	pm  *ProcessManager
}

// NewLauncher creates a Launcher for the configured registry command
func NewLauncher(cfg config.ServerConfig, pm *ProcessManager) *Launcher {
	if pm != nil {
		pm.Register(cfg.Name)
	}
	return &Launcher{cfg: cfg, pm: pm}
}

// Dial starts the registry process and connects to it over stdio. The
// handshake and readiness ping share the configured server timeout; a child
// that does not answer in time is killed and ErrTimeout returned. On any
// failure the process is killed before returning.
func (l *Launcher) Dial(ctx context.Context) (*Session, error) {
	cmd := exec.Command(l.cfg.Command, l.cfg.Args...)
	cmd.Env = buildEnv(l.cfg.Envs)
	cmd.Stderr = os.Stderr

	grace := time.Duration(l.cfg.ShutdownGrace) * time.Millisecond
	transport := &mcp.CommandTransport{
		Command:           cmd,
		TerminateDuration: grace,
	}

	timeout := time.Duration(l.cfg.Timeout) * time.Millisecond
	connectCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	session, err := Connect(connectCtx, transport, SessionOptions{
		Name:           l.cfg.Name,
		Timeout:        timeout,
		ProcessManager: l.pm,
	})
	if err != nil {
		// The process may have been started by CommandTransport
		killProcess(l.cfg.Name, cmd)
		return nil, fmt.Errorf("failed to start server %s: %w", l.cfg.Name, err)
	}

	live := 0
	if l.pm != nil {
		live = l.pm.Acquire(l.cfg.Name)
	}
	slog.Debug("Server process started", "server", l.cfg.Name, "pid", cmd.Process.Pid, "live_processes", live)

	session.kill = func() {
		killProcess(l.cfg.Name, cmd)
		if l.pm != nil {
			l.pm.Release(l.cfg.Name)
		}
	}
	return session, nil
}

// killProcess is the last resort after the transport's own SIGTERM/SIGKILL
// sequence. It is a no-op for processes that already exited.
func killProcess(name string, cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil {
		if !errors.Is(err, os.ErrProcessDone) {
			slog.Warn("Failed to kill process", "server", name, "error", err)
		}
		return
	}
	slog.Warn("Process killed after shutdown", "server", name)
}

func buildEnv(envs []config.EnvVar) []string {
	env := make([]string, 0, len(safeEnvVars)+len(envs))
	for _, key := range safeEnvVars {
		if val := os.Getenv(key); val != "" {
			env = append(env, fmt.Sprintf("%s=%s", key, val))
		}
	}
	for _, e := range envs {
		env = append(env, fmt.Sprintf("%s=%s", e.Name, e.Value))
	}
	return env
}
