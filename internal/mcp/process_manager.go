package mcp

import (
	"sync"
)

// ServerStatus represents the status of a registry
type ServerStatus string

const (
	// StatusAvailable means at least one process is live.
	StatusAvailable ServerStatus = "available"
	// StatusIdle means no process is live. Between queries this is normal.
	StatusIdle ServerStatus = "idle"
)

// ServerHealth is a point-in-time view of one registry.
type ServerHealth struct {
	Status  ServerStatus `json:"status"`
	Active  int          `json:"active"`
	Crashes int          `json:"crashes"`
}

// ProcessManager counts live registry processes and crashes by name. It is
// the only state shared between concurrent queries. Crash counts never
// decrease.
type ProcessManager struct {
	active  map[string]int
	crashes map[string]int
	mu      sync.RWMutex
}

// NewProcessManager creates a new ProcessManager
func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		active:  make(map[string]int),
		crashes: make(map[string]int),
	}
}

// Register makes serverName visible in Snapshot before its first process.
func (p *ProcessManager) Register(serverName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.active[serverName]; !ok {
		p.active[serverName] = 0
	}
}

// GetStatus returns the current status of a server
func (p *ProcessManager) GetStatus(serverName string) ServerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.active[serverName] > 0 {
		return StatusAvailable
	}
	return StatusIdle
}

// Acquire records a newly spawned process and returns the number of live
// processes for serverName.
func (p *ProcessManager) Acquire(serverName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[serverName]++
	return p.active[serverName]
}

// Release records a torn-down process and returns the number still live.
func (p *ProcessManager) Release(serverName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active[serverName] > 0 {
		p.active[serverName]--
	}
	return p.active[serverName]
}

// ActiveProcesses returns the number of live processes for serverName.
func (p *ProcessManager) ActiveProcesses(serverName string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active[serverName]
}

// RecordCrash counts an unexpected disconnect and returns the total so far.
func (p *ProcessManager) RecordCrash(serverName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.active[serverName]; !ok {
		p.active[serverName] = 0
	}
	p.crashes[serverName]++
	return p.crashes[serverName]
}

// Crashes returns the number of crashes recorded for serverName.
func (p *ProcessManager) Crashes(serverName string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.crashes[serverName]
}

// Snapshot returns the health of every known server. The map is a copy.
func (p *ProcessManager) Snapshot() map[string]ServerHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshot := make(map[string]ServerHealth, len(p.active))
	for name, active := range p.active {
		status := StatusIdle
		if active > 0 {
			status = StatusAvailable
		}
		snapshot[name] = ServerHealth{
			Status:  status,
			Active:  active,
			Crashes: p.crashes[name],
		}
	}
	return snapshot
}
