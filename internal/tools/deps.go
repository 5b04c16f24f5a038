package tools

import (
	"jaybrain/internal/browser"
	"jaybrain/internal/config"
	"jaybrain/internal/forge"
	"jaybrain/internal/notify"
	"jaybrain/internal/pulse"
	"jaybrain/internal/retrieval"
	"jaybrain/internal/store"
	"jaybrain/internal/trash"
)

// Deps carries everything the tool handlers need. The serve command builds
// one Deps and registers every family against it.
type Deps struct {
	Cfg       *config.Config
	Store     *store.Store
	Retrieval *retrieval.Engine
	Forge     *forge.Engine
	Pulse     *pulse.Reader
	Trash     *trash.Manager
	Browser   *browser.Manager
	Notifier  notify.Notifier
	LockPath  string // daemon lock file, for daemon_status
}

// errorResult is the in-band not-found/conflict shape: tools return it as a
// normal payload so the assistant sees a structured miss, not a protocol
// failure.
type errorResult struct {
	Error string `json:"error"`
}

func notFound(what, id string) errorResult {
	return errorResult{Error: what + " not found: " + id}
}

// statusResult reports conflict-ish outcomes (already_queued, occupied, ...).
type statusResult struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// RegisterAll mounts every tool family on the registry.
func RegisterAll(reg *Registry, deps *Deps) {
	registerMemoryTools(reg, deps)
	registerTaskTools(reg, deps)
	registerSessionTools(reg, deps)
	registerKnowledgeTools(reg, deps)
	registerForgeTools(reg, deps)
	registerGraphTools(reg, deps)
	registerJobTools(reg, deps)
	registerLifeTools(reg, deps)
	registerPulseTools(reg, deps)
	registerDaemonTools(reg, deps)
	registerTrashTools(reg, deps)
	registerProfileTools(reg, deps)
	registerFileTools(reg, deps)
	registerBrowserTools(reg, deps)
	registerAuxTools(reg, deps)
}
