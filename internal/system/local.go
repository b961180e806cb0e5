package system

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/company"
)

var ErrQueueFull = errors.New("command queue full")

// Request is a command issued on this node.
type Request struct {
	Company company.ID
	Inv     command.Invocation
}

// LocalQueue hands commands from other goroutines to the game loop.
type LocalQueue struct {
	ch      chan Request
	table   *command.Table
	company company.ID
}

func NewLocalQueue(table *command.Table, local company.ID, size int) *LocalQueue {
	if size <= 0 {
		size = 64
	}
	return &LocalQueue{ch: make(chan Request, size), table: table, company: local}
}

// C is read by the input system.
func (q *LocalQueue) C() <-chan Request { return q.ch }

// Push queues a request without blocking.
func (q *LocalQueue) Push(r Request) error {
	select {
	case q.ch <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

type commandRequest struct {
	Kind   string          `json:"kind"`
	Flags  command.Flags   `json:"flags"`
	Args   json.RawMessage `json:"args"`
	Silent bool            `json:"silent"`
}

// ServeHTTP accepts {"kind": "...", "args": {...}} and queues it for the
// local company with FlagApply set. Ghost and already-charged flags are
// dropped.
func (q *LocalQueue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req commandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind, err := command.ParseKind(req.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	desc, _ := q.table.Lookup(kind)
	args, err := desc.DecodeArgs(req.Args)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flags := req.Flags.External() | command.FlagApply
	if req.Silent {
		flags |= command.FlagSilent
	}
	if err := q.Push(Request{Company: q.company, Inv: command.Invocation{Kind: kind, Flags: flags, Args: args}}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
