package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fastygo/companion/domain"
)

// CommandHandler changes state on the backend or in the session.
type CommandHandler func(ctx context.Context, args []string) (any, error)

// QueryHandler only reads.
type QueryHandler func(ctx context.Context, args []string) (any, error)

// Entry describes a registered name for usage output.
type Entry struct {
	Name    string
	Usage   string
	IsQuery bool
}

type registration struct {
	usage string
	cmd   CommandHandler
	qry   QueryHandler
}

// Dispatcher routes a named command or query to its handler.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]registration
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]registration)}
}

func (d *Dispatcher) RegisterCommand(name, usage string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = registration{usage: usage, cmd: handler}
}

func (d *Dispatcher) RegisterQuery(name, usage string, handler QueryHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = registration{usage: usage, qry: handler}
}

// Has reports whether name is registered.
func (d *Dispatcher) Has(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[name]
	return ok
}

// Execute runs name with args. Unknown names yield a NOT_FOUND domain error.
func (d *Dispatcher) Execute(ctx context.Context, name string, args []string) (any, error) {
	d.mu.RLock()
	reg, ok := d.handlers[name]
	d.mu.RUnlock()
	if !ok {
		return nil, domain.NewError(domain.ErrCodeNotFound, fmt.Sprintf("unknown command %q", name))
	}
	if reg.qry != nil {
		return reg.qry(ctx, args)
	}
	return reg.cmd(ctx, args)
}

// Entries lists registrations sorted by name.
func (d *Dispatcher) Entries() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Entry, 0, len(d.handlers))
	for name, reg := range d.handlers {
		out = append(out, Entry{Name: name, Usage: reg.usage, IsQuery: reg.qry != nil})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
