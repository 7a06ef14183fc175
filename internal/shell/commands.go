package shell

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"unicode"

	"kvlog/internal/store"
)

// CommandContext holds the state available to command handlers.
type CommandContext struct {
	Store store.Store
	Out   io.Writer
	Args  []string
	// Rest is the raw line after the command name, whitespace intact
	// except at the front.
	Rest string
}

// CommandHandler runs one command. Returning true ends the session.
type CommandHandler func(ctx CommandContext) bool

// Command describes a registered shell command.
type Command struct {
	Usage   string // e.g. "insert <key> <value>"; defaults to the name
	Help    string
	MinArgs int
	Handler CommandHandler
}

// Registry maps command names to handlers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []string // insertion order for stable help output
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command. Registering the same name twice overwrites the
// previous entry. Panics if cmd.Handler is nil.
func (r *Registry) Register(name string, cmd Command) {
	if cmd.Handler == nil {
		panic("shell: Register called with nil handler for " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, name)
	}
	r.commands[name] = cmd
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Dispatch parses a command line and calls the matching handler.
// Returns true if the session should end.
func (r *Registry) Dispatch(line string, st store.Store, out io.Writer) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	name := strings.ToLower(parts[0])
	args := parts[1:]

	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		_, _ = fmt.Fprintf(out, "unknown command: %s (try help)\n", parts[0])
		return false
	}
	if len(args) < cmd.MinArgs {
		_, _ = fmt.Fprintf(out, "usage: %s\n", usage(name, cmd))
		return false
	}
	rest := afterField(line)
	return cmd.Handler(CommandContext{Store: st, Out: out, Args: args, Rest: rest})
}

// afterField drops the first whitespace-separated field of s and the
// whitespace around it.
func afterField(s string) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	}
	return ""
}

// HelpText lists all registered commands in registration order.
func (r *Registry) HelpText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	b.WriteString("commands:\n")
	for _, name := range r.order {
		cmd := r.commands[name]
		_, _ = fmt.Fprintf(&b, "  %-24s %s\n", usage(name, cmd), cmd.Help)
	}
	return b.String()
}

func usage(name string, cmd Command) string {
	if cmd.Usage != "" {
		return cmd.Usage
	}
	return name
}

// RegisterBuiltins registers help and quit.
func (r *Registry) RegisterBuiltins() {
	r.Register("help", Command{
		Help: "show this help",
		Handler: func(ctx CommandContext) bool {
			_, _ = fmt.Fprint(ctx.Out, r.HelpText())
			return false
		},
	})
	r.Register("quit", Command{
		Help: "end the session",
		Handler: func(ctx CommandContext) bool {
			return true
		},
	})
}

// RegisterStoreCommands registers get, insert, update, delete and stat.
// A value is everything after the key, inner whitespace included. Values are
// printed with %q so empty values and control bytes stay visible.
func (r *Registry) RegisterStoreCommands() {
	r.Register("get", Command{
		Usage:   "get <key>",
		Help:    "print the value of a key",
		MinArgs: 1,
		Handler: handleGet,
	})
	r.Register("insert", Command{
		Usage:   "insert <key> <value>",
		Help:    "append a value for a key",
		MinArgs: 2,
		Handler: handleWrite("inserted", store.Store.Insert),
	})
	r.Register("update", Command{
		Usage:   "update <key> <value>",
		Help:    "same as insert",
		MinArgs: 2,
		Handler: handleWrite("updated", store.Store.Update),
	})
	r.Register("delete", Command{
		Usage:   "delete <key>",
		Help:    "set a key to the empty value",
		MinArgs: 1,
		Handler: handleDelete,
	})
	r.Register("stat", Command{
		Help:    "show key count and file size",
		Handler: handleStat,
	})
}

func handleGet(ctx CommandContext) bool {
	key := ctx.Args[0]
	val, ok, err := ctx.Store.Get([]byte(key))
	switch {
	case err != nil:
		_, _ = fmt.Fprintf(ctx.Out, "error: %v\n", err)
	case !ok:
		_, _ = fmt.Fprintf(ctx.Out, "%s: not found\n", key)
	default:
		_, _ = fmt.Fprintf(ctx.Out, "%s = %q\n", key, val)
	}
	return false
}

func handleWrite(verb string, write func(store.Store, []byte, []byte) error) CommandHandler {
	return func(ctx CommandContext) bool {
		key := ctx.Args[0]
		value := afterField(ctx.Rest)
		if err := write(ctx.Store, []byte(key), []byte(value)); err != nil {
			_, _ = fmt.Fprintf(ctx.Out, "error: %v\n", err)
			return false
		}
		_, _ = fmt.Fprintf(ctx.Out, "%s %s\n", verb, key)
		return false
	}
}

func handleDelete(ctx CommandContext) bool {
	key := ctx.Args[0]
	if err := ctx.Store.Delete([]byte(key)); err != nil {
		_, _ = fmt.Fprintf(ctx.Out, "error: %v\n", err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Out, "deleted %s\n", key)
	return false
}

func handleStat(ctx CommandContext) bool {
	stats, ok := ctx.Store.(store.Stats)
	if !ok {
		_, _ = fmt.Fprintln(ctx.Out, "stat: not supported by this engine")
		return false
	}
	size, err := stats.Size()
	if err != nil {
		_, _ = fmt.Fprintf(ctx.Out, "error: %v\n", err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Out, "keys: %d\nbytes: %d\n", stats.Len(), size)
	return false
}
