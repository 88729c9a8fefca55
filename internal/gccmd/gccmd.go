// Package gccmd implements the nenuphar-gc CLI: a small tool that replays a
// script of lang/scopemgr operations against a Manager and prints the
// outcome of each line to stdout. It exists for manual inspection of the
// scope/heap subsystem; it is an evaluator stand-in, not the evaluator
// itself (spec.md §1 places the real evaluator out of scope).
package gccmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"
)

const binName = "nenuphar-gc"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <script>...
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <script>...
       %[1]s -h|--help
       %[1]s -v|--version

Replays a script of lang/scopemgr operations, one per line, against a fresh
Manager, printing the outcome of each line to stdout. For manual inspection
of the scope manager and tracing heap; not part of the core packages and
not a language evaluator.

Each script line is one operation (blank lines and '#' comments ignored):
       push_scope call|block
       push_closure_scope <name>
       pop_scope [closure=<name>] [gc_yield]
       rename_closure <old> <new>
       alloc <name> num <n>
       alloc <name> bool true|false
       alloc <name> null
       alloc <name> undefined
       alloc <name> str <rest of line>
       alloc <name> obj
       alloc <name> fn [<fn name>]
       load <name>
       store <name> num <n>
       store <name> bool true|false
       store <name> str <rest of line>

<name> is a script-local label: the tool tracks, for each label, the last
Value produced by alloc/load/store, so later lines can refer back to it.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --cache-capacity <n>      Lookup cache capacity (default 64).
       --gc-on-call-return       Run a mark/sweep cycle on every pop_scope
                                 that returns a closure (closure=<name>),
                                 even without an explicit gc_yield on that
                                 line. Other pops, including pops of Call
                                 frames without closure=, are not affected.

More information on the %[1]s repository:
       https://github.com/mna/nenuphar-gc
`, binName)
)

// Cmd is the nenuphar-gc command. It follows internal/maincmd's shape: a
// flag-tagged struct driven by mainer.Parser, validated before Main dispatches.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	CacheCapacity  int  `flag:"cache-capacity"`
	GCOnCallReturn bool `flag:"gc-on-call-return"`

	args []string
}

func (c *Cmd) SetArgs(args []string) { c.args = args }

func (c *Cmd) SetFlags(map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no script file specified")
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = 64
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := ReplayFiles(ctx, stdio, c.CacheCapacity, c.GCOnCallReturn, c.args...); err != nil {
		return mainer.Failure
	}
	return mainer.Success
}
