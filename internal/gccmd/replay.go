package gccmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mna/mainer"
	"github.com/mna/nenuphar-gc/lang/binding"
	"github.com/mna/nenuphar-gc/lang/heap"
	"github.com/mna/nenuphar-gc/lang/scopemgr"
)

// ReplayFiles replays each script file in turn against a single fresh
// Manager, printing the outcome of every line to stdio.Stdout. It stops at
// the first line that fails and reports the error to stdio.Stderr.
func ReplayFiles(ctx context.Context, stdio mainer.Stdio, cacheCapacity int, gcOnCallReturn bool, files ...string) error {
	mgr := scopemgr.New(cacheCapacity)
	r := &replayer{mgr: mgr, gcOnCallReturn: gcOnCallReturn, env: make(map[string]heap.Value), out: stdio.Stdout}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			fmt.Fprintf(stdio.Stderr, "%s\n", err)
			return err
		}
		if err := r.replayFile(file); err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", file, err)
			return err
		}
	}
	return nil
}

type replayer struct {
	mgr            *scopemgr.Manager
	gcOnCallReturn bool
	env            map[string]heap.Value
	out            io.Writer
}

func (r *replayer) replayFile(file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := r.exec(line); err != nil {
			return fmt.Errorf("line %d: %q: %w", lineNo, line, err)
		}
	}
	return sc.Err()
}

func (r *replayer) exec(line string) error {
	fields := strings.Fields(line)
	op, rest := fields[0], fields[1:]

	switch op {
	case "push_scope":
		if len(rest) != 1 {
			return fmt.Errorf("push_scope wants exactly one argument (call|block)")
		}
		isCall, err := parseTag(rest[0])
		if err != nil {
			return err
		}
		r.mgr.PushScope(isCall)
		fmt.Fprintf(r.out, "push_scope %s: ok\n", rest[0])
		return nil

	case "push_closure_scope":
		if len(rest) != 1 {
			return fmt.Errorf("push_closure_scope wants exactly one argument (name)")
		}
		v, ok := r.env[rest[0]]
		if !ok {
			return fmt.Errorf("unknown name %q", rest[0])
		}
		if err := r.mgr.PushClosureScope(v.Unique); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "push_closure_scope %s: ok\n", rest[0])
		return nil

	case "rename_closure":
		if len(rest) != 2 {
			return fmt.Errorf("rename_closure wants exactly two arguments (old new)")
		}
		oldV, ok := r.env[rest[0]]
		if !ok {
			return fmt.Errorf("unknown name %q", rest[0])
		}
		newV, ok := r.env[rest[1]]
		if !ok {
			return fmt.Errorf("unknown name %q", rest[1])
		}
		if err := r.mgr.RenameClosure(oldV.Unique, newV.Unique); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "rename_closure %s %s: ok\n", rest[0], rest[1])
		return nil

	case "pop_scope":
		var closureName string
		gcYield := false
		for _, tok := range rest {
			switch {
			case tok == "gc_yield":
				gcYield = true
			case strings.HasPrefix(tok, "closure="):
				closureName = strings.TrimPrefix(tok, "closure=")
			default:
				return fmt.Errorf("unrecognised pop_scope argument %q", tok)
			}
		}

		var returning *binding.UniqueBinding
		if closureName != "" {
			v, ok := r.env[closureName]
			if !ok {
				return fmt.Errorf("unknown name %q", closureName)
			}
			u := v.Unique
			returning = &u
			gcYield = gcYield || r.gcOnCallReturn
		}

		if err := r.mgr.PopScope(returning, gcYield); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "pop_scope: ok (heap size %d)\n", r.mgr.HeapLen())
		return nil

	case "alloc":
		if len(rest) < 2 {
			return fmt.Errorf("alloc wants at least two arguments (name kind ...)")
		}
		return r.alloc(rest[0], rest[1], rest[2:])

	case "load":
		if len(rest) != 1 {
			return fmt.Errorf("load wants exactly one argument (name)")
		}
		name := rest[0]
		existing, ok := r.env[name]
		bnd := binding.Binding(name)
		if ok {
			bnd = existing.Binding
		}
		v, ptr, err := r.mgr.Load(bnd)
		if err != nil {
			return err
		}
		r.env[name] = v
		fmt.Fprintf(r.out, "load %s: %s\n", name, describe(v, ptr))
		return nil

	case "store":
		if len(rest) < 2 {
			return fmt.Errorf("store wants at least two arguments (name kind ...)")
		}
		return r.store(rest[0], rest[1], rest[2:])

	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

func parseTag(s string) (isCall bool, err error) {
	switch s {
	case "call":
		return true, nil
	case "block":
		return false, nil
	default:
		return false, fmt.Errorf("expected call or block, got %q", s)
	}
}

func (r *replayer) alloc(name, kind string, rest []string) error {
	v, ptr, err := buildValue(name, kind, rest)
	if err != nil {
		return err
	}
	if existing, ok := r.env[name]; ok {
		v.Unique = existing.Unique
	}
	if err := r.mgr.Alloc(v, ptr); err != nil {
		return err
	}
	r.env[name] = v
	fmt.Fprintf(r.out, "alloc %s: %s\n", name, describe(v, ptr))
	return nil
}

func (r *replayer) store(name, kind string, rest []string) error {
	existing, ok := r.env[name]
	if !ok {
		return fmt.Errorf("unknown name %q; load or alloc it first", name)
	}
	v, ptr, err := buildValue(name, kind, rest)
	if err != nil {
		return err
	}
	v.Binding = existing.Binding
	v.Unique = existing.Unique
	if err := r.mgr.Store(v, ptr); err != nil {
		return err
	}
	r.env[name] = v
	fmt.Fprintf(r.out, "store %s: %s\n", name, describe(v, ptr))
	return nil
}

func buildValue(name, kind string, rest []string) (heap.Value, *heap.Pointee, error) {
	bnd := binding.Binding(name)
	switch kind {
	case "num":
		if len(rest) != 1 {
			return heap.Value{}, nil, fmt.Errorf("num wants exactly one argument")
		}
		n, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return heap.Value{}, nil, fmt.Errorf("invalid number %q: %w", rest[0], err)
		}
		return heap.NewNum(bnd, n), nil, nil

	case "bool":
		if len(rest) != 1 {
			return heap.Value{}, nil, fmt.Errorf("bool wants exactly one argument")
		}
		b, err := strconv.ParseBool(rest[0])
		if err != nil {
			return heap.Value{}, nil, fmt.Errorf("invalid bool %q: %w", rest[0], err)
		}
		return heap.NewBool(bnd, b), nil, nil

	case "null":
		return heap.NewNull(bnd), nil, nil

	case "undefined":
		return heap.NewUndefined(bnd), nil, nil

	case "str":
		s := strings.Join(rest, " ")
		v := heap.NewPtr(bnd, heap.PtrStr)
		p := heap.NewStrPointee(s)
		return v, &p, nil

	case "obj":
		v := heap.NewPtr(bnd, heap.PtrObj)
		p := heap.NewObjPointee(heap.NewObject(nil))
		return v, &p, nil

	case "fn":
		var fnName *string
		if len(rest) > 0 {
			n := strings.Join(rest, " ")
			fnName = &n
		}
		v := heap.NewPtr(bnd, heap.PtrFn)
		p := heap.NewFnPointee(&heap.Fn{Name: fnName})
		return v, &p, nil

	default:
		return heap.Value{}, nil, fmt.Errorf("unknown value kind %q", kind)
	}
}

func describe(v heap.Value, ptr *heap.Pointee) string {
	if ptr != nil {
		return fmt.Sprintf("%s -> %s", v, *ptr)
	}
	return v.String()
}
