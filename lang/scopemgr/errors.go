package scopemgr

import "errors"

// ErrLoad is returned by Load when bnd is not found in any visible scope:
// the common "undefined reference" diagnostic the evaluator surfaces to the
// source program's author.
var ErrLoad = errors.New("scopemgr: name not found in any visible scope")

// ErrScope covers the scope-stack misuses the manager refuses: a
// push_closure_scope or rename_closure with no matching archive, and the
// end-of-program pop of the global frame itself.
var ErrScope = errors.New("scopemgr: scope error")
