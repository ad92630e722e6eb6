package matcher

import "errors"

// errMaxRollbackZero is returned by Rollback when the matcher was
// constructed with maxRollbackTokens == 0, per §5's "max_rollback_tokens
// = 0 forbids any rollback call (error)".
var errMaxRollbackZero = errors.New("matcher: rollback called with max_rollback_tokens == 0")

// errRollbackExceedsLimit is returned by Rollback when n exceeds the
// matcher's configured maxRollbackTokens.
var errRollbackExceedsLimit = errors.New("matcher: rollback count exceeds max_rollback_tokens")
