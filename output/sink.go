package output

import (
	"context"
	"io"
	"strings"

	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/host"
	"github.com/mlld-lang/mlld-core/types"
)

// StateWrite is emitted by `/output expr to "state://key"` (spec.md
// §4.9) and returned to the host via the run's side-channel (spec.md
// §6: "{ output, stateWrites[] }").
type StateWrite struct {
	Path  string
	Value types.Value
}

// RouteOutput implements `/output expr to sink [as format]`'s sink
// dispatch (spec.md §4.9): a relative/absolute path writes a file; the
// literal `stdout` writes to the host's stdout writer; a `state://key`
// sink records a StateWrite instead of writing anything now.
func RouteOutput(ctx context.Context, sink string, data []byte, asData types.Value, fs host.FileSystem, stdout io.Writer) (*StateWrite, error) {
	switch {
	case sink == "stdout":
		if stdout == nil {
			return nil, errkind.New(errkind.Execution, "no stdout writer configured for /output to stdout")
		}
		_, err := stdout.Write(data)
		return nil, err
	case strings.HasPrefix(sink, "state://"):
		key := strings.TrimPrefix(sink, "state://")
		return &StateWrite{Path: key, Value: asData}, nil
	default:
		if fs == nil {
			return nil, errkind.New(errkind.Execution, "no filesystem capability configured for /output to "+sink)
		}
		if err := fs.WriteFile(ctx, sink, data); err != nil {
			return nil, errkind.Wrap(errkind.Execution, "failed to write output to "+sink, err)
		}
		return nil, nil
	}
}
