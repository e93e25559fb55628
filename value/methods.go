package value

import (
	"strings"

	"github.com/mlld-lang/mlld-core/types"
)

// Built-in methods kept deliberately conservative per spec.md §13
// decision 3: arrays get join/includes/filter/map/length/isArray,
// strings get toLowerCase/toUpperCase/split/trim/includes/slice, and
// isDefined is universal. filter/map take a callback Executable and so
// are dispatched by the eval package (they need environment access);
// every other method is pure data-in data-out and lives here.

// CallPureMethod executes an array/string/universal method that needs
// no callback or environment. ok is false for filter/map/isDefined,
// which the eval package must handle itself.
func CallPureMethod(recv types.Value, method string, args []types.Value) (types.Value, bool, error) {
	switch recv.Kind {
	case types.KindArray:
		return callArrayMethod(recv, method, args)
	case types.KindString:
		return callStringMethod(recv, method, args)
	default:
		return types.Value{}, false, nil
	}
}

func callArrayMethod(recv types.Value, method string, args []types.Value) (types.Value, bool, error) {
	switch method {
	case "join":
		sep := ","
		if len(args) > 0 {
			sep = args[0].Str
		}
		parts := make([]string, len(recv.Array))
		for i, e := range recv.Array {
			parts[i] = renderText(e)
		}
		return types.String(strings.Join(parts, sep)), true, nil
	case "includes":
		if len(args) == 0 {
			return types.Bool(false), true, nil
		}
		for _, e := range recv.Array {
			if e.Equal(args[0]) {
				return types.Bool(true), true, nil
			}
		}
		return types.Bool(false), true, nil
	case "length":
		return types.Number(float64(len(recv.Array))), true, nil
	case "isArray":
		return types.Bool(true), true, nil
	default:
		return types.Value{}, false, nil
	}
}

func callStringMethod(recv types.Value, method string, args []types.Value) (types.Value, bool, error) {
	switch method {
	case "toLowerCase":
		return types.String(strings.ToLower(recv.Str)), true, nil
	case "toUpperCase":
		return types.String(strings.ToUpper(recv.Str)), true, nil
	case "trim":
		return types.String(strings.TrimSpace(recv.Str)), true, nil
	case "includes":
		needle := ""
		if len(args) > 0 {
			needle = args[0].Str
		}
		return types.Bool(strings.Contains(recv.Str, needle)), true, nil
	case "split":
		sep := ""
		if len(args) > 0 {
			sep = args[0].Str
		}
		parts := strings.Split(recv.Str, sep)
		items := make([]types.Value, len(parts))
		for i, p := range parts {
			items[i] = types.String(p)
		}
		return types.Array(items...), true, nil
	case "slice":
		start, end := 0, len(recv.Str)
		if len(args) > 0 {
			start = clampIndex(int(args[0].Num), len(recv.Str))
		}
		if len(args) > 1 {
			end = clampIndex(int(args[1].Num), len(recv.Str))
		}
		if start > end {
			start = end
		}
		return types.String(recv.Str[start:end]), true, nil
	case "isArray":
		return types.Bool(false), true, nil
	default:
		return types.Value{}, false, nil
	}
}

func clampIndex(i, length int) int {
	if i < 0 {
		i += length
	}
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}

// IsDefined implements the universal `.isDefined()` method: true unless
// the underlying Variable lookup failed (the eval package calls this
// with a bool already resolved from Environment.get, rather than from
// a Value, since "defined" is a property of the reference, not the
// value).
func IsDefined(found bool) types.Value {
	return types.Bool(found)
}
