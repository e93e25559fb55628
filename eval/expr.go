package eval

import (
	"context"
	"fmt"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

// EvalExpr evaluates an expression node to a StructuredValue (spec.md
// §4.3/§4.4). This is the single recursive entry point used by
// directives, template interpolation, pipeline heads, and field
// access.
func (ev *Evaluator) EvalExpr(ctx context.Context, n ast.Node, e *env.Env) (*value.StructuredValue, error) {
	switch node := n.(type) {
	case *ast.StringLiteral:
		return value.FromText(node.Value, value.Metadata{}), nil
	case *ast.NumberLiteral:
		return value.FromData(types.Number(node.Value), value.Metadata{}), nil
	case *ast.BooleanLiteral:
		return value.FromData(types.Bool(node.Value), value.Metadata{}), nil
	case *ast.NullLiteral:
		return value.FromData(types.Null(), value.Metadata{}), nil
	case *ast.ObjectLiteral:
		return ev.evalObjectLiteral(ctx, node, e)
	case *ast.ArrayLiteral:
		return ev.evalArrayLiteral(ctx, node, e)
	case *ast.VariableReference:
		return ev.evalVariableReference(ctx, node, e)
	case *ast.BinaryOp:
		return ev.evalBinaryOp(ctx, node, e)
	case *ast.UnaryOp:
		return ev.evalUnaryOp(ctx, node, e)
	case *ast.Ternary:
		return ev.evalTernary(ctx, node, e)
	case *ast.FileLoad:
		return ev.evalFileLoad(ctx, node, e)
	case *ast.ExecInvocation:
		return ev.evalExecInvocation(ctx, node, e)
	case *ast.Template:
		return ev.evalTemplate(ctx, node, e)
	case *ast.WhenExpression:
		return ev.evalWhenExpression(ctx, node, e)
	case *ast.ForExpression:
		return ev.evalForExpression(ctx, node, e)
	case *ast.LoopExpression:
		return ev.evalLoopExpression(ctx, node, e)
	case *ast.PipelineExpression:
		return ev.evalPipelineExpression(ctx, node, e)
	case *ast.Text:
		return value.FromText(node.Content, value.Metadata{}), nil
	default:
		return nil, errkind.New(errkind.ParseError, fmt.Sprintf("unsupported expression node %T", n)).
			At(errkind.Location{Line: n.Position().Line, Column: n.Position().Column}, e.CurrentFilePath())
	}
}

func (ev *Evaluator) evalObjectLiteral(ctx context.Context, node *ast.ObjectLiteral, e *env.Env) (*value.StructuredValue, error) {
	fields := make(map[string]types.Value, len(node.Keys))
	var metas []value.Metadata
	for _, k := range node.Keys {
		sv, err := ev.EvalExpr(ctx, node.Values[k], e)
		if err != nil {
			return nil, err
		}
		fields[k] = value.AsData(sv)
		metas = append(metas, sv.Mx)
	}
	return value.FromData(types.NewObject(node.Keys, fields), value.UnionMeta(metas...)), nil
}

func (ev *Evaluator) evalArrayLiteral(ctx context.Context, node *ast.ArrayLiteral, e *env.Env) (*value.StructuredValue, error) {
	items := make([]types.Value, len(node.Elements))
	var metas []value.Metadata
	for i, elemNode := range node.Elements {
		sv, err := ev.EvalExpr(ctx, elemNode, e)
		if err != nil {
			return nil, err
		}
		items[i] = value.AsData(sv)
		metas = append(metas, sv.Mx)
	}
	return value.FromData(types.Array(items...), value.UnionMeta(metas...)), nil
}

// evalVariableReference resolves `@name`, then walks .Fields applying
// field access, indexing, slicing, and method calls in order (spec.md
// §4.3.2).
func (ev *Evaluator) evalVariableReference(ctx context.Context, node *ast.VariableReference, e *env.Env) (*value.StructuredValue, error) {
	v, ok := e.Get(node.Identifier)
	if !ok {
		return nil, errkind.New(errkind.UndefinedRef, "undefined reference: @"+node.Identifier).
			At(errkind.Location{Line: node.Pos.Line, Column: node.Pos.Column}, e.CurrentFilePath())
	}
	current := v.Value
	if current == nil {
		current = value.FromData(types.Null(), value.Metadata{})
	}

	for i, field := range node.Fields {
		next, err := ev.applyFieldAccess(ctx, current, field, e)
		if err != nil {
			return nil, errkind.Wrap(errkind.FieldAccess, fmt.Sprintf("field access failed on @%s%s", node.Identifier, fieldPrefix(node.Fields[:i])), err)
		}
		current = next
	}
	return current, nil
}

func fieldPrefix(fields []ast.FieldAccess) string {
	s := ""
	for _, f := range fields {
		s += f.String()
	}
	return s
}

func (ev *Evaluator) applyFieldAccess(ctx context.Context, current *value.StructuredValue, field ast.FieldAccess, e *env.Env) (*value.StructuredValue, error) {
	data := value.AsData(current)
	switch field.Kind {
	case ast.FieldKindField:
		f, ok := data.Field(field.Name)
		if !ok {
			return nil, errkind.New(errkind.FieldAccess, "no field '"+field.Name+"'")
		}
		return value.FromData(f, current.Mx), nil
	case ast.FieldKindIndex:
		idxSV, err := ev.EvalExpr(ctx, field.Index, e)
		if err != nil {
			return nil, err
		}
		idx := int(value.AsData(idxSV).Num)
		item, ok := data.Index(idx)
		if !ok {
			return nil, errkind.New(errkind.FieldAccess, "index out of range")
		}
		return value.FromData(item, current.Mx), nil
	case ast.FieldKindSlice:
		return ev.applySlice(ctx, current, field, e)
	case ast.FieldKindCall:
		return ev.applyMethodCall(ctx, current, field, e)
	default:
		return nil, errkind.New(errkind.FieldAccess, "unsupported field access kind")
	}
}

func (ev *Evaluator) applySlice(ctx context.Context, current *value.StructuredValue, field ast.FieldAccess, e *env.Env) (*value.StructuredValue, error) {
	data := value.AsData(current)
	if data.Kind != types.KindArray {
		return nil, errkind.New(errkind.FieldAccess, "slice on non-array value")
	}
	start, end := 0, len(data.Array)
	if field.Index != nil {
		sv, err := ev.EvalExpr(ctx, field.Index, e)
		if err != nil {
			return nil, err
		}
		start = int(value.AsData(sv).Num)
	}
	if field.SliceEnd != nil {
		sv, err := ev.EvalExpr(ctx, field.SliceEnd, e)
		if err != nil {
			return nil, err
		}
		end = int(value.AsData(sv).Num)
	}
	if start < 0 {
		start = 0
	}
	if end > len(data.Array) {
		end = len(data.Array)
	}
	if start > end {
		start = end
	}
	return value.FromData(types.Array(data.Array[start:end]...), current.Mx), nil
}

// applyMethodCall dispatches built-in array/string methods (spec.md
// §4.3.2). filter/map need environment/executable access so they're
// handled here directly rather than in value.CallPureMethod.
func (ev *Evaluator) applyMethodCall(ctx context.Context, current *value.StructuredValue, field ast.FieldAccess, e *env.Env) (*value.StructuredValue, error) {
	data := value.AsData(current)

	if field.Name == "isDefined" {
		return value.FromData(value.IsDefined(true), current.Mx), nil
	}
	if field.Name == "filter" || field.Name == "map" {
		return ev.applyFilterOrMap(ctx, current, field, e)
	}

	args := make([]types.Value, len(field.Args))
	for i, a := range field.Args {
		sv, err := ev.EvalExpr(ctx, a, e)
		if err != nil {
			return nil, err
		}
		args[i] = value.AsData(sv)
	}

	result, ok, err := value.CallPureMethod(data, field.Name, args)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errkind.New(errkind.FieldAccess, "unknown method '"+field.Name+"'")
	}
	return value.FromData(result, current.Mx), nil
}

// applyFilterOrMap evaluates `.filter(@fn)`/`.map(@fn)`, invoking fn as
// an executable callback per array element (spec.md §4.3.2).
func (ev *Evaluator) applyFilterOrMap(ctx context.Context, current *value.StructuredValue, field ast.FieldAccess, e *env.Env) (*value.StructuredValue, error) {
	data := value.AsData(current)
	if data.Kind != types.KindArray {
		return nil, errkind.New(errkind.FieldAccess, field.Name+" on non-array value")
	}
	if len(field.Args) != 1 {
		return nil, errkind.New(errkind.FieldAccess, field.Name+" requires exactly one callback argument")
	}

	ref, ok := field.Args[0].(*ast.VariableReference)
	if !ok {
		return nil, errkind.New(errkind.FieldAccess, field.Name+" argument must reference an executable")
	}
	callback, ok := e.Get(ref.Identifier)
	if !ok || callback.Exec == nil {
		return nil, errkind.New(errkind.FieldAccess, field.Name+" callback @"+ref.Identifier+" is not an executable")
	}

	var out []types.Value
	for _, item := range data.Array {
		result, err := ev.invokeCallback(ctx, callback, []*value.StructuredValue{value.FromData(item, current.Mx)}, e)
		if err != nil {
			return nil, err
		}
		if field.Name == "filter" {
			if value.AsData(result).Truthy() {
				out = append(out, item)
			}
			continue
		}
		out = append(out, value.AsData(result))
	}
	return value.FromData(types.Array(out...), current.Mx), nil
}

func (ev *Evaluator) evalBinaryOp(ctx context.Context, node *ast.BinaryOp, e *env.Env) (*value.StructuredValue, error) {
	left, err := ev.EvalExpr(ctx, node.Left, e)
	if err != nil {
		return nil, err
	}
	// Short-circuit logical operators evaluate the right side
	// conditionally, per standard boolean-expression semantics.
	if node.Op == "&&" && !value.AsData(left).Truthy() {
		return left, nil
	}
	if node.Op == "||" && value.AsData(left).Truthy() {
		return left, nil
	}
	right, err := ev.EvalExpr(ctx, node.Right, e)
	if err != nil {
		return nil, err
	}
	mx := value.UnionMeta(left.Mx, right.Mx)
	result, err := applyBinaryOp(node.Op, value.AsData(left), value.AsData(right))
	if err != nil {
		return nil, err
	}
	return value.FromData(result, mx), nil
}

func applyBinaryOp(op string, l, r types.Value) (types.Value, error) {
	switch op {
	case "+":
		if l.Kind == types.KindString || r.Kind == types.KindString {
			return types.String(l.String() + r.String()), nil
		}
		return types.Number(l.Num + r.Num), nil
	case "-":
		return types.Number(l.Num - r.Num), nil
	case "*":
		return types.Number(l.Num * r.Num), nil
	case "/":
		if r.Num == 0 {
			return types.Value{}, errkind.New(errkind.Execution, "division by zero")
		}
		return types.Number(l.Num / r.Num), nil
	case "%":
		if r.Num == 0 {
			return types.Value{}, errkind.New(errkind.Execution, "division by zero")
		}
		return types.Number(float64(int64(l.Num) % int64(r.Num))), nil
	case "==":
		return types.Bool(l.Equal(r)), nil
	case "!=":
		return types.Bool(!l.Equal(r)), nil
	case "<":
		return types.Bool(l.Num < r.Num), nil
	case "<=":
		return types.Bool(l.Num <= r.Num), nil
	case ">":
		return types.Bool(l.Num > r.Num), nil
	case ">=":
		return types.Bool(l.Num >= r.Num), nil
	case "&&":
		return types.Bool(l.Truthy() && r.Truthy()), nil
	case "||":
		return types.Bool(l.Truthy() || r.Truthy()), nil
	default:
		return types.Value{}, errkind.New(errkind.Execution, "unknown binary operator "+op)
	}
}

func (ev *Evaluator) evalUnaryOp(ctx context.Context, node *ast.UnaryOp, e *env.Env) (*value.StructuredValue, error) {
	operand, err := ev.EvalExpr(ctx, node.Operand, e)
	if err != nil {
		return nil, err
	}
	data := value.AsData(operand)
	switch node.Op {
	case "!":
		return value.FromData(types.Bool(!data.Truthy()), operand.Mx), nil
	case "-":
		return value.FromData(types.Number(-data.Num), operand.Mx), nil
	default:
		return nil, errkind.New(errkind.Execution, "unknown unary operator "+node.Op)
	}
}

func (ev *Evaluator) evalTernary(ctx context.Context, node *ast.Ternary, e *env.Env) (*value.StructuredValue, error) {
	cond, err := ev.EvalExpr(ctx, node.Cond, e)
	if err != nil {
		return nil, err
	}
	if value.AsData(cond).Truthy() {
		return ev.EvalExpr(ctx, node.Then, e)
	}
	return ev.EvalExpr(ctx, node.Else, e)
}
