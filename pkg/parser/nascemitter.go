package parser

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Operator binding strength, weakest first. Unary operators bind tighter
// than any binary.
const (
	_ int = iota
	LOGICAL_OR  // ||
	LOGICAL_AND // &&
	BITWISE_OR  // |
	BITWISE_XOR // ^
	BITWISE_AND // &
	EQUALITY    // == !=
	COMPARISON  // < <= > >=
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // - ~ ++ --
)

var precedences = map[string]int{
	"||": LOGICAL_OR,
	"&&": LOGICAL_AND,
	"|":  BITWISE_OR,
	"^":  BITWISE_XOR,
	"&":  BITWISE_AND,
	"==": EQUALITY,
	"!=": EQUALITY,
	"<":  COMPARISON,
	"<=": COMPARISON,
	">":  COMPARISON,
	">=": COMPARISON,
	"+":  SUM,
	"-":  SUM,
	"*":  PRODUCT,
	"/":  PRODUCT,
	"%":  PRODUCT,
}

// EmitterOptions controls dialect details of the generated source.
type EmitterOptions struct {
	// ImplicitReceivers are owner paths elided from call syntax.
	ImplicitReceivers []string
	// ConstantPrefix precedes symbolic constants.
	ConstantPrefix string
	// UnprefixedDomains render their constants bare.
	UnprefixedDomains []string
}

// DefaultEmitterOptions returns the settings of the reference compiler.
func DefaultEmitterOptions() EmitterOptions {
	return EmitterOptions{
		ImplicitReceivers: []string{"myself", "gg"},
		ConstantPrefix:    "@",
		UnprefixedDomains: []string{"PSTATE"},
	}
}

// EmitterOption mutates EmitterOptions.
type EmitterOption func(*EmitterOptions)

func WithImplicitReceivers(names ...string) EmitterOption {
	return func(o *EmitterOptions) { o.ImplicitReceivers = names }
}

func WithConstantPrefix(prefix string) EmitterOption {
	return func(o *EmitterOptions) { o.ConstantPrefix = prefix }
}

func WithUnprefixedDomains(domains ...string) EmitterOption {
	return func(o *EmitterOptions) { o.UnprefixedDomains = domains }
}

// NASCEmitter turns a lifted class back into NASC source.
type NASCEmitter struct {
	opts   EmitterOptions
	buffer bytes.Buffer
}

// NewNASCEmitter creates an emitter with the default dialect settings
// adjusted by opts.
func NewNASCEmitter(opts ...EmitterOption) *NASCEmitter {
	o := DefaultEmitterOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &NASCEmitter{opts: o}
}

// Emit renders a class. The result is re-indented and ends with a blank line.
func (e *NASCEmitter) Emit(class *ClassDeclaration) string {
	e.buffer.Reset()
	e.emitClass(class)
	e.write("}")
	return Indent(e.buffer.String()) + "\n"
}

// Helper methods

func (e *NASCEmitter) write(format string, args ...interface{}) {
	fmt.Fprintf(&e.buffer, format, args...)
}

func (e *NASCEmitter) writeLine(format string, args ...interface{}) {
	fmt.Fprintf(&e.buffer, format, args...)
	e.buffer.WriteString("\n")
}

// --- Declarations ---

func (e *NASCEmitter) emitClass(class *ClassDeclaration) {
	switch class.Kind {
	case NPCEvent:
		e.writeLine("set_compiler_opt base_event_type(%sNTYPE_NPC_EVENT)\n", e.opts.ConstantPrefix)
	case MakerEvent:
		e.writeLine("set_compiler_opt base_event_type(%sNTYPE_MAKER_EVENT)\n", e.opts.ConstantPrefix)
	}

	e.write("class %s", class.Name)
	if class.Super != "" {
		e.write(" : %s", class.Super)
	}
	e.writeLine(" {")

	if len(class.Parameters) > 0 {
		e.writeLine("parameter:")
		for _, param := range class.Parameters {
			e.emitParameter(param)
		}
	}

	if len(class.Properties) > 0 {
		if len(class.Parameters) > 0 {
			e.writeLine("")
		}
		e.writeLine("property:")
		for _, prop := range class.Properties {
			e.emitProperty(prop)
		}
	}

	if len(class.Handlers) > 0 {
		if len(class.Parameters) > 0 || len(class.Properties) > 0 {
			e.writeLine("")
		}
		e.writeLine("handler:")
		for _, handler := range class.Handlers {
			e.emitHandler(handler)
		}
	}
}

func (e *NASCEmitter) emitParameter(param *ParameterDeclaration) {
	e.write("%s %s", param.Type, param.Name)
	if param.Value != nil {
		e.write(" = %s", e.expression(param.Value, nil, false))
	}
	e.writeLine(";")
}

func (e *NASCEmitter) emitProperty(prop *PropertyDeclaration) {
	e.write("%s %s = ", prop.Type, prop.Name)
	if len(prop.Rows) == 0 {
		e.writeLine("{};")
		return
	}

	rows := make([]string, len(prop.Rows))
	for i, row := range prop.Rows {
		rows[i] = "\n{" + strings.Join(row.Cells, "; ") + "}"
		if row.Comment != "" {
			rows[i] += " /* " + row.Comment + " */"
		}
	}
	e.writeLine("{%s\n};", strings.Join(rows, ";"))
}

func (e *NASCEmitter) emitHandler(handler *HandlerDeclaration) {
	names := make([]string, len(handler.Variables))
	for i, v := range handler.Variables {
		names[i] = v.Name
	}
	e.writeLine("EventHandler %s(%s) {", handler.Name, strings.Join(names, ", "))
	e.emitBlock(handler.Body)
	e.writeLine("}")
}

// --- Statements ---

func (e *NASCEmitter) emitBlock(block *BlockStatement) {
	for _, s := range block.Statements {
		e.emitStatement(s)
		e.write("\n")
	}
}

func (e *NASCEmitter) emitStatement(stmt Statement) {
	switch s := stmt.(type) {
	case *ExpressionStatement:
		e.write("%s;", e.expression(s.Expression, nil, false))
	case *AssignStatement:
		e.write("%s;", e.expression(s.Assign, nil, false))
	case *IfStatement:
		e.emitIfStatement(s)
	case *WhileStatement:
		e.writeLine("while (%s) {", e.expression(s.Condition, nil, false))
		e.emitBlock(s.Body)
		e.write("}")
	case *ForStatement:
		e.writeLine("for (%s; %s; %s) {",
			e.expression(s.Init, nil, false),
			e.expression(s.Condition, nil, false),
			e.expression(s.Update, nil, false))
		e.emitBlock(s.Body)
		e.write("}")
	case *SelectStatement:
		e.emitSelectStatement(s)
	case *ReturnStatement:
		e.write("return;")
	case *BreakStatement:
		e.write("break;")
	case *SuperStatement:
		e.write("super;")
	case *BlockStatement:
		e.emitBlock(s)
	default:
		panic(fmt.Sprintf("nasc emitter: unhandled statement %T", s))
	}
}

func (e *NASCEmitter) emitIfStatement(stmt *IfStatement) {
	e.writeLine("if (%s) {", e.expression(stmt.Condition, nil, false))
	e.emitBlock(stmt.Then)
	e.write("}")

	if stmt.Else == nil || stmt.Else.Len() == 0 {
		return
	}
	if stmt.Else.Len() == 1 {
		if elseIf, ok := stmt.Else.Statements[0].(*IfStatement); ok {
			e.write(" else ")
			e.emitIfStatement(elseIf)
			return
		}
	}
	e.writeLine(" else {")
	e.emitBlock(stmt.Else)
	e.write("}")
}

func (e *NASCEmitter) emitSelectStatement(stmt *SelectStatement) {
	e.writeLine("select (%s) {", e.expression(stmt.Condition, nil, false))
	for _, c := range stmt.Cases {
		e.writeLine("case %s:", e.expression(c.Value, nil, false))
		e.emitBlock(c.Body)
	}
	e.write("}")
}

// --- Expressions ---

// expression renders expr as a child of parent; right marks the right
// operand of a binary parent.
func (e *NASCEmitter) expression(expr, parent Expression, right bool) string {
	switch ex := expr.(type) {
	case *IntegerLiteral:
		if isBitwiseContext(parent) {
			return fmt.Sprintf("0x%x", uint32(int32(ex.Value)))
		}
		return strconv.Itoa(ex.Value)
	case *FloatLiteral:
		return formatFloat(ex.Value)
	case *StringLiteral:
		return `"` + ex.Value + `"`
	case *ConstantExpression:
		if e.isUnprefixed(ex.Domain) {
			return ex.Name
		}
		return e.opts.ConstantPrefix + ex.Name
	case *ParameterExpression:
		return ex.Name
	case *PropertyExpression:
		return ex.Name
	case *VariableExpression:
		if ex.Object == nil {
			return ex.Name
		}
		return e.expression(ex.Object, ex, false) + "." + ex.Name
	case *UnaryExpression:
		operand := e.expression(ex.Operand, ex, false)
		if wrapsUnaryOperand(ex) {
			operand = "(" + operand + ")"
		}
		return ex.Operator + operand
	case *BinaryExpression:
		s := e.expression(ex.Left, ex, false) + " " + ex.Operator + " " + e.expression(ex.Right, ex, true)
		if needsParens(ex, parent, right) {
			return "(" + s + ")"
		}
		return s
	case *AssignExpression:
		return e.assignment(ex)
	case *CallExpression:
		return e.call(ex)
	case nil:
		return ""
	}
	panic(fmt.Sprintf("nasc emitter: unhandled expression %T", expr))
}

// wrapsUnaryOperand keeps `-(-x)` from reading back as a decrement and
// `-(a + b)` from binding to a alone.
func wrapsUnaryOperand(u *UnaryExpression) bool {
	switch op := u.Operand.(type) {
	case *BinaryExpression, *AssignExpression, *UnaryExpression:
		return true
	case *IntegerLiteral:
		return u.Operator == "-" && op.Value < 0
	case *FloatLiteral:
		return u.Operator == "-" && op.Value < 0
	}
	return false
}

// assignment renders `x = x + 1` as `++x` and `x = x - 1` as `--x`.
func (e *NASCEmitter) assignment(assign *AssignExpression) string {
	target := e.expression(assign.Target, nil, false)
	if bin, ok := assign.Value.(*BinaryExpression); ok {
		left := e.expression(bin.Left, nil, false)
		right := e.expression(bin.Right, nil, false)
		switch {
		case bin.Operator == "+" && (left == target && isOne(bin.Right) || right == target && isOne(bin.Left)):
			return "++" + target
		case bin.Operator == "-" && left == target && isOne(bin.Right):
			return "--" + target
		}
	}
	return target + " = " + e.expression(assign.Value, assign, false)
}

func (e *NASCEmitter) call(call *CallExpression) string {
	args := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		args[i] = e.expression(arg, call, false)
	}

	var out strings.Builder
	if call.Object != nil {
		out.WriteString(e.elideReceiver(e.expression(call.Object, call, false) + "."))
	}
	out.WriteString(call.Function)
	out.WriteString("(" + strings.Join(args, ", ") + ")")
	if call.Comment != "" {
		out.WriteString(" /* " + call.Comment + " */")
	}
	return out.String()
}

// elideReceiver drops a leading implicit receiver from an owner path.
func (e *NASCEmitter) elideReceiver(owner string) string {
	for _, name := range e.opts.ImplicitReceivers {
		if rest, ok := strings.CutPrefix(owner, name+"."); ok {
			return rest
		}
	}
	return owner
}

func (e *NASCEmitter) isUnprefixed(domain string) bool {
	for _, d := range e.opts.UnprefixedDomains {
		if d == domain {
			return true
		}
	}
	return false
}

func isOne(expr Expression) bool {
	il, ok := expr.(*IntegerLiteral)
	return ok && il.Value == 1
}

func isBitwiseContext(parent Expression) bool {
	switch p := parent.(type) {
	case *BinaryExpression:
		return p.Operator == "&" || p.Operator == "|" || p.Operator == "^"
	case *UnaryExpression:
		return p.Operator == "~"
	}
	return false
}

// needsParens decides whether a binary child of parent needs grouping for
// the text to re-parse into the same tree.
func needsParens(child *BinaryExpression, parent Expression, right bool) bool {
	switch p := parent.(type) {
	case *UnaryExpression:
		return false // the unary case wraps its own operand
	case *BinaryExpression:
		cp, pp := precedences[child.Operator], precedences[p.Operator]
		if cp != pp {
			return cp < pp
		}
		return right && !regroupable(p.Operator, child.Operator)
	}
	return false
}

// regroupable reports whether `a parent (b child c)` equals
// `(a parent b) child c`, so the right operand can drop its parentheses.
func regroupable(parent, child string) bool {
	switch parent {
	case "+":
		return child == "+" || child == "-"
	case "*", "&&", "||", "&", "|", "^":
		return child == parent
	}
	return false
}

// formatFloat keeps a single decimal when that is exact, otherwise the
// shortest representation that round-trips.
func formatFloat(f float64) string {
	if scaled := f * 10; scaled == math.Trunc(scaled) {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
