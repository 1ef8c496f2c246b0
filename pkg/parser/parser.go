package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"nascdec/pkg/errors"
	"nascdec/pkg/lexer"
	"nascdec/pkg/source"
	"nascdec/pkg/symbols"
)

const debugParser = false

func debugPrintf(format string, args ...interface{}) {
	if debugParser {
		fmt.Printf("[Parser] "+format+"\n", args...)
	}
}

// DefaultIncrementWindow is the number of integer fetches that must precede
// `push_const 1; add|sub; assign` for it to read as ++/--.
const DefaultIncrementWindow = 2

// Options tunes the lifter.
type Options struct {
	IncrementWindow int
	Source          *source.SourceFile // Used for error positions only
}

// Option mutates Options.
type Option func(*Options)

// WithIncrementWindow overrides DefaultIncrementWindow.
func WithIncrementWindow(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.IncrementWindow = n
		}
	}
}

// WithSource attaches the listing so errors can quote the offending line.
func WithSource(src *source.SourceFile) Option {
	return func(o *Options) { o.Source = src }
}

// declMode routes rows that are not instructions.
type declMode int

const (
	modeNone declMode = iota
	modeParameters
	modeParameterString
	modeBuySellList
	modeTelPosList
	modeVariables
)

// Parser lifts the flat instruction stream of one class into an AST. A
// Parser is not safe for concurrent use; create one per goroutine.
type Parser struct {
	resolver symbols.Resolver
	opts     Options

	listing *lexer.ClassListing
	current *lexer.Instruction
	mode    declMode

	operands   stack[Expression]
	statements stack[openStatement]
	blocks     stack[*BlockStatement]
	branches   stack[lexer.Mnemonic]

	parameters map[string]string
	labels     map[lexer.Mnemonic]bool
	strings    map[lexer.Mnemonic]string

	class         *ClassDeclaration
	property      *PropertyDeclaration
	handler       *HandlerDeclaration
	pendingString *StringLiteral // multi-line parameter default being read
}

// NewParser creates a lifter resolving symbols through resolver.
func NewParser(resolver symbols.Resolver, opts ...Option) *Parser {
	o := Options{IncrementWindow: DefaultIncrementWindow}
	for _, opt := range opts {
		opt(&o)
	}
	return &Parser{resolver: resolver, opts: o}
}

func (p *Parser) reset(listing *lexer.ClassListing) {
	p.listing = listing
	p.current = nil
	p.mode = modeNone
	p.resetHandlerState()
	p.parameters = make(map[string]string)
	p.class = nil
	p.property = nil
	p.handler = nil
	p.pendingString = nil
}

func (p *Parser) resetHandlerState() {
	p.operands.Reset()
	p.statements.Reset()
	p.blocks.Reset()
	p.branches.Reset()
	p.labels = make(map[lexer.Mnemonic]bool)
	p.strings = make(map[lexer.Mnemonic]string)
}

// ParseClass lifts one class listing. Any error aborts the class.
func (p *Parser) ParseClass(listing *lexer.ClassListing) (*ClassDeclaration, errors.DecompileError) {
	p.reset(listing)

	for _, ins := range listing.Instructions {
		p.current = ins
		if err := p.parseInstruction(ins); err != nil {
			return nil, err
		}
	}

	if p.class == nil {
		p.current = nil
		return nil, p.malformed("listing has no class header")
	}
	return p.class, nil
}

func (p *Parser) parseInstruction(ins *lexer.Instruction) errors.DecompileError {
	// continuation lines of a multi-line string are free text
	if p.mode == modeParameterString {
		return p.parseParameterString(ins)
	}
	if ins.Name == "" {
		return nil
	}
	debugPrintf("%d: %s", ins.Line, ins)

	switch ins.Name {
	case lexer.CLASS:
		return p.parseClassBegin(ins)
	case lexer.PARAMETER_DEFINE_BEGIN:
		p.mode = modeParameters
	case lexer.BUYSELLLIST_BEGIN:
		return p.parsePropertyBegin("BuySellList", modeBuySellList, ins)
	case lexer.TELPOSLIST_BEGIN:
		return p.parsePropertyBegin("TelPosList", modeTelPosList, ins)
	case lexer.VARIABLE_BEGIN:
		p.mode = modeVariables
	case lexer.PARAMETER_DEFINE_END, lexer.VARIABLE_END:
		p.mode = modeNone
	case lexer.BUYSELLLIST_END, lexer.TELPOSLIST_END:
		p.mode = modeNone
		p.property = nil
	case lexer.HANDLER:
		return p.parseHandlerBegin(ins)
	case lexer.HANDLER_END:
		p.parseHandlerEnd()
	case lexer.BRANCH_FALSE:
		return p.parseBranchFalse(ins)
	case lexer.JUMP:
		return p.parseJump(ins)
	case lexer.SHIFT_SP:
		return p.parseShiftSp(ins)
	case lexer.ASSIGN, lexer.ASSIGN4:
		return p.parseAssign(ins)
	case lexer.PUSH_CONST:
		return p.parsePushConst(ins)
	case lexer.PUSH_STRING:
		return p.parsePushString(ins)
	case lexer.PUSH_PARAMETER:
		return p.parsePushParameter(ins)
	case lexer.PUSH_PROPERTY:
		return p.parsePushProperty(ins)
	case lexer.FUNC_CALL:
		return p.parseFuncCall(ins)
	case lexer.ADD, lexer.ADD_STRING:
		return p.parseAdd(ins)
	case lexer.FETCH_I, lexer.FETCH_I4, lexer.FETCH_F, lexer.FETCH_D:
		return p.parseFetch(ins)
	case lexer.CALL_SUPER:
		return p.addStatement(&SuperStatement{Handler: p.handler})
	case lexer.EXIT_HANDLER:
		return p.addStatement(&ReturnStatement{})
	case lexer.EQUAL:
		if _, ok := p.topStatement().(*pendingCase); ok {
			// the comparison is consumed by the case clause
			return nil
		}
		return p.parseBinary("==")
	case lexer.NOT:
		return p.parseUnary("~")
	case lexer.NEGATE:
		return p.parseUnary("-")
	default:
		if op, ok := binaryOperators[ins.Name]; ok {
			return p.parseBinary(op)
		}
		switch {
		case ins.IsString():
			// preloaded by parseHandlerBegin
		case ins.IsLabel():
			return p.parseLabel(ins)
		default:
			return p.parseDeclarationRow(ins)
		}
	}
	return nil
}

var binaryOperators = map[lexer.Mnemonic]string{
	lexer.NOT_EQUAL:     "!=",
	lexer.GREATER:       ">",
	lexer.GREATER_EQUAL: ">=",
	lexer.LESS:          "<",
	lexer.LESS_EQUAL:    "<=",
	lexer.AND:           "&&",
	lexer.OR:            "||",
	lexer.BIT_AND:       "&",
	lexer.BIT_OR:        "|",
	lexer.MUL:           "*",
	lexer.DIV:           "/",
	lexer.SUB:           "-",
	lexer.XOR:           "^",
	lexer.MOD:           "%",
}

// --- Operands ---

func (p *Parser) parsePushConst(ins *lexer.Instruction) errors.DecompileError {
	raw := ins.Operand(0)

	switch {
	case ins.Prev.Is(lexer.PUSH_EVENT):
		addr, err := ins.IntOperand(0)
		if err != nil {
			return p.malformed("event variable address %q", raw).CausedBy(err)
		}
		v, err := p.resolver.Variable(p.classKind(), "", addr)
		if err != nil {
			return p.unresolved(err)
		}
		p.operands.Push(&VariableExpression{Name: v.Name, VarType: v.Type})
	case strings.Contains(raw, "."):
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p.malformed("float constant %q", raw).CausedBy(err)
		}
		p.operands.Push(&FloatLiteral{Value: f})
	default:
		v, err := ins.IntOperand(0)
		if err != nil {
			return p.malformed("integer constant %q", raw).CausedBy(err)
		}
		p.operands.Push(&IntegerLiteral{Value: v})
	}
	return nil
}

func (p *Parser) parsePushString(ins *lexer.Instruction) errors.DecompileError {
	id := ins.LabelOperand(0)
	s, ok := p.strings[id]
	if !ok {
		return p.malformed("string record %q not found in handler", id)
	}
	p.operands.Push(&StringLiteral{Value: s})
	return nil
}

func (p *Parser) parsePushParameter(ins *lexer.Instruction) errors.DecompileError {
	name := ins.Operand(0)
	if name == "" {
		return p.malformed("push_parameter without a name")
	}
	typ, ok := p.parameters[name]
	if !ok {
		typ = TypeInt
		p.parameters[name] = typ
	}
	p.operands.Push(&ParameterExpression{Name: name, ParamType: typ})
	return nil
}

func (p *Parser) parsePushProperty(ins *lexer.Instruction) errors.DecompileError {
	name := ins.Operand(0)
	if name == "" {
		return p.malformed("push_property without a name")
	}
	expr := &PropertyExpression{Name: name}
	if p.class == nil {
		return p.malformed("push_property outside a class")
	}
	for _, prop := range p.class.Properties {
		if prop.Name == name {
			expr.PropertyType = prop.Type
			break
		}
	}
	p.operands.Push(expr)
	return nil
}

// parseFetch duplicates the top operand when another fetch follows; the
// duplicate feeds compound assignments such as increments.
func (p *Parser) parseFetch(ins *lexer.Instruction) errors.DecompileError {
	if !ins.Next.IsFetch() {
		return nil
	}
	top, ok := p.operands.Top()
	if !ok {
		return p.underflow("nothing to duplicate for %s", ins.Name)
	}
	p.operands.Push(top)
	return nil
}

// --- Operators ---

func (p *Parser) parseAdd(ins *lexer.Instruction) errors.DecompileError {
	// push_event; push_const addr; add is an event variable read
	if ins.Back(2).Is(lexer.PUSH_EVENT) {
		return nil
	}

	exprs, err := p.popExpressions(2)
	if err != nil {
		return err
	}
	rhs, lhs := exprs[0], exprs[1]

	if offset, ok := rhs.(*IntegerLiteral); ok && !p.resolver.IsPrimitiveType(lhs.Type()) {
		v, err := p.resolver.Variable(p.classKind(), lhs.Type(), offset.Value)
		if err != nil {
			return p.unresolved(err)
		}
		p.operands.Push(&VariableExpression{Name: v.Name, VarType: v.Type, Object: lhs})
		return nil
	}

	p.operands.Push(lhs)
	p.operands.Push(rhs)
	return p.parseBinary("+")
}

func (p *Parser) parseBinary(operator string) errors.DecompileError {
	exprs, err := p.popExpressions(2)
	if err != nil {
		return err
	}
	rhs, lhs := exprs[0], exprs[1]

	if il, ok := rhs.(*IntegerLiteral); ok {
		rhs = p.resolveConstant(il.Value, lhs.Type(), symbols.DomainSkill)
	}
	if il, ok := lhs.(*IntegerLiteral); ok {
		lhs = p.resolveConstant(il.Value, rhs.Type(), symbols.DomainSkill)
	}

	p.operands.Push(&BinaryExpression{Left: lhs, Operator: operator, Right: rhs})
	return nil
}

func (p *Parser) parseUnary(operator string) errors.DecompileError {
	expr, err := p.popExpression()
	if err != nil {
		return err
	}
	p.operands.Push(NewUnary(operator, expr))
	return nil
}

func (p *Parser) parseFuncCall(ins *lexer.Instruction) errors.DecompileError {
	addr, err := ins.IntOperand(0)
	if err != nil {
		return p.malformed("function address %q", ins.Operand(0)).CausedBy(err)
	}
	fn, err := p.resolver.Function(addr)
	if err != nil {
		return p.unresolved(err)
	}

	call := &CallExpression{Function: fn.Name, ReturnType: fn.Type}
	args := make([]Expression, len(fn.Arguments))
	var comments []string
	for i := len(fn.Arguments) - 1; i >= 0; i-- {
		arg, ok := p.operands.Pop()
		if !ok {
			return p.underflow("%s expects %d arguments", fn.Name, len(fn.Arguments))
		}
		if il, ok := arg.(*IntegerLiteral); ok {
			if fn.Arguments[i] == "FSTRING" {
				if text, found := p.resolver.FString(il.Value); found {
					comments = append([]string{text}, comments...)
				}
			}
			arg = p.resolveConstant(il.Value, fn.Arguments[i])
		}
		args[i] = arg
	}
	call.Arguments = args
	call.Comment = strings.Join(comments, ", ")

	object, derr := p.popExpression()
	if derr != nil {
		return derr
	}
	call.Object = object
	p.operands.Push(call)
	return nil
}

// parseShiftSp commits the top operand as a statement at a statement
// boundary. A call result is only committed when the call takes no
// arguments or the boundary does not follow the call directly.
func (p *Parser) parseShiftSp(ins *lexer.Instruction) errors.DecompileError {
	if n, err := ins.IntOperand(0); err != nil || n != -1 {
		return nil
	}
	top, ok := p.operands.Top()
	if !ok {
		return nil
	}
	call, isCall := top.(*CallExpression)
	if ins.Prev.Is(lexer.FUNC_CALL) && !(isCall && len(call.Arguments) == 0) {
		return nil
	}
	p.operands.Pop()
	return p.addStatement(NewStatement(top))
}

func (p *Parser) parseAssign(ins *lexer.Instruction) errors.DecompileError {
	exprs, err := p.popExpressions(2)
	if err != nil {
		return err
	}
	rvalue, lvalue := exprs[0], exprs[1]

	if op, ok := p.incrementOperator(ins); ok {
		p.operands.Push(&UnaryExpression{Operator: op, Operand: lvalue})
	} else {
		target, ok := lvalue.(*VariableExpression)
		if !ok {
			return p.malformed("assignment target %s is not a variable", lvalue)
		}
		if il, ok := rvalue.(*IntegerLiteral); ok {
			rvalue = p.resolveConstant(il.Value, target.Type())
		}
		p.operands.Push(&AssignExpression{Target: target, Value: rvalue})
	}

	if _, ok := p.topStatement().(*pendingFor); ok {
		return p.materializeFor()
	}
	return nil
}

// incrementOperator recognizes `fetch_i x N; push_const 1; add|sub; assign`.
func (p *Parser) incrementOperator(ins *lexer.Instruction) (string, bool) {
	op := ins.Prev
	if !op.Is(lexer.ADD) && !op.Is(lexer.SUB) {
		return "", false
	}
	one := op.Prev
	if !one.Is(lexer.PUSH_CONST) {
		return "", false
	}
	if v, err := one.IntOperand(0); err != nil || v != 1 {
		return "", false
	}
	for i := 1; i <= p.opts.IncrementWindow; i++ {
		if !one.Back(i).IsIntFetch() {
			return "", false
		}
	}
	if op.Is(lexer.ADD) {
		return "++", true
	}
	return "--", true
}

// --- Helpers ---

// resolveConstant tries each domain in order and falls back to the literal.
// SKILL_SHORT ids render as a division of the full skill id.
func (p *Parser) resolveConstant(id int, domains ...string) Expression {
	for _, domain := range domains {
		name, ok := p.resolver.Constant(domain, id)
		if !ok {
			continue
		}
		c := &ConstantExpression{Domain: domain, Name: name}
		if domain == symbols.DomainSkillShort {
			return &BinaryExpression{Left: c, Operator: "/", Right: &IntegerLiteral{Value: symbols.SkillShortDivisor}}
		}
		return c
	}
	return &IntegerLiteral{Value: id}
}

// popExpressions pops n values, preferring the operand stack and otherwise
// un-committing the last statement of the current block. The result is in
// pop order (top first).
func (p *Parser) popExpressions(n int) ([]Expression, errors.DecompileError) {
	exprs := make([]Expression, 0, n)
	for len(exprs) < n {
		if expr, ok := p.operands.Pop(); ok {
			exprs = append(exprs, expr)
			continue
		}
		block, ok := p.blocks.Top()
		if !ok {
			return nil, p.underflow("need %d operands, have %d", n, len(exprs))
		}
		switch s := block.PopLast().(type) {
		case *ExpressionStatement:
			exprs = append(exprs, s.Expression)
		case *AssignStatement:
			exprs = append(exprs, s.Assign)
		case nil:
			return nil, p.underflow("need %d operands, have %d", n, len(exprs))
		default:
			block.Add(s)
			return nil, p.underflow("need %d operands, block ends with %T", n, s)
		}
	}
	return exprs, nil
}

func (p *Parser) popExpression() (Expression, errors.DecompileError) {
	exprs, err := p.popExpressions(1)
	if err != nil {
		return nil, err
	}
	return exprs[0], nil
}

// peekExpression returns what popExpression would return, without popping.
func (p *Parser) peekExpression() Expression {
	if expr, ok := p.operands.Top(); ok {
		return expr
	}
	block, ok := p.blocks.Top()
	if !ok || block.Len() == 0 {
		return nil
	}
	switch s := block.Statements[block.Len()-1].(type) {
	case *ExpressionStatement:
		return s.Expression
	case *AssignStatement:
		return s.Assign
	}
	return nil
}

func (p *Parser) currentBlock() (*BlockStatement, errors.DecompileError) {
	block, ok := p.blocks.Top()
	if !ok {
		return nil, p.underflow("no open block")
	}
	return block, nil
}

func (p *Parser) addStatement(s Statement) errors.DecompileError {
	block, err := p.currentBlock()
	if err != nil {
		return err
	}
	block.Add(s)
	return nil
}

func (p *Parser) classKind() int {
	if p.class == nil {
		return 0
	}
	return int(p.class.Kind)
}

// --- Errors ---

func (p *Parser) position() errors.Position {
	pos := errors.Position{Source: p.opts.Source}
	if p.current != nil {
		pos.Line = p.current.Line
	}
	switch {
	case p.class != nil:
		pos.Class = p.class.Name
	case p.listing != nil:
		pos.Class = p.listing.Name
	}
	return pos
}

func (p *Parser) malformed(format string, args ...interface{}) *errors.MalformedInstructionError {
	return &errors.MalformedInstructionError{Position: p.position(), Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) underflow(format string, args ...interface{}) *errors.StackUnderflowError {
	msg := fmt.Sprintf(format, args...)
	if p.current != nil {
		msg = fmt.Sprintf("%s: %s", p.current.Name, msg)
	}
	glog.V(1).Infof("stack underflow at %s: %s", p.position(), msg)
	return &errors.StackUnderflowError{Position: p.position(), Msg: msg}
}

func (p *Parser) unresolved(err error) *errors.UnresolvedSymbolError {
	return (&errors.UnresolvedSymbolError{Position: p.position(), Msg: err.Error()}).CausedBy(err)
}
