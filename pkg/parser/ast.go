package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// --- Interfaces ---

// Node is the base interface for all AST nodes.
type Node interface {
	String() string // Debug representation, not NASC source
}

// Expression is a value-producing node. Its Type is a pure function of the
// node and its children.
type Expression interface {
	Node
	expressionNode()
	Type() string
}

// Statement is a node placed in a block.
type Statement interface {
	Node
	statementNode()
}

// Declaration is a class-level node.
type Declaration interface {
	Node
	declarationNode()
}

// Value types produced by literals and operators.
const (
	TypeInt    = "int"
	TypeDouble = "double"
	TypeString = "string"
	TypeBool   = "BOOL"
)

// --- Expressions ---

// IntegerLiteral is a numeric constant that did not resolve to a name.
type IntegerLiteral struct {
	Value int
}

func (il *IntegerLiteral) expressionNode() {}
func (il *IntegerLiteral) Type() string    { return TypeInt }
func (il *IntegerLiteral) String() string  { return strconv.Itoa(il.Value) }

// FloatLiteral is a floating point constant.
type FloatLiteral struct {
	Value float64
}

func (fl *FloatLiteral) expressionNode() {}
func (fl *FloatLiteral) Type() string    { return TypeDouble }
func (fl *FloatLiteral) String() string  { return strconv.FormatFloat(fl.Value, 'g', -1, 64) }

// StringLiteral holds the text between the quotes.
type StringLiteral struct {
	Value string
}

func (sl *StringLiteral) expressionNode() {}
func (sl *StringLiteral) Type() string    { return TypeString }
func (sl *StringLiteral) String() string  { return strconv.Quote(sl.Value) }

// Append extends a literal spanning several listing lines.
func (sl *StringLiteral) Append(s string) { sl.Value += s }

// ConstantExpression is a symbolic constant; its type is its domain.
type ConstantExpression struct {
	Domain string
	Name   string
}

func (ce *ConstantExpression) expressionNode() {}
func (ce *ConstantExpression) Type() string    { return ce.Domain }
func (ce *ConstantExpression) String() string  { return "@" + ce.Domain + "." + ce.Name }

// ParameterExpression references a class parameter.
type ParameterExpression struct {
	Name      string
	ParamType string
}

func (pe *ParameterExpression) expressionNode() {}
func (pe *ParameterExpression) Type() string    { return pe.ParamType }
func (pe *ParameterExpression) String() string  { return "param:" + pe.Name }

// PropertyExpression references a class property table.
type PropertyExpression struct {
	Name         string
	PropertyType string
}

func (pe *PropertyExpression) expressionNode() {}
func (pe *PropertyExpression) Type() string    { return pe.PropertyType }
func (pe *PropertyExpression) String() string  { return "property:" + pe.Name }

// VariableExpression is a handler variable, optionally a member of Object.
type VariableExpression struct {
	Name    string
	VarType string
	Object  Expression // nil for class-scope variables
}

func (ve *VariableExpression) expressionNode() {}
func (ve *VariableExpression) Type() string    { return ve.VarType }
func (ve *VariableExpression) String() string {
	if ve.Object != nil {
		return ve.Object.String() + "." + ve.Name
	}
	return ve.Name
}

// UnaryExpression is a prefix operator: -, ~, ++ or --.
type UnaryExpression struct {
	Operator string
	Operand  Expression
}

func (ue *UnaryExpression) expressionNode() {}
func (ue *UnaryExpression) Type() string    { return ue.Operand.Type() }
func (ue *UnaryExpression) String() string {
	return "(" + ue.Operator + ue.Operand.String() + ")"
}

// NewUnary builds a unary expression, folding negation of an integer
// literal into a negative literal.
func NewUnary(operator string, operand Expression) Expression {
	if il, ok := operand.(*IntegerLiteral); ok && operator == "-" {
		return &IntegerLiteral{Value: -il.Value}
	}
	return &UnaryExpression{Operator: operator, Operand: operand}
}

// BinaryExpression is an infix operation.
type BinaryExpression struct {
	Left     Expression
	Operator string
	Right    Expression
}

func (be *BinaryExpression) expressionNode() {}
func (be *BinaryExpression) String() string {
	return "(" + be.Left.String() + " " + be.Operator + " " + be.Right.String() + ")"
}

// Type follows the dialect's promotion table.
func (be *BinaryExpression) Type() string {
	left, right := be.Left.Type(), be.Right.Type()
	switch be.Operator {
	case "+":
		if left == TypeString || right == TypeString {
			return TypeString
		}
		return TypeInt
	case "-", "*", "/":
		// SKILL arithmetic yields the short skill id
		if left == "SKILL" {
			return "SKILL_SHORT"
		}
		if left == TypeInt && right == TypeInt {
			return TypeInt
		}
		return TypeDouble
	case "%", "&", "|", "^":
		return TypeInt
	}
	return TypeBool
}

// AssignExpression stores Value into Target.
type AssignExpression struct {
	Target *VariableExpression
	Value  Expression
}

func (ae *AssignExpression) expressionNode() {}
func (ae *AssignExpression) Type() string    { return ae.Value.Type() }
func (ae *AssignExpression) String() string {
	return ae.Target.String() + " = " + ae.Value.String()
}

// CallExpression calls a native function, optionally on an owner object.
type CallExpression struct {
	Function   string
	ReturnType string
	Object     Expression
	Arguments  []Expression
	Comment    string // Rendered after the call, e.g. the text of an fstring id
}

func (ce *CallExpression) expressionNode() {}
func (ce *CallExpression) Type() string    { return ce.ReturnType }
func (ce *CallExpression) String() string {
	args := make([]string, len(ce.Arguments))
	for i, a := range ce.Arguments {
		args[i] = a.String()
	}
	prefix := ""
	if ce.Object != nil {
		prefix = ce.Object.String() + "."
	}
	return prefix + ce.Function + "(" + strings.Join(args, ", ") + ")"
}

// --- Statements ---

// ExpressionStatement is an expression evaluated for its side effects.
type ExpressionStatement struct {
	Expression Expression
}

func (es *ExpressionStatement) statementNode()  {}
func (es *ExpressionStatement) String() string { return es.Expression.String() + ";" }

// AssignStatement is an assignment committed as a statement.
type AssignStatement struct {
	Assign *AssignExpression
}

func (as *AssignStatement) statementNode()  {}
func (as *AssignStatement) String() string { return as.Assign.String() + ";" }

// NewStatement wraps an expression in the matching statement node.
func NewStatement(expr Expression) Statement {
	if assign, ok := expr.(*AssignExpression); ok {
		return &AssignStatement{Assign: assign}
	}
	return &ExpressionStatement{Expression: expr}
}

// BlockStatement is an ordered statement list.
type BlockStatement struct {
	Statements []Statement
}

func (bs *BlockStatement) statementNode() {}
func (bs *BlockStatement) String() string {
	var out bytes.Buffer
	out.WriteString("{")
	for _, s := range bs.Statements {
		out.WriteString(" ")
		out.WriteString(s.String())
	}
	out.WriteString(" }")
	return out.String()
}

// Add appends a statement.
func (bs *BlockStatement) Add(s Statement) {
	bs.Statements = append(bs.Statements, s)
}

// PopLast removes and returns the last statement, or nil when empty.
func (bs *BlockStatement) PopLast() Statement {
	n := len(bs.Statements)
	if n == 0 {
		return nil
	}
	s := bs.Statements[n-1]
	bs.Statements = bs.Statements[:n-1]
	return s
}

// Len returns the number of statements.
func (bs *BlockStatement) Len() int { return len(bs.Statements) }

// IfStatement has an always-present, possibly empty, else block.
type IfStatement struct {
	Condition Expression
	Then      *BlockStatement
	Else      *BlockStatement
}

func (is *IfStatement) statementNode() {}
func (is *IfStatement) String() string {
	s := "if " + is.Condition.String() + " " + is.Then.String()
	if is.Else.Len() > 0 {
		s += " else " + is.Else.String()
	}
	return s
}

// NewIf creates an if with empty branches.
func NewIf(condition Expression) *IfStatement {
	return &IfStatement{Condition: condition, Then: &BlockStatement{}, Else: &BlockStatement{}}
}

// WhileStatement is a pre-tested loop.
type WhileStatement struct {
	Condition Expression
	Body      *BlockStatement
}

func (ws *WhileStatement) statementNode() {}
func (ws *WhileStatement) String() string {
	return "while " + ws.Condition.String() + " " + ws.Body.String()
}

// ForStatement is a counted loop.
type ForStatement struct {
	Init      Expression
	Condition Expression
	Update    Expression
	Body      *BlockStatement
}

func (fs *ForStatement) statementNode() {}
func (fs *ForStatement) String() string {
	return fmt.Sprintf("for (%s; %s; %s) %s", fs.Init, fs.Condition, fs.Update, fs.Body)
}

// CaseClause is one arm of a select.
type CaseClause struct {
	Value Expression
	Body  *BlockStatement
}

func (cc *CaseClause) String() string {
	return "case " + cc.Value.String() + ": " + cc.Body.String()
}

// SelectStatement dispatches on Condition.
type SelectStatement struct {
	Condition Expression
	Cases     []*CaseClause
}

func (ss *SelectStatement) statementNode() {}
func (ss *SelectStatement) String() string {
	var out bytes.Buffer
	out.WriteString("select " + ss.Condition.String() + " {")
	for _, c := range ss.Cases {
		out.WriteString(" ")
		out.WriteString(c.String())
	}
	out.WriteString(" }")
	return out.String()
}

// AddCase appends a case and returns its body.
func (ss *SelectStatement) AddCase(value Expression) *BlockStatement {
	c := &CaseClause{Value: value, Body: &BlockStatement{}}
	ss.Cases = append(ss.Cases, c)
	return c.Body
}

// ReturnStatement leaves the handler.
type ReturnStatement struct{}

func (rs *ReturnStatement) statementNode()  {}
func (rs *ReturnStatement) String() string { return "return;" }

// BreakStatement leaves the innermost loop or select.
type BreakStatement struct{}

func (bs *BreakStatement) statementNode()  {}
func (bs *BreakStatement) String() string { return "break;" }

// SuperStatement runs the parent class' version of Handler.
type SuperStatement struct {
	Handler *HandlerDeclaration
}

func (ss *SuperStatement) statementNode()  {}
func (ss *SuperStatement) String() string { return "super;" }

// --- Declarations ---

// ClassKind selects the compiler base event type.
type ClassKind int

const (
	NPCEvent   ClassKind = 0
	MakerEvent ClassKind = 1
)

func (k ClassKind) String() string {
	switch k {
	case NPCEvent:
		return "NPC_EVENT"
	case MakerEvent:
		return "MAKER_EVENT"
	}
	return fmt.Sprintf("ClassKind(%d)", int(k))
}

// ClassDeclaration is the root of one decompiled class. List order is the
// listing's declaration order.
type ClassDeclaration struct {
	Kind       ClassKind
	Name       string
	Super      string
	Parameters []*ParameterDeclaration
	Properties []*PropertyDeclaration
	Handlers   []*HandlerDeclaration
}

func (cd *ClassDeclaration) declarationNode() {}
func (cd *ClassDeclaration) String() string {
	s := "class " + cd.Name
	if cd.Super != "" {
		s += " : " + cd.Super
	}
	return fmt.Sprintf("%s (%s, %d parameters, %d properties, %d handlers)",
		s, cd.Kind, len(cd.Parameters), len(cd.Properties), len(cd.Handlers))
}

// ParameterDeclaration is a class parameter with an optional default.
type ParameterDeclaration struct {
	Type  string
	Name  string
	Value Expression
}

func (pd *ParameterDeclaration) declarationNode() {}
func (pd *ParameterDeclaration) String() string {
	if pd.Value != nil {
		return pd.Type + " " + pd.Name + " = " + pd.Value.String()
	}
	return pd.Type + " " + pd.Name
}

// PropertyRow is one row of a property table.
type PropertyRow struct {
	Cells   []string
	Comment string
}

// PropertyDeclaration is a BuySellList or TelPosList table.
type PropertyDeclaration struct {
	Type string
	Name string
	Rows []PropertyRow
}

func (pd *PropertyDeclaration) declarationNode() {}
func (pd *PropertyDeclaration) String() string {
	return fmt.Sprintf("%s %s (%d rows)", pd.Type, pd.Name, len(pd.Rows))
}

// VariableDeclaration is a handler-local variable.
type VariableDeclaration struct {
	Type string
	Name string
}

func (vd *VariableDeclaration) declarationNode() {}
func (vd *VariableDeclaration) String() string  { return vd.Type + " " + vd.Name }

// HandlerDeclaration is one event handler.
type HandlerDeclaration struct {
	Name      string
	Variables []*VariableDeclaration
	Body      *BlockStatement
}

func (hd *HandlerDeclaration) declarationNode() {}
func (hd *HandlerDeclaration) String() string {
	names := make([]string, len(hd.Variables))
	for i, v := range hd.Variables {
		names[i] = v.Name
	}
	return "EventHandler " + hd.Name + "(" + strings.Join(names, ", ") + ")"
}
