package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nascdec/pkg/errors"
	"nascdec/pkg/lexer"
	"nascdec/pkg/symbols"
)

func testResolver() *symbols.MemoryResolver {
	r := symbols.NewMemoryResolver().
		AddHandler(0, 1, "TALKED").
		AddHandler(0, 2, "CREATED").
		AddVariable(0, "", 0, symbols.Variable{Name: "myself", Type: "NpcMaker"}).
		AddVariable(0, "", 16, symbols.Variable{Name: "talker", Type: "Creature"}).
		AddVariable(0, "", 24, symbols.Variable{Name: "i", Type: "int"}).
		AddVariable(0, "Creature", 8, symbols.Variable{Name: "hp", Type: "int"}).
		AddVariable(0, "NpcMaker", 4, symbols.Variable{Name: "i_ai0", Type: "int"}).
		AddFunction(100, symbols.Function{Name: "Say", Type: "void", Arguments: []string{"string"}}).
		AddFunction(101, symbols.Function{Name: "Despawn", Type: "void"}).
		AddFunction(102, symbols.Function{Name: "ShowPage", Type: "void", Arguments: []string{"Creature", "FSTRING"}}).
		AddConstant("ITEM", 57, "adena").
		AddConstant("SKILL", 65537, "s_power_strike")
	r.FStrings[1000] = "Welcome"
	return r
}

// Listing fragments
const (
	pushMyself   = "push_event\npush_const 0\nadd\nfetch_i\n"
	pushTalker   = "push_event\npush_const 16\nadd\nfetch_i\n"
	pushTalkerHP = pushTalker + "push_const 8\nadd\nfetch_i\n"
	callDespawn  = pushMyself + "func_call 101\nshift_sp -1\n"
)

func callSay(record string) string {
	return pushMyself + "push_string " + record + "\nfunc_call 100\nshift_sp -1\nshift_sp -1\n"
}

func assignI(v int) string {
	return fmt.Sprintf("push_event\npush_const 24\nadd\npush_const %d\nassign\nshift_sp -1\n", v)
}

func handler(id int, body string) string {
	return fmt.Sprintf("class 0 test_npc : (null)\nhandler %d\n%shandler_end\nclass_end\n", id, body)
}

func parseListing(t *testing.T, listing string, opts ...Option) (*ClassDeclaration, errors.DecompileError) {
	t.Helper()
	tok := lexer.NewTokenizer()
	for i, line := range strings.Split(listing, "\n") {
		if line = lexer.Sanitize(line); line != "" {
			tok.Tokenize(line, i+1)
		}
	}
	classes := lexer.SplitClasses(tok.Head())
	require.Len(t, classes, 1)
	return NewParser(testResolver(), opts...).ParseClass(classes[0])
}

func mustParse(t *testing.T, listing string, opts ...Option) *ClassDeclaration {
	t.Helper()
	class, err := parseListing(t, listing, opts...)
	require.NoError(t, err)
	require.NotNil(t, class)
	return class
}

func handlerBody(t *testing.T, class *ClassDeclaration) []Statement {
	t.Helper()
	require.NotEmpty(t, class.Handlers)
	return class.Handlers[0].Body.Statements
}

func TestIfElse(t *testing.T) {
	listing := "class 0 test_npc : (null)\n" +
		"handler 1\n" +
		"variable_begin\n\t\"myself\"\n\t\"talker\"\nvariable_end\n" +
		pushTalkerHP +
		"push_const 10\ngreater\nbranch_false L1\n" +
		callSay("S0") +
		"jump L2\nL1\n" +
		callSay("S1") +
		"L2\n" +
		"S0.\t\"Hello\"\n" +
		"S1.\t\"Bye\"\n" +
		"handler_end\nclass_end\n"

	class := mustParse(t, listing)
	assert.Equal(t, "test_npc", class.Name)
	assert.Empty(t, class.Super)

	body := handlerBody(t, class)
	require.Len(t, body, 1)
	ifStmt, ok := body[0].(*IfStatement)
	require.True(t, ok, "expected *IfStatement, got %T", body[0])
	assert.Equal(t, "(talker.hp > 10)", ifStmt.Condition.String())
	assert.Len(t, ifStmt.Then.Statements, 1)
	assert.Len(t, ifStmt.Else.Statements, 1)

	want := "set_compiler_opt base_event_type(@NTYPE_NPC_EVENT)\n\n" +
		"class test_npc {\n" +
		"handler:\n" +
		"\tEventHandler TALKED(talker) {\n" +
		"\t\tif (talker.hp > 10) {\n" +
		"\t\t\tSay(\"Hello\");\n" +
		"\t\t} else {\n" +
		"\t\t\tSay(\"Bye\");\n" +
		"\t\t}\n" +
		"\t}\n" +
		"}\n\n"
	assert.Equal(t, want, NewNASCEmitter().Emit(class))
}

func TestWhileWithBreak(t *testing.T) {
	body := "L1\n" +
		pushTalkerHP + "push_const 0\ngreater\nbranch_false L2\n" +
		pushTalkerHP + "push_const 5\nless\nbranch_false L3\n" +
		callDespawn +
		"jump L2\n" +
		"L3\n" +
		callSay("S0") +
		"jump L1\n" +
		"L2\n" +
		"S0.\t\"x\"\n"

	class := mustParse(t, handler(1, body))
	stmts := handlerBody(t, class)
	require.Len(t, stmts, 1)

	loop, ok := stmts[0].(*WhileStatement)
	require.True(t, ok, "expected *WhileStatement, got %T", stmts[0])
	assert.Equal(t, "(talker.hp > 0)", loop.Condition.String())
	require.Len(t, loop.Body.Statements, 1)

	inner, ok := loop.Body.Statements[0].(*IfStatement)
	require.True(t, ok)
	require.Len(t, inner.Then.Statements, 2)
	assert.IsType(t, &ExpressionStatement{}, inner.Then.Statements[0])
	assert.IsType(t, &BreakStatement{}, inner.Then.Statements[1])
	require.Len(t, inner.Else.Statements, 1)

	out := NewNASCEmitter().Emit(class)
	assert.Contains(t, out, "\t\twhile (talker.hp > 0) {\n"+
		"\t\t\tif (talker.hp < 5) {\n"+
		"\t\t\t\tDespawn();\n"+
		"\t\t\t\tbreak;\n"+
		"\t\t\t} else {\n"+
		"\t\t\t\tSay(\"x\");\n"+
		"\t\t\t}\n"+
		"\t\t}\n")
}

func TestSelect(t *testing.T) {
	body := pushTalkerHP +
		"push_reg_sp\nfetch_i\npush_const 1\nequal\nbranch_false L1\n" +
		assignI(10) +
		"jump L0\njump L11\n" +
		"L1\n" +
		"push_reg_sp\nfetch_i\npush_const 2\nequal\nbranch_false L2\n" +
		"L11\n" +
		assignI(20) +
		"jump L0\njump L12\n" +
		"L2\n" +
		"push_reg_sp\nfetch_i\npush_const 3\nequal\nbranch_false L3\n" +
		"L12\n" +
		assignI(30) +
		"jump L0\n" +
		"L3\n" +
		"L0\n" +
		"shift_sp -1\n"

	class := mustParse(t, handler(1, body))
	stmts := handlerBody(t, class)
	require.Len(t, stmts, 1)

	sel, ok := stmts[0].(*SelectStatement)
	require.True(t, ok, "expected *SelectStatement, got %T", stmts[0])
	assert.Equal(t, "talker.hp", sel.Condition.String())
	require.Len(t, sel.Cases, 3)
	for i, c := range sel.Cases {
		assert.Equal(t, fmt.Sprint(i+1), c.Value.String())
		require.Len(t, c.Body.Statements, 2, "case %d", i+1)
		assert.Equal(t, fmt.Sprintf("i = %d;", (i+1)*10), c.Body.Statements[0].String())
		assert.IsType(t, &BreakStatement{}, c.Body.Statements[1])
	}

	out := NewNASCEmitter().Emit(class)
	assert.Contains(t, out, "\t\tselect (talker.hp) {\n"+
		"\t\tcase 1:\n"+
		"\t\t\ti = 10;\n"+
		"\t\t\tbreak;\n"+
		"\t\tcase 2:\n"+
		"\t\t\ti = 20;\n"+
		"\t\t\tbreak;\n"+
		"\t\tcase 3:\n"+
		"\t\t\ti = 30;\n"+
		"\t\t\tbreak;\n"+
		"\t\t}\n")
}

func TestSelectLastCaseFallsThrough(t *testing.T) {
	body := pushTalkerHP +
		"push_reg_sp\nfetch_i\npush_const 1\nequal\nbranch_false L1\n" +
		assignI(10) +
		"jump L0\njump L11\n" +
		"L1\n" +
		"push_reg_sp\nfetch_i\npush_const 2\nequal\nbranch_false L2\n" +
		"L11\n" +
		assignI(20) +
		"jump L0\njump L12\n" +
		"L2\n" +
		"push_reg_sp\nfetch_i\npush_const 3\nequal\nbranch_false L3\n" +
		"L12\n" +
		assignI(30) +
		"L3\n" +
		"L0\n" +
		"shift_sp -1\n"

	class := mustParse(t, handler(1, body))
	stmts := handlerBody(t, class)
	require.Len(t, stmts, 1)

	sel, ok := stmts[0].(*SelectStatement)
	require.True(t, ok, "expected *SelectStatement, got %T", stmts[0])
	require.Len(t, sel.Cases, 3)
	for _, c := range sel.Cases[:2] {
		require.Len(t, c.Body.Statements, 2)
		assert.IsType(t, &BreakStatement{}, c.Body.Statements[1])
	}
	last := sel.Cases[2].Body.Statements
	require.Len(t, last, 1)
	assert.Equal(t, "i = 30;", last[0].String())

	out := NewNASCEmitter().Emit(class)
	assert.Contains(t, out, "\t\tcase 3:\n"+
		"\t\t\ti = 30;\n"+
		"\t\t}\n")
}

const forLoop = assignInit +
	"L1\n" +
	"push_event\npush_const 24\nadd\nfetch_i\npush_const 3\nless\nbranch_false L2\n" +
	"jump L3\n" +
	"L4\n" +
	"push_event\npush_const 24\nadd\nfetch_i\nfetch_i\npush_const 1\nadd\nassign\nshift_sp -1\n" +
	"jump L1\n" +
	"L3\n" +
	callDespawn +
	"jump L4\n" +
	"L2\n"

const assignInit = "push_event\npush_const 24\nadd\npush_const 0\nassign\nshift_sp -1\n"

func TestForLoop(t *testing.T) {
	class := mustParse(t, handler(1, forLoop))
	stmts := handlerBody(t, class)

	// the init assignment is taken back out of the handler block
	require.Len(t, stmts, 1)
	loop, ok := stmts[0].(*ForStatement)
	require.True(t, ok, "expected *ForStatement, got %T", stmts[0])
	assert.Equal(t, "i = 0", loop.Init.String())
	assert.Equal(t, "(i < 3)", loop.Condition.String())
	assert.Equal(t, "(++i)", loop.Update.String())
	require.Len(t, loop.Body.Statements, 1)

	out := NewNASCEmitter().Emit(class)
	assert.Contains(t, out, "\t\tfor (i = 0; i < 3; ++i) {\n\t\t\tDespawn();\n\t\t}\n")
}

func TestIncrementWindow(t *testing.T) {
	// a wider window rejects the two-fetch increment idiom
	class := mustParse(t, handler(1, forLoop), WithIncrementWindow(3))
	loop, ok := handlerBody(t, class)[0].(*ForStatement)
	require.True(t, ok)
	assign, ok := loop.Update.(*AssignExpression)
	require.True(t, ok, "expected *AssignExpression, got %T", loop.Update)
	assert.Equal(t, "i = (i + 1)", assign.String())

	// the generator still folds it
	assert.Equal(t, "++i", NewNASCEmitter().expression(assign, nil, false))
}

func TestMemberAccessAndReceivers(t *testing.T) {
	listing := "class 0 shop_npc : citizen\n" +
		"parameter_define_begin\n" +
		"\tint count 5\n" +
		"\tstring greeting \"Hi there\"\n" +
		"\tfloat rate 0.5\n" +
		"\tint power_skill 65537\n" +
		"parameter_define_end\n" +
		"buyselllist_begin sell0\n" +
		"\t{57; 0; 0; 0}\n" +
		"\t{999; 10; 0; 0}\n" +
		"buyselllist_end\n" +
		"handler 2\n" +
		pushMyself + "push_const 4\nadd\npush_const 5\nassign\nshift_sp -1\n" +
		"handler_end\n" +
		"handler 1\n" +
		"variable_begin\n\t\"talker\"\nvariable_end\n" +
		pushMyself + pushTalker + "push_const 1000\nfunc_call 102\nshift_sp -2\nshift_sp -1\n" +
		"handler_end\n" +
		"class_end\n"

	class := mustParse(t, listing)
	assert.Equal(t, "citizen", class.Super)
	require.Len(t, class.Parameters, 4)
	require.Len(t, class.Properties, 1)
	require.Len(t, class.Handlers, 2)

	call, ok := class.Handlers[1].Body.Statements[0].(*ExpressionStatement).Expression.(*CallExpression)
	require.True(t, ok)
	assert.Equal(t, "Welcome", call.Comment)
	assert.Equal(t, "myself", call.Object.String())

	want := "set_compiler_opt base_event_type(@NTYPE_NPC_EVENT)\n\n" +
		"class shop_npc : citizen {\n" +
		"parameter:\n" +
		"\tint count = 5;\n" +
		"\tstring greeting = \"Hi there\";\n" +
		"\tfloat rate = 0.5;\n" +
		"\tint power_skill = @s_power_strike;\n" +
		"\t\n" +
		"property:\n" +
		"\tBuySellList sell0 = {\n" +
		"\t\t{\"adena\"; 0; 0; 0};\n" +
		"\t\t{999; 10; 0; 0}\n" +
		"\t};\n" +
		"\t\n" +
		"handler:\n" +
		"\tEventHandler CREATED() {\n" +
		"\t\tmyself.i_ai0 = 5;\n" +
		"\t}\n" +
		"\n" +
		"\tEventHandler TALKED(talker) {\n" +
		"\t\tShowPage(talker, 1000) /* Welcome */;\n" +
		"\t}\n" +
		"}\n\n"
	assert.Equal(t, want, NewNASCEmitter().Emit(class))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		listing  string
		kind     string
		notFound bool
	}{
		{"underflow", handler(1, "add\n"), "StackUnderflow", false},
		{"unresolved function", handler(1, pushMyself+"func_call 999\n"), "UnresolvedSymbol", true},
		{"unresolved handler", handler(9, ""), "UnresolvedSymbol", true},
		{"unresolved member", handler(1, pushTalker+"push_const 12\nadd\n"), "UnresolvedSymbol", true},
		{"missing string record", handler(1, "push_string S7\n"), "MalformedInstruction", false},
		{"bad class kind", "class x test_npc : (null)\nclass_end\n", "MalformedInstruction", false},
		{"call argument underflow", handler(1, pushMyself+"func_call 100\n"), "StackUnderflow", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, err := parseListing(t, tt.listing)
			require.Error(t, err)
			assert.Nil(t, class)
			assert.Equal(t, tt.kind, err.Kind())
			assert.Equal(t, "test_npc", err.Pos().Class)
			if tt.notFound {
				assert.ErrorIs(t, err, symbols.ErrNotFound)
			}
		})
	}
}

func TestParserReuse(t *testing.T) {
	p := NewParser(testResolver())
	for _, listing := range []string{forLoop, forLoop} {
		tok := lexer.NewTokenizer()
		for i, line := range strings.Split(handler(1, listing), "\n") {
			if line = lexer.Sanitize(line); line != "" {
				tok.Tokenize(line, i+1)
			}
		}
		class, err := p.ParseClass(lexer.SplitClasses(tok.Head())[0])
		require.NoError(t, err)
		assert.Len(t, class.Handlers[0].Body.Statements, 1)
	}
}

func TestRoundTripStable(t *testing.T) {
	listings := map[string]string{
		"for":    forLoop,
		"assign": assignI(10) + callDespawn,
		"negate": "push_event\npush_const 24\nadd\npush_event\npush_const 24\nadd\nfetch_i\nnegate\nnegate\nassign\nshift_sp -1\n",
	}
	for name, body := range listings {
		t.Run(name, func(t *testing.T) {
			first := NewNASCEmitter().Emit(mustParse(t, handler(1, body)))
			second := NewNASCEmitter().Emit(mustParse(t, handler(1, body)))
			assert.Equal(t, []byte(first), []byte(second))
		})
	}
}

func TestDoubleNegation(t *testing.T) {
	negate := func(value string) string {
		return "push_event\npush_const 24\nadd\n" + value + "negate\nnegate\nassign\nshift_sp -1\n"
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{"variable", negate("push_event\npush_const 24\nadd\nfetch_i\n"), "\t\ti = -(-i);\n"},
		{"literal folds back", negate("push_const 5\n"), "\t\ti = 5;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewNASCEmitter().Emit(mustParse(t, handler(1, tt.body)))
			assert.Contains(t, out, tt.want)
			assert.NotContains(t, out, "--")
		})
	}
}

func TestNewUnary(t *testing.T) {
	assert.Equal(t, &IntegerLiteral{Value: -5}, NewUnary("-", &IntegerLiteral{Value: 5}))
	assert.Equal(t, &IntegerLiteral{Value: 5}, NewUnary("-", NewUnary("-", &IntegerLiteral{Value: 5})))
	assert.Equal(t, &IntegerLiteral{Value: 0}, NewUnary("-", &IntegerLiteral{Value: 0}))
	assert.Equal(t, &UnaryExpression{Operator: "~", Operand: &IntegerLiteral{Value: 5}},
		NewUnary("~", &IntegerLiteral{Value: 5}))

	v := &VariableExpression{Name: "i", VarType: TypeInt}
	assert.Equal(t, &UnaryExpression{Operator: "-", Operand: v}, NewUnary("-", v))
}

func TestExpressionTypes(t *testing.T) {
	i := &IntegerLiteral{Value: 1}
	f := &FloatLiteral{Value: 1.5}
	s := &StringLiteral{Value: "a"}
	skill := &ConstantExpression{Domain: "SKILL", Name: "s_x"}

	tests := []struct {
		expr Expression
		want string
	}{
		{&BinaryExpression{Left: i, Operator: "+", Right: i}, TypeInt},
		{&BinaryExpression{Left: s, Operator: "+", Right: i}, TypeString},
		{&BinaryExpression{Left: i, Operator: "*", Right: f}, TypeDouble},
		{&BinaryExpression{Left: i, Operator: "-", Right: i}, TypeInt},
		{&BinaryExpression{Left: skill, Operator: "/", Right: i}, "SKILL_SHORT"},
		{&BinaryExpression{Left: i, Operator: "%", Right: i}, TypeInt},
		{&BinaryExpression{Left: i, Operator: "==", Right: i}, TypeBool},
		{&BinaryExpression{Left: i, Operator: "&&", Right: i}, TypeBool},
		{&UnaryExpression{Operator: "-", Operand: f}, TypeDouble},
		{skill, "SKILL"},
		{&CallExpression{Function: "f", ReturnType: "Creature"}, "Creature"},
	}

	for _, tt := range tests {
		t.Run(tt.expr.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.expr.Type())
		})
	}
}

func TestDump(t *testing.T) {
	class := mustParse(t, handler(1, forLoop))
	out := Dump(class)
	assert.Contains(t, out, "class test_npc")
	assert.Contains(t, out, "EventHandler TALKED()")
	assert.Contains(t, out, "for i = 0; (i < 3); (++i)")
	assert.Contains(t, out, "Despawn()")
}
