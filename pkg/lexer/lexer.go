package lexer

import (
	"fmt"
	"strconv"
	"strings"

	"nascdec/pkg/errors"
)

// Mnemonic is the opcode name of a listing instruction. Labels ("L123") and
// string-table records ("S4") are carried in the same field.
type Mnemonic string

// Instruction is one tokenized listing line.
type Instruction struct {
	Name     Mnemonic
	Operands []string // Textual operands, typed on access
	Comment  string   // Text after the first unquoted "//"
	Raw      string   // Code part of the line (string payload for S-lines)
	Line     int      // 1-based listing line
	Index    int      // Position inside the owning ClassListing arena
	Prev     *Instruction
	Next     *Instruction
}

// --- Mnemonics ---
const (
	// Declarations
	CLASS                  Mnemonic = "class"
	CLASS_END              Mnemonic = "class_end"
	PARAMETER_DEFINE_BEGIN Mnemonic = "parameter_define_begin"
	PARAMETER_DEFINE_END   Mnemonic = "parameter_define_end"
	BUYSELLLIST_BEGIN      Mnemonic = "buyselllist_begin"
	BUYSELLLIST_END        Mnemonic = "buyselllist_end"
	TELPOSLIST_BEGIN       Mnemonic = "telposlist_begin"
	TELPOSLIST_END         Mnemonic = "telposlist_end"
	HANDLER                Mnemonic = "handler"
	HANDLER_END            Mnemonic = "handler_end"
	VARIABLE_BEGIN         Mnemonic = "variable_begin"
	VARIABLE_END           Mnemonic = "variable_end"

	// Control flow
	BRANCH_FALSE Mnemonic = "branch_false"
	JUMP         Mnemonic = "jump"
	SHIFT_SP     Mnemonic = "shift_sp"
	PUSH_REG_SP  Mnemonic = "push_reg_sp"
	EXIT_HANDLER Mnemonic = "exit_handler"
	CALL_SUPER   Mnemonic = "call_super"
	FUNC_CALL    Mnemonic = "func_call"

	// Operands
	PUSH_EVENT     Mnemonic = "push_event"
	PUSH_CONST     Mnemonic = "push_const"
	PUSH_STRING    Mnemonic = "push_string"
	PUSH_PARAMETER Mnemonic = "push_parameter"
	PUSH_PROPERTY  Mnemonic = "push_property"
	FETCH_I        Mnemonic = "fetch_i"
	FETCH_I4       Mnemonic = "fetch_i4"
	FETCH_F        Mnemonic = "fetch_f"
	FETCH_D        Mnemonic = "fetch_d"
	ASSIGN         Mnemonic = "assign"
	ASSIGN4        Mnemonic = "assign4"

	// Operators
	ADD           Mnemonic = "add"
	ADD_STRING    Mnemonic = "add_string"
	SUB           Mnemonic = "sub"
	MUL           Mnemonic = "mul"
	DIV           Mnemonic = "div"
	MOD           Mnemonic = "mod"
	AND           Mnemonic = "and"
	OR            Mnemonic = "or"
	BIT_AND       Mnemonic = "bit_and"
	BIT_OR        Mnemonic = "bit_or"
	XOR           Mnemonic = "xor"
	EQUAL         Mnemonic = "equal"
	NOT_EQUAL     Mnemonic = "not_equal"
	GREATER       Mnemonic = "greater"
	GREATER_EQUAL Mnemonic = "greater_equal"
	LESS          Mnemonic = "less"
	LESS_EQUAL    Mnemonic = "less_equal"
	NOT           Mnemonic = "not"
	NEGATE        Mnemonic = "negate"
)

// Is reports whether the instruction exists and has the given mnemonic.
// Safe on nil so look-ahead chains need no guards.
func (ins *Instruction) Is(name Mnemonic) bool {
	return ins != nil && ins.Name == name
}

// IsString reports a string-table record ("S12").
func (ins *Instruction) IsString() bool {
	return ins != nil && isNumbered(string(ins.Name), 'S')
}

// IsLabel reports a jump-target label ("L12").
func (ins *Instruction) IsLabel() bool {
	return ins != nil && isNumbered(string(ins.Name), 'L')
}

func isNumbered(name string, prefix byte) bool {
	return len(name) > 1 && name[0] == prefix && name[1] >= '0' && name[1] <= '9'
}

// IsFetch reports any fetch_* instruction.
func (ins *Instruction) IsFetch() bool {
	return ins != nil && strings.HasPrefix(string(ins.Name), "fetch_")
}

// IsIntFetch reports fetch_i and fetch_i4.
func (ins *Instruction) IsIntFetch() bool {
	return ins != nil && strings.HasPrefix(string(ins.Name), "fetch_i")
}

// Back walks n instructions backwards. Returns nil past the sequence head.
func (ins *Instruction) Back(n int) *Instruction {
	for ; ins != nil && n > 0; n-- {
		ins = ins.Prev
	}
	return ins
}

// Operand returns the i-th operand or "" when absent.
func (ins *Instruction) Operand(i int) string {
	if ins == nil || i < 0 || i >= len(ins.Operands) {
		return ""
	}
	return ins.Operands[i]
}

// HasOperand reports whether operand i is present.
func (ins *Instruction) HasOperand(i int) bool {
	return ins != nil && i >= 0 && i < len(ins.Operands)
}

// IntOperand parses operand i as a decimal (or 0x-prefixed) integer.
func (ins *Instruction) IntOperand(i int) (int, error) {
	if !ins.HasOperand(i) {
		return 0, fmt.Errorf("%s: missing operand %d", ins.Name, i)
	}
	return ParseInt(ins.Operands[i])
}

// LabelOperand returns operand i as a label mnemonic.
func (ins *Instruction) LabelOperand(i int) Mnemonic {
	return Mnemonic(ins.Operand(i))
}

func (ins *Instruction) String() string {
	if ins == nil {
		return "<nil>"
	}
	if len(ins.Operands) == 0 {
		return string(ins.Name)
	}
	return string(ins.Name) + " " + strings.Join(ins.Operands, " ")
}

// ParseInt parses a listing integer. Hex values carry a 0x prefix.
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 64)
		return int(v), err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return int(v), err
}

// --- Tokenizer ---

// Tokenizer turns listing lines into a doubly linked instruction sequence.
type Tokenizer struct {
	head *Instruction
	tail *Instruction

	// OnMalformed receives best-effort degradations. The line is still tokenized.
	OnMalformed func(*errors.MalformedInstructionError)
}

// NewTokenizer creates an empty tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Tokenize appends one listing line to the current sequence and returns it.
func (t *Tokenizer) Tokenize(line string, lineNo int) *Instruction {
	ins := &Instruction{Line: lineNo, Prev: t.tail}
	if t.tail != nil {
		t.tail.Next = ins
	}

	if isStringRecord(line) {
		label, payload := splitFirstField(line)
		ins.Name = Mnemonic(trimRecordSuffix(label))
		ins.Operands = []string{payload}
		ins.Raw = payload
	} else {
		code, comment, closed := splitComment(line)
		fields, balanced := splitFields(code)
		if !closed || !balanced {
			t.warn(lineNo, "unterminated string literal")
		}
		if len(fields) > 0 {
			ins.Name = Mnemonic(fields[0])
			ins.Operands = fields[1:]
		}
		ins.Comment = comment
		ins.Raw = code
	}

	if t.head == nil {
		t.head = ins
	}
	t.tail = ins
	return ins
}

// SetHead starts a new sequence at ins, detaching everything before it.
func (t *Tokenizer) SetHead(ins *Instruction) {
	ins.Prev = nil
	t.head = ins
}

// Head returns the first instruction of the current sequence.
func (t *Tokenizer) Head() *Instruction { return t.head }

// Tail returns the last tokenized instruction.
func (t *Tokenizer) Tail() *Instruction { return t.tail }

// Reset drops the current sequence.
func (t *Tokenizer) Reset() {
	t.head = nil
	t.tail = nil
}

func (t *Tokenizer) warn(lineNo int, msg string) {
	if t.OnMalformed == nil {
		return
	}
	t.OnMalformed(&errors.MalformedInstructionError{
		Position: errors.Position{Line: lineNo},
		Msg:      msg,
	})
}

// Sanitize strips characters outside printable ASCII (whitespace excepted)
// and trims the line.
func Sanitize(line string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			return r
		case r >= 0x20 && r <= 0x7e:
			return r
		}
		return -1
	}, line)
	return strings.TrimSpace(clean)
}

// --- Line splitting ---

func isStringRecord(line string) bool {
	return isNumbered(line, 'S')
}

// splitFirstField splits on the first run of whitespace.
func splitFirstField(line string) (string, string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimLeft(line[i:], " \t")
}

// trimRecordSuffix removes the record id's trailing punctuation ("S12." -> "S12").
func trimRecordSuffix(label string) string {
	if n := len(label); n > 1 {
		if c := label[n-1]; c < '0' || c > '9' {
			return label[:n-1]
		}
	}
	return label
}

// splitComment cuts the line at the first "//" outside a double-quoted span.
// closed is false when a quote is still open at end of line.
func splitComment(line string) (code, comment string, closed bool) {
	inString := false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '"' && (!inString || line[i-1] != '\\'):
			inString = !inString
		case !inString && c == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+2:]), true
		}
	}
	return strings.TrimSpace(line), "", !inString
}

// splitFields splits on spaces and tabs, keeping quoted spans (quotes
// included) as single fields. An unterminated quote runs to end of line.
func splitFields(code string) ([]string, bool) {
	var (
		fields   []string
		part     strings.Builder
		inString bool
	)
	flush := func() {
		if part.Len() > 0 {
			fields = append(fields, part.String())
			part.Reset()
		}
	}

	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case !inString && c == '"':
			inString = true
			part.WriteByte(c)
		case inString && c == '"' && code[i-1] != '\\':
			inString = false
			part.WriteByte(c)
			flush()
		case !inString && (c == ' ' || c == '\t'):
			flush()
		default:
			part.WriteByte(c)
		}
	}
	flush()
	return fields, !inString
}
