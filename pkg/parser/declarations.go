package parser

import (
	"strconv"
	"strings"

	"github.com/golang/glog"

	"nascdec/pkg/errors"
	"nascdec/pkg/lexer"
	"nascdec/pkg/symbols"
)

// parseClassBegin reads "class kind name : super". Older chronicles omit
// the kind ("class name : super").
func (p *Parser) parseClassBegin(ins *lexer.Instruction) errors.DecompileError {
	class := &ClassDeclaration{}
	var super string

	switch n := len(ins.Operands); {
	case n == 3:
		class.Name = ins.Operand(0)
		super = ins.Operand(2)
	case n >= 4:
		kind, err := ins.IntOperand(0)
		if err != nil {
			return p.malformed("class kind %q", ins.Operand(0)).CausedBy(err)
		}
		class.Kind = ClassKind(kind)
		class.Name = ins.Operand(1)
		super = ins.Operand(3)
	default:
		return p.malformed("class header has %d operands", n)
	}

	if super != "(null)" {
		class.Super = super
	}
	p.class = class
	return nil
}

func (p *Parser) parsePropertyBegin(typ string, mode declMode, ins *lexer.Instruction) errors.DecompileError {
	if p.class == nil {
		return p.malformed("%s outside a class", ins.Name)
	}
	prop := &PropertyDeclaration{Type: typ, Name: ins.Operand(0)}
	p.class.Properties = append(p.class.Properties, prop)
	p.property = prop
	p.mode = mode
	return nil
}

func (p *Parser) parseHandlerBegin(ins *lexer.Instruction) errors.DecompileError {
	if p.class == nil {
		return p.malformed("handler outside a class")
	}
	id, err := ins.IntOperand(0)
	if err != nil {
		return p.malformed("handler id %q", ins.Operand(0)).CausedBy(err)
	}
	name, err := p.resolver.HandlerName(p.classKind(), id)
	if err != nil {
		return p.unresolved(err)
	}

	handler := &HandlerDeclaration{Name: name, Body: &BlockStatement{}}
	p.class.Handlers = append(p.class.Handlers, handler)
	p.handler = handler
	p.blocks.Push(handler.Body)
	p.statements.Push(&openHandler{decl: handler})

	// string records may appear anywhere in the handler
	for next := ins.Next; next != nil && !next.Is(lexer.HANDLER_END) && !next.Is(lexer.CLASS_END); next = next.Next {
		if next.IsString() {
			p.strings[next.Name] = strings.Trim(next.Operand(0), `"`)
		}
	}
	return nil
}

func (p *Parser) parseHandlerEnd() {
	p.statements.Pop()
	p.blocks.Pop()
	if p.statements.Len() > 0 || p.operands.Len() > 0 {
		glog.V(1).Infof("%s: handler %s ends with %d open statements and %d operands",
			p.position(), p.handler.Name, p.statements.Len(), p.operands.Len())
	}
	p.resetHandlerState()
}

// parseDeclarationRow handles rows of the parameter, property and
// variable sections. Rows outside a section are ignored.
func (p *Parser) parseDeclarationRow(ins *lexer.Instruction) errors.DecompileError {
	switch p.mode {
	case modeParameters:
		return p.parseParameter(ins)
	case modeBuySellList:
		return p.parseBuySellRow(ins)
	case modeTelPosList:
		p.property.Rows = append(p.property.Rows, PropertyRow{Cells: splitRow(ins.Raw), Comment: ins.Comment})
	case modeVariables:
		return p.parseVariable(ins)
	default:
		debugPrintf("ignoring %s", ins)
	}
	return nil
}

func (p *Parser) parseParameter(ins *lexer.Instruction) errors.DecompileError {
	if p.class == nil {
		return p.malformed("parameter outside a class")
	}
	param := &ParameterDeclaration{Type: fixTypeCase(string(ins.Name)), Name: ins.Operand(0)}

	if ins.HasOperand(1) {
		raw := ins.Operand(1)
		switch {
		case strings.HasPrefix(raw, `"`):
			lit := &StringLiteral{Value: strings.Trim(raw, `"`)}
			if raw == `"` || !strings.HasSuffix(raw, `"`) {
				p.mode = modeParameterString
				p.pendingString = lit
			}
			param.Value = lit
		case strings.Contains(raw, "."):
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return p.malformed("parameter %s default %q", param.Name, raw).CausedBy(err)
			}
			param.Value = &FloatLiteral{Value: f}
		default:
			id, err := lexer.ParseInt(raw)
			if err != nil {
				return p.malformed("parameter %s default %q", param.Name, raw).CausedBy(err)
			}
			param.Value = p.resolveConstant(id, parameterDomains(param.Name)...)
		}
	}

	p.class.Parameters = append(p.class.Parameters, param)
	if param.Value != nil {
		p.parameters[param.Name] = param.Value.Type()
	} else {
		p.parameters[param.Name] = param.Type
	}
	return nil
}

// parseParameterString appends a continuation line to a multi-line string
// default. The closing quote ends the literal.
func (p *Parser) parseParameterString(ins *lexer.Instruction) errors.DecompileError {
	if p.pendingString == nil {
		p.mode = modeParameters
		return nil
	}
	p.pendingString.Append("\n\t" + strings.Trim(ins.Raw, `"`))
	if strings.HasSuffix(ins.Raw, `"`) {
		p.mode = modeParameters
		p.pendingString = nil
	}
	return nil
}

// parameterDomains guesses the constant domains of a parameter default from
// its name.
func parameterDomains(name string) []string {
	lower := strings.ToLower(name)
	containsAny := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny("skill", "buff", "spell", "magic", "phys", "heal"):
		return []string{symbols.DomainSkill}
	case containsAny("item", "weapon"):
		return []string{symbols.DomainItem}
	case containsAny("npc"):
		return []string{symbols.DomainNPC}
	case lower == "gm_id":
		return []string{symbols.DomainGMID}
	}
	return []string{symbols.DomainNPC, symbols.DomainSkill}
}

func (p *Parser) parseBuySellRow(ins *lexer.Instruction) errors.DecompileError {
	cells := splitRow(ins.Raw)
	if len(cells) > 0 {
		if id, err := strconv.Atoi(cells[0]); err == nil {
			if name, ok := p.resolver.Constant(symbols.DomainItem, id); ok {
				cells[0] = strconv.Quote(name)
			}
		}
	}
	p.property.Rows = append(p.property.Rows, PropertyRow{Cells: cells, Comment: ins.Comment})
	return nil
}

// splitRow turns "{a; b; c}" into its trimmed cells.
func splitRow(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	cells := strings.Split(raw, ";")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func (p *Parser) parseVariable(ins *lexer.Instruction) errors.DecompileError {
	if p.handler == nil {
		return p.malformed("variable %s outside a handler", ins.Name)
	}
	name := fixVariableName(strings.Trim(string(ins.Name), `"`))
	if name == "" || name == "myself" || strings.HasPrefix(name, "_") {
		return nil
	}
	if typ, ok := p.resolver.VariableType(p.classKind(), name); ok {
		p.handler.Variables = append(p.handler.Variables, &VariableDeclaration{Type: typ, Name: name})
	}
	return nil
}

func fixTypeCase(typ string) string {
	switch typ {
	case "waypointstype":
		return "WayPointsType"
	case "waypointdelaystype":
		return "WayPointDelaysType"
	}
	return typ
}

// fixVariableName corrects misspellings baked into some chronicles.
func fixVariableName(name string) string {
	switch name {
	case "damege":
		return "damage"
	case "script_event3":
		return "script_event_arg3"
	}
	return name
}
