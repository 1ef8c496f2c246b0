package parser

import (
	"github.com/golang/glog"

	"nascdec/pkg/errors"
	"nascdec/pkg/lexer"
	"nascdec/pkg/symbols"
)

// openStatement is an element of the statement stack: either a compound
// statement whose block is still being filled, or a marker carrying a
// construct that spans several instructions.
type openStatement interface {
	openStatement()
}

type openHandler struct{ decl *HandlerDeclaration }
type openIf struct{ stmt *IfStatement }
type openWhile struct{ stmt *WhileStatement }
type openFor struct{ stmt *ForStatement }
type openSelect struct{ stmt *SelectStatement }

// pendingFor marks a for-loop whose update assignment has not been seen.
type pendingFor struct{}

// pendingCase marks a select expecting its next case comparison.
type pendingCase struct{}

// pendingElse marks the else block of an if, closed at the jump target.
type pendingElse struct{}

func (*openHandler) openStatement() {}
func (*openIf) openStatement()      {}
func (*openWhile) openStatement()   {}
func (*openFor) openStatement()     {}
func (*openSelect) openStatement()  {}
func (*pendingFor) openStatement()  {}
func (*pendingCase) openStatement() {}
func (*pendingElse) openStatement() {}

func (p *Parser) topStatement() openStatement {
	top, _ := p.statements.Top()
	return top
}

// parseBranchFalse classifies a conditional branch. The first matching
// shape wins; every shape except the &&-chain records the target label.
func (p *Parser) parseBranchFalse(ins *lexer.Instruction) errors.DecompileError {
	target := ins.LabelOperand(0)
	if target == "" {
		return p.malformed("branch_false without a target label")
	}

	switch {
	case p.isWhile(ins):
		glog.V(2).Infof("%s: %s opens while", p.position(), ins)
		cond, err := p.popExpression()
		if err != nil {
			return err
		}
		w := &WhileStatement{Condition: cond, Body: &BlockStatement{}}
		if err := p.addStatement(w); err != nil {
			return err
		}
		p.blocks.Push(w.Body)
		p.statements.Push(&openWhile{stmt: w})

	case isPendingCase(p.topStatement()):
		glog.V(2).Infof("%s: %s opens case", p.position(), ins)
		p.statements.Pop()
		value, err := p.popExpression()
		if err != nil {
			return err
		}
		sel, ok := p.topStatement().(*openSelect)
		if !ok {
			return p.malformed("case comparison outside a select")
		}
		if il, ok := value.(*IntegerLiteral); ok {
			value = p.resolveConstant(il.Value, sel.stmt.Condition.Type(), symbols.DomainSkill)
		}
		p.blocks.SetTop(sel.stmt.AddCase(value))

	case p.isSelect(ins):
		glog.V(2).Infof("%s: %s opens select", p.position(), ins)
		expr, err := p.popExpression()
		if err != nil {
			return err
		}
		cmp := expr.(*BinaryExpression)
		sel := &SelectStatement{Condition: cmp.Left}
		body := sel.AddCase(cmp.Right)
		if err := p.addStatement(sel); err != nil {
			return err
		}
		p.blocks.Push(body)
		p.statements.Push(&openSelect{stmt: sel})

	case ins.Next.Is(lexer.JUMP):
		glog.V(2).Infof("%s: %s starts for signature", p.position(), ins)
		p.statements.Push(&pendingFor{})

	case ins.Next.IsLabel() || !ins.Prev.IsIntFetch():
		glog.V(2).Infof("%s: %s opens if", p.position(), ins)
		cond, err := p.popExpression()
		if err != nil {
			return err
		}
		ifStmt := NewIf(cond)
		if err := p.addStatement(ifStmt); err != nil {
			return err
		}
		p.blocks.Push(ifStmt.Then)
		p.statements.Push(&openIf{stmt: ifStmt})

	default:
		// short-circuit link of an && chain; the final branch opens the if
		return nil
	}

	p.branches.Push(target)
	return nil
}

// isWhile: the target lies ahead and is preceded by a backward jump.
func (p *Parser) isWhile(ins *lexer.Instruction) bool {
	label := p.goToLabel(ins)
	if label == nil {
		return false
	}
	back := label.Prev
	return back.Is(lexer.JUMP) && p.labels[back.LabelOperand(0)]
}

// isSelect: the target lies ahead, follows a jump and precedes the
// push_reg_sp that reloads the select operand; the condition is the first
// case comparison.
func (p *Parser) isSelect(ins *lexer.Instruction) bool {
	label := p.goToLabel(ins)
	if label == nil {
		return false
	}
	if !label.Prev.Is(lexer.JUMP) || !label.Next.Is(lexer.PUSH_REG_SP) {
		return false
	}
	_, ok := p.peekExpression().(*BinaryExpression)
	return ok
}

// goToLabel returns the label a branch targets when it lies ahead and has
// not been reached yet.
func (p *Parser) goToLabel(ins *lexer.Instruction) *lexer.Instruction {
	target := ins.LabelOperand(0)
	if p.labels[target] {
		return nil
	}
	label := p.listing.Label(target)
	if label == nil || label.Index < ins.Index {
		return nil
	}
	return label
}

// parseLabel closes every open statement down to the one whose branch
// target is this label.
func (p *Parser) parseLabel(ins *lexer.Instruction) errors.DecompileError {
	p.labels[ins.Name] = true

	for p.hasBranchTarget(ins.Name) {
		p.branches.Pop()
		st, ok := p.statements.Pop()
		if !ok {
			return p.underflow("label %s closes nothing", ins.Name)
		}

		switch s := st.(type) {
		case *openSelect:
			if ins.Prev.Is(lexer.JUMP) && (ins.Back(2).Is(lexer.JUMP) || ins.Next.IsLabel()) {
				if err := p.addStatement(&BreakStatement{}); err != nil {
					return err
				}
			}
			if p.selectContinues(ins) {
				p.statements.Push(s)
				p.statements.Push(&pendingCase{})
				continue
			}
			p.blocks.Pop()

		case *openIf:
			if ins.Prev.Is(lexer.JUMP) {
				p.blocks.SetTop(s.stmt.Else)
				p.branches.Push(ins.Prev.LabelOperand(0))
				p.statements.Push(&pendingElse{})
				continue
			}
			p.blocks.Pop()

		default:
			p.blocks.Pop()
		}
	}
	return nil
}

// selectContinues reports whether another case follows the label, looking
// through at most one jump.
func (p *Parser) selectContinues(label *lexer.Instruction) bool {
	next := label.Next
	if next.Is(lexer.JUMP) {
		target := p.goToLabel(next)
		if target == nil {
			return false
		}
		if target.Next.Is(lexer.JUMP) {
			glog.V(1).Infof("%s: select continuation after %s passes through more than one jump", p.position(), label.Name)
		}
		next = target.Next
	}
	return next.Is(lexer.PUSH_REG_SP)
}

func (p *Parser) hasBranchTarget(label lexer.Mnemonic) bool {
	for i := 0; i < p.branches.Len(); i++ {
		if target, _ := p.branches.At(i); target == label {
			return true
		}
	}
	return false
}

// parseJump emits a break when the jump leaves the innermost loop.
func (p *Parser) parseJump(ins *lexer.Instruction) errors.DecompileError {
	target := ins.LabelOperand(0)
	for i := 0; i < p.statements.Len(); i++ {
		st, _ := p.statements.At(i)
		switch st.(type) {
		case *openWhile, *openFor:
			if exit, ok := p.branches.At(i); ok && exit == target {
				return p.addStatement(&BreakStatement{})
			}
			return nil
		}
	}
	return nil
}

// materializeFor turns the pending for signature into a loop once its
// update assignment is on the operand stack.
func (p *Parser) materializeFor() errors.DecompileError {
	exprs, err := p.popExpressions(3)
	if err != nil {
		return err
	}
	f := &ForStatement{Init: exprs[2], Condition: exprs[1], Update: exprs[0], Body: &BlockStatement{}}
	if err := p.addStatement(f); err != nil {
		return err
	}
	p.statements.SetTop(&openFor{stmt: f})
	p.blocks.Push(f.Body)
	return nil
}

func isPendingCase(st openStatement) bool {
	_, ok := st.(*pendingCase)
	return ok
}
