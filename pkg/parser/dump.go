package parser

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// Dump renders the lifted tree of a class for debugging.
func Dump(class *ClassDeclaration) string {
	tree := treeprint.New()
	tree.SetValue(class.String())

	if len(class.Parameters) > 0 {
		params := tree.AddBranch("parameters")
		for _, p := range class.Parameters {
			params.AddNode(p.String())
		}
	}
	if len(class.Properties) > 0 {
		props := tree.AddBranch("properties")
		for _, p := range class.Properties {
			branch := props.AddBranch(p.String())
			for _, row := range p.Rows {
				branch.AddNode(fmt.Sprintf("%v", row.Cells))
			}
		}
	}
	for _, h := range class.Handlers {
		branch := tree.AddBranch(h.String())
		dumpBlock(branch, h.Body)
	}
	return tree.String()
}

func dumpBlock(tree treeprint.Tree, block *BlockStatement) {
	for _, s := range block.Statements {
		dumpStatement(tree, s)
	}
}

func dumpStatement(tree treeprint.Tree, stmt Statement) {
	switch s := stmt.(type) {
	case *IfStatement:
		branch := tree.AddBranch("if " + s.Condition.String())
		dumpBlock(branch.AddBranch("then"), s.Then)
		if s.Else.Len() > 0 {
			dumpBlock(branch.AddBranch("else"), s.Else)
		}
	case *WhileStatement:
		dumpBlock(tree.AddBranch("while "+s.Condition.String()), s.Body)
	case *ForStatement:
		dumpBlock(tree.AddBranch(fmt.Sprintf("for %s; %s; %s", s.Init, s.Condition, s.Update)), s.Body)
	case *SelectStatement:
		branch := tree.AddBranch("select " + s.Condition.String())
		for _, c := range s.Cases {
			dumpBlock(branch.AddBranch("case "+c.Value.String()), c.Body)
		}
	default:
		tree.AddNode(stmt.String())
	}
}
