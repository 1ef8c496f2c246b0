package lexer

// ClassListing is the instruction arena of one class: every instruction from
// `class` to `class_end`, indexed by position, plus a label index so jump
// targets resolve without walking the list.
type ClassListing struct {
	Name         string
	Instructions []*Instruction
	labels       map[Mnemonic]int
}

// NewClassListing collects the class starting at head. The sequence is cut
// after the first class_end so the listing never links into the next class.
func NewClassListing(head *Instruction) *ClassListing {
	cl := &ClassListing{
		Instructions: make([]*Instruction, 0, 256),
		labels:       make(map[Mnemonic]int),
	}
	if head == nil {
		return cl
	}
	head.Prev = nil

	for ins := head; ins != nil; ins = ins.Next {
		ins.Index = len(cl.Instructions)
		cl.Instructions = append(cl.Instructions, ins)
		if ins.IsLabel() {
			cl.labels[ins.Name] = ins.Index
		}
		if ins.Is(CLASS_END) {
			ins.Next = nil
			break
		}
	}

	cl.Name = ClassName(head)
	return cl
}

// ClassName extracts the class name from a `class` header. Older chronicles
// omit the kind operand ("name : super").
func ClassName(header *Instruction) string {
	if !header.Is(CLASS) {
		return ""
	}
	if len(header.Operands) == 3 {
		return header.Operand(0)
	}
	return header.Operand(1)
}

// Head returns the class header instruction.
func (cl *ClassListing) Head() *Instruction {
	if len(cl.Instructions) == 0 {
		return nil
	}
	return cl.Instructions[0]
}

// Label returns the label instruction with the given name, if present.
func (cl *ClassListing) Label(name Mnemonic) *Instruction {
	if i, ok := cl.labels[name]; ok {
		return cl.Instructions[i]
	}
	return nil
}

// Len returns the number of instructions in the class.
func (cl *ClassListing) Len() int { return len(cl.Instructions) }

// SplitClasses walks a tokenized sequence and returns one listing per
// class/class_end span. Instructions outside a class are dropped.
func SplitClasses(head *Instruction) []*ClassListing {
	var classes []*ClassListing
	for ins := head; ins != nil; {
		if !ins.Is(CLASS) {
			ins = ins.Next
			continue
		}
		// find the end before NewClassListing cuts the link
		end := ins
		for end != nil && !end.Is(CLASS_END) {
			end = end.Next
		}
		var next *Instruction
		if end != nil {
			next = end.Next
		}
		classes = append(classes, NewClassListing(ins))
		ins = next
	}
	return classes
}
