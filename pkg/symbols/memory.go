package symbols

import "sort"

// MemoryResolver is a Resolver over plain maps, for tests and embedding.
type MemoryResolver struct {
	Handlers  map[int]map[int]string             // class kind -> id -> name
	Variables map[int]map[string]map[int]Variable // class kind -> owner ("_" global) -> address
	Functions map[int]Function
	Constants map[string]map[int]string // domain -> id -> name
	FStrings  map[int]string
}

// NewMemoryResolver returns an empty resolver ready to be filled.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{
		Handlers:  make(map[int]map[int]string),
		Variables: make(map[int]map[string]map[int]Variable),
		Functions: make(map[int]Function),
		Constants: make(map[string]map[int]string),
		FStrings:  make(map[int]string),
	}
}

// AddHandler registers a handler name.
func (m *MemoryResolver) AddHandler(classKind, id int, name string) *MemoryResolver {
	if m.Handlers[classKind] == nil {
		m.Handlers[classKind] = make(map[int]string)
	}
	m.Handlers[classKind][id] = name
	return m
}

// AddVariable registers a variable; owner "" is the global scope.
func (m *MemoryResolver) AddVariable(classKind int, owner string, address int, v Variable) *MemoryResolver {
	if m.Variables[classKind] == nil {
		m.Variables[classKind] = make(map[string]map[int]Variable)
	}
	key := ownerKey(owner)
	if m.Variables[classKind][key] == nil {
		m.Variables[classKind][key] = make(map[int]Variable)
	}
	m.Variables[classKind][key][address] = v
	return m
}

// AddFunction registers a function signature.
func (m *MemoryResolver) AddFunction(address int, f Function) *MemoryResolver {
	m.Functions[address] = f
	return m
}

// AddConstant registers a constant. Adding to SKILL also feeds SKILL_SHORT.
func (m *MemoryResolver) AddConstant(domain string, id int, name string) *MemoryResolver {
	if m.Constants[domain] == nil {
		m.Constants[domain] = make(map[int]string)
	}
	m.Constants[domain][id] = name
	if domain == DomainSkill {
		for short, n := range deriveSkillShort(map[int]string{id: name}) {
			m.AddConstant(DomainSkillShort, short, n)
		}
	}
	return m
}

func (m *MemoryResolver) HandlerName(classKind, id int) (string, error) {
	if name, ok := m.Handlers[classKind][id]; ok {
		return name, nil
	}
	return "", notFound("handler %d for class type %d", id, classKind)
}

func (m *MemoryResolver) Variable(classKind int, ownerType string, address int) (Variable, error) {
	if v, ok := m.Variables[classKind][ownerKey(ownerType)][address]; ok {
		return v, nil
	}
	return Variable{}, notFound("variable %s%d for class type %d", ownerPrefix(ownerType), address, classKind)
}

func (m *MemoryResolver) VariableType(classKind int, name string) (string, bool) {
	owners := make([]string, 0, len(m.Variables[classKind]))
	for owner := range m.Variables[classKind] {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		if v, ok := findByName(m.Variables[classKind][owner], name); ok {
			return v.Type, true
		}
	}
	return "", false
}

func (m *MemoryResolver) Function(address int) (Function, error) {
	if f, ok := m.Functions[address]; ok {
		return f, nil
	}
	return Function{}, notFound("function %d", address)
}

func (m *MemoryResolver) Constant(domain string, id int) (string, bool) {
	name, ok := m.Constants[domain][id]
	return name, ok
}

func (m *MemoryResolver) IsPrimitiveType(name string) bool {
	if builtinPrimitives[name] {
		return true
	}
	_, ok := m.Constants[name]
	return ok
}

func (m *MemoryResolver) FString(id int) (string, bool) {
	s, ok := m.FStrings[id]
	return s, ok
}

func ownerPrefix(ownerType string) string {
	if ownerType == "" {
		return ""
	}
	return ownerType + "->"
}

// findByName scans one owner's slots in address order.
func findByName(slots map[int]Variable, name string) (Variable, bool) {
	addrs := make([]int, 0, len(slots))
	for addr := range slots {
		addrs = append(addrs, addr)
	}
	sort.Ints(addrs)
	for _, addr := range addrs {
		if slots[addr].Name == name {
			return slots[addr], true
		}
	}
	return Variable{}, false
}
