package symbols

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/text/encoding/unicode"
)

// Files names the data files of one chronicle directory.
type Files struct {
	Handlers  string
	Variables string
	Functions string
	Enums     string
	FString   string // optional
}

// DefaultFiles returns the conventional file names.
func DefaultFiles() Files {
	return Files{
		Handlers:  "handlers.json",
		Variables: "variables.json",
		Functions: "functions.json",
		Enums:     "enums.json",
		FString:   "fstring.txt",
	}
}

const variableTypeCacheSize = 4096

// Database is a Resolver loaded from a chronicle directory. It is read-only
// after Load and safe for concurrent use.
type Database struct {
	handlers  map[int]map[int]string
	variables map[int]*ownerTable
	functions map[int]Function
	constants map[string]map[int]string
	fstrings  map[int]string

	typeCache *lru.Cache // "kind/name" -> typeLookup
}

// ownerTable keeps the owners of one class kind in file order.
type ownerTable struct {
	order []string
	slots map[string]map[int]Variable
}

type typeLookup struct {
	typ string
	ok  bool
}

// Open loads a chronicle from a directory on disk.
func Open(dir string, files Files) (*Database, error) {
	return Load(os.DirFS(dir), files)
}

// Load reads every data file from fsys.
func Load(fsys fs.FS, files Files) (*Database, error) {
	cache, err := lru.New(variableTypeCacheSize)
	if err != nil {
		return nil, err
	}
	db := &Database{
		handlers:  make(map[int]map[int]string),
		variables: make(map[int]*ownerTable),
		functions: make(map[int]Function),
		constants: make(map[string]map[int]string),
		fstrings:  make(map[int]string),
		typeCache: cache,
	}

	if err := db.loadHandlers(fsys, files.Handlers); err != nil {
		return nil, err
	}
	if err := db.loadVariables(fsys, files.Variables); err != nil {
		return nil, err
	}
	if err := db.loadFunctions(fsys, files.Functions); err != nil {
		return nil, err
	}
	if err := db.loadConstants(fsys, files.Enums); err != nil {
		return nil, err
	}
	if files.FString != "" {
		if err := db.loadFString(fsys, files.FString); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// --- Resolver ---

func (db *Database) HandlerName(classKind, id int) (string, error) {
	if name, ok := db.handlers[classKind][id]; ok {
		return name, nil
	}
	return "", notFound("handler %d for class type %d", id, classKind)
}

func (db *Database) Variable(classKind int, ownerType string, address int) (Variable, error) {
	if table, ok := db.variables[classKind]; ok {
		if v, ok := table.slots[ownerKey(ownerType)][address]; ok {
			return v, nil
		}
	}
	return Variable{}, notFound("variable %s%d for class type %d", ownerPrefix(ownerType), address, classKind)
}

// VariableType finds the first variable called name in any owner of the
// class kind, in file order. Results, misses included, are cached.
func (db *Database) VariableType(classKind int, name string) (string, bool) {
	key := strconv.Itoa(classKind) + "/" + name
	if cached, ok := db.typeCache.Get(key); ok {
		res := cached.(typeLookup)
		return res.typ, res.ok
	}

	var res typeLookup
	if table, ok := db.variables[classKind]; ok {
		for _, owner := range table.order {
			if v, found := findByName(table.slots[owner], name); found {
				res = typeLookup{typ: v.Type, ok: true}
				break
			}
		}
	}
	db.typeCache.Add(key, res)
	return res.typ, res.ok
}

func (db *Database) Function(address int) (Function, error) {
	if f, ok := db.functions[address]; ok {
		return f, nil
	}
	return Function{}, notFound("function %d", address)
}

func (db *Database) Constant(domain string, id int) (string, bool) {
	name, ok := db.constants[domain][id]
	return name, ok
}

func (db *Database) IsPrimitiveType(name string) bool {
	if builtinPrimitives[name] {
		return true
	}
	_, ok := db.constants[name]
	return ok
}

func (db *Database) FString(id int) (string, bool) {
	s, ok := db.fstrings[id]
	return s, ok
}

// Domains returns the number of loaded constant domains and constants.
func (db *Database) Domains() (domains, constants int) {
	for _, c := range db.constants {
		domains++
		constants += len(c)
	}
	return domains, constants
}

// --- Loading ---

var jsonComment = regexp2.MustCompile(`(^//.*)|([ \t]+//.*)`, regexp2.Multiline)

// readJSON reads a JSON file that may carry // line comments.
func readJSON(fsys fs.FS, name string) ([]byte, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	stripped, err := jsonComment.Replace(string(data), "", -1, -1)
	if err != nil {
		return nil, fmt.Errorf("strip comments from %s: %w", name, err)
	}
	return []byte(stripped), nil
}

func (db *Database) loadHandlers(fsys fs.FS, name string) error {
	data, err := readJSON(fsys, name)
	if err != nil {
		return err
	}
	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	for kindKey, ids := range raw {
		kind, err := strconv.Atoi(kindKey)
		if err != nil {
			return fmt.Errorf("%s: class type %q: %w", name, kindKey, err)
		}
		db.handlers[kind] = make(map[int]string, len(ids))
		for idKey, handler := range ids {
			id, err := strconv.Atoi(idKey)
			if err != nil {
				return fmt.Errorf("%s: handler id %q: %w", name, idKey, err)
			}
			db.handlers[kind][id] = handler
		}
	}
	return nil
}

func (db *Database) loadVariables(fsys fs.FS, name string) error {
	data, err := readJSON(fsys, name)
	if err != nil {
		return err
	}
	kinds, err := decodeOrdered(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	for _, kindEntry := range kinds {
		kind, err := strconv.Atoi(kindEntry.key)
		if err != nil {
			return fmt.Errorf("%s: class type %q: %w", name, kindEntry.key, err)
		}
		owners, err := decodeOrdered(kindEntry.value)
		if err != nil {
			return fmt.Errorf("%s: class type %d: %w", name, kind, err)
		}
		table := &ownerTable{slots: make(map[string]map[int]Variable, len(owners))}
		for _, ownerEntry := range owners {
			var raw map[string]Variable
			if err := json.Unmarshal(ownerEntry.value, &raw); err != nil {
				return fmt.Errorf("%s: owner %s: %w", name, ownerEntry.key, err)
			}
			slots := make(map[int]Variable, len(raw))
			for addrKey, v := range raw {
				addr, err := strconv.Atoi(addrKey)
				if err != nil {
					return fmt.Errorf("%s: owner %s: address %q: %w", name, ownerEntry.key, addrKey, err)
				}
				slots[addr] = v
			}
			table.order = append(table.order, ownerEntry.key)
			table.slots[ownerEntry.key] = slots
		}
		db.variables[kind] = table
	}
	return nil
}

func (db *Database) loadFunctions(fsys fs.FS, name string) error {
	data, err := readJSON(fsys, name)
	if err != nil {
		return err
	}
	var raw map[string]Function
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	for addrKey, f := range raw {
		addr, err := strconv.Atoi(addrKey)
		if err != nil {
			return fmt.Errorf("%s: address %q: %w", name, addrKey, err)
		}
		db.functions[addr] = f
	}
	return nil
}

// pchSource is a constant domain backed by a header file.
type pchSource struct {
	domain  string
	pattern string // empty matches every constant
}

// loadConstants reads enums.json. Each domain is either an inline id->name
// object, a header file name, or {"file": ..., "pattern": ...}.
func (db *Database) loadConstants(fsys fs.FS, name string) error {
	data, err := readJSON(fsys, name)
	if err != nil {
		return err
	}
	domains, err := decodeOrdered(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}

	var fileOrder []string
	files := make(map[string][]pchSource)
	addFile := func(file string, src pchSource) {
		if _, ok := files[file]; !ok {
			fileOrder = append(fileOrder, file)
		}
		files[file] = append(files[file], src)
	}

	for _, entry := range domains {
		var file string
		if err := json.Unmarshal(entry.value, &file); err == nil {
			addFile(file, pchSource{domain: entry.key})
			continue
		}

		var ref struct {
			File    string `json:"file"`
			Pattern string `json:"pattern"`
		}
		if err := json.Unmarshal(entry.value, &ref); err == nil && ref.File != "" {
			addFile(ref.File, pchSource{domain: entry.key, pattern: ref.Pattern})
			continue
		}

		var inline map[string]string
		if err := json.Unmarshal(entry.value, &inline); err != nil {
			return fmt.Errorf("%s: domain %s: %w", name, entry.key, err)
		}
		constants := make(map[int]string, len(inline))
		for idKey, constant := range inline {
			id, err := strconv.Atoi(idKey)
			if err != nil {
				return fmt.Errorf("%s: domain %s: id %q: %w", name, entry.key, idKey, err)
			}
			constants[id] = constant
		}
		db.constants[entry.key] = constants
	}

	for _, file := range fileOrder {
		values, err := loadPCH(fsys, file, files[file])
		if err != nil {
			return err
		}
		for domain, constants := range values {
			db.constants[domain] = constants
		}
	}

	if skills, ok := db.constants[DomainSkill]; ok {
		db.constants[DomainSkillShort] = deriveSkillShort(skills)
	}
	// -1 is the "none" abnormal, never a real reference
	delete(db.constants[DomainAbnormal], -1)
	return nil
}

func (db *Database) loadFString(fsys fs.FS, name string) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	text, err := DecodeText(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		value := strings.TrimSpace(line[len(fields[0]):])
		value = strings.TrimSuffix(strings.TrimPrefix(value, `"`), `"`)
		db.fstrings[id] = value
	}
	return nil
}

// DecodeText returns data as UTF-8, converting UTF-16LE input that starts
// with a byte order mark.
func DecodeText(data []byte) (string, error) {
	if !bytes.HasPrefix(data, []byte{0xff, 0xfe}) {
		return string(data), nil
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// --- Ordered JSON ---

type orderedEntry struct {
	key   string
	value json.RawMessage
}

// decodeOrdered decodes a JSON object keeping key order.
func decodeOrdered(data []byte) ([]orderedEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var entries []orderedEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		entries = append(entries, orderedEntry{key: key, value: value})
	}
	return entries, nil
}
