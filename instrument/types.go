package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
)

// TypeKind classifies named types that receive a generated encoder
type TypeKind int

const (
	// StructType is a record like type, encoded field by field
	StructType TypeKind = iota + 1
	// EnumType is a named type with typed constants, encoded as the matching constant name
	EnumType
	// SealedType is an interface with an unexported method, encoded as the active variant and its fields
	SealedType
)

// Variant represents a type implementing a sealed interface
type Variant struct {
	Name     string
	IsStruct bool
	Fields   []string
	// Value is true when the value type implements the interface, not only the pointer type
	Value bool
}

// TypeDecl represents a package level named type with a generated encoder
type TypeDecl struct {
	Name      string
	Kind      TypeKind
	Fields    []string
	Constants []string
	Variants  []*Variant
}

// Package represents declarations collected from the non test files of one directory
type Package struct {
	Name  string
	Dir   string
	Types []*TypeDecl
}

type collector struct {
	specs     map[string]*ast.TypeSpec
	order     []string
	constants map[string][]string
	methods   map[string]map[string]bool // type -> method -> pointer receiver
}

// CollectPackage collects encodable types declared by the files of one package
func CollectPackage(dir string, files []*ast.File) (*Package, error) {
	pkg := &Package{Dir: dir}
	c := &collector{
		specs:     map[string]*ast.TypeSpec{},
		constants: map[string][]string{},
		methods:   map[string]map[string]bool{},
	}
	for _, file := range files {
		if pkg.Name == "" {
			pkg.Name = file.Name.Name
		} else if pkg.Name != file.Name.Name {
			return nil, fmt.Errorf("found packages %v and %v in %v", pkg.Name, file.Name.Name, dir)
		}
		c.collect(file)
	}
	for _, name := range c.order {
		if decl := c.typeDecl(name, c.specs[name]); decl != nil {
			pkg.Types = append(pkg.Types, decl)
		}
	}
	return pkg, nil
}

func (c *collector) collect(file *ast.File) {
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil || len(d.Recv.List) == 0 {
				continue
			}
			recv := d.Recv.List[0].Type
			typeName := baseTypeName(recv)
			if c.methods[typeName] == nil {
				c.methods[typeName] = map[string]bool{}
			}
			_, isPointer := recv.(*ast.StarExpr)
			c.methods[typeName][d.Name.Name] = isPointer
		case *ast.GenDecl:
			switch d.Tok {
			case token.TYPE:
				for _, spec := range d.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok || ts.Name.Name == "_" || ts.Assign.IsValid() || ts.TypeParams != nil {
						continue
					}
					c.specs[ts.Name.Name] = ts
					c.order = append(c.order, ts.Name.Name)
				}
			case token.CONST:
				c.collectConstants(d)
			}
		}
	}
}

// collectConstants tracks the type of every constant, including implicit repetition in a group
func (c *collector) collectConstants(decl *ast.GenDecl) {
	typeName := ""
	for _, spec := range decl.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		switch {
		case vs.Type != nil:
			typeName = identName(vs.Type)
		case len(vs.Values) > 0:
			typeName = conversionType(vs.Values[0])
		}
		if typeName == "" {
			continue
		}
		for _, name := range vs.Names {
			if name.Name != "_" {
				c.constants[typeName] = append(c.constants[typeName], name.Name)
			}
		}
	}
}

func (c *collector) typeDecl(name string, spec *ast.TypeSpec) *TypeDecl {
	switch t := spec.Type.(type) {
	case *ast.StructType:
		return &TypeDecl{Name: name, Kind: StructType, Fields: structFields(t)}
	case *ast.InterfaceType:
		methods, ok := sealedMethods(t)
		if !ok {
			return nil
		}
		decl := &TypeDecl{Name: name, Kind: SealedType}
		for _, candidate := range c.order {
			if variant := c.variant(candidate, methods); variant != nil {
				decl.Variants = append(decl.Variants, variant)
			}
		}
		if len(decl.Variants) == 0 {
			return nil
		}
		return decl
	}
	if constants := c.constants[name]; len(constants) > 0 {
		return &TypeDecl{Name: name, Kind: EnumType, Constants: constants}
	}
	return nil
}

// variant returns candidate as a variant if it declares every method of a sealed interface
func (c *collector) variant(candidate string, methods []string) *Variant {
	spec := c.specs[candidate]
	if _, ok := spec.Type.(*ast.InterfaceType); ok {
		return nil
	}
	declared := c.methods[candidate]
	result := &Variant{Name: candidate, Value: true}
	for _, method := range methods {
		isPointer, ok := declared[method]
		if !ok {
			return nil
		}
		if isPointer {
			result.Value = false
		}
	}
	if st, ok := spec.Type.(*ast.StructType); ok {
		result.IsStruct = true
		result.Fields = structFields(st)
	}
	return result
}

// sealedMethods returns interface methods when the method set has an unexported method and no embedded elements
func sealedMethods(t *ast.InterfaceType) ([]string, bool) {
	if t.Methods == nil {
		return nil, false
	}
	var methods []string
	sealed := false
	for _, field := range t.Methods.List {
		if len(field.Names) == 0 {
			return nil, false
		}
		for _, name := range field.Names {
			methods = append(methods, name.Name)
			if !name.IsExported() {
				sealed = true
			}
		}
	}
	return methods, sealed
}

func structFields(st *ast.StructType) []string {
	var fields []string
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			if name := baseTypeName(field.Type); name != "" {
				fields = append(fields, name)
			}
			continue
		}
		for _, name := range field.Names {
			if name.Name != "_" {
				fields = append(fields, name.Name)
			}
		}
	}
	return fields
}

// baseTypeName extracts the type name from pointer, qualified and instantiated type expressions
func baseTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return baseTypeName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return baseTypeName(t.X)
	case *ast.IndexListExpr:
		return baseTypeName(t.X)
	case *ast.ParenExpr:
		return baseTypeName(t.X)
	}
	return ""
}

func identName(expr ast.Expr) string {
	if ident, ok := expr.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

// conversionType returns T for constant expressions of the form T(x)
func conversionType(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return conversionType(e.X)
	case *ast.CallExpr:
		if len(e.Args) == 1 {
			return identName(e.Fun)
		}
	}
	return ""
}
