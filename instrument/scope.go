package instrument

import (
	"go/ast"
	"go/token"
)

// Bindings is an ordered set of identifier names live at a program point
type Bindings []string

// With returns a copy extended with names not bound yet, the receiver is never modified
func (b Bindings) With(names ...string) Bindings {
	result := make(Bindings, len(b), len(b)+len(names))
	copy(result, b)
	for _, name := range names {
		if name == "" || name == "_" || result.Has(name) {
			continue
		}
		result = append(result, name)
	}
	return result
}

// Has returns true if name is bound
func (b Bindings) Has(name string) bool {
	for _, candidate := range b {
		if candidate == name {
			return true
		}
	}
	return false
}

// tracker walks function bodies in lexical order and stops at the first statement starting on line
type tracker struct {
	fset  *token.FileSet
	line  int
	probe *Probe
}

func (t *tracker) lineOf(pos token.Pos) int {
	return t.fset.Position(pos).Line
}

// spans returns true if node covers the target line
func (t *tracker) spans(node ast.Node) bool {
	return t.lineOf(node.Pos()) <= t.line && t.line <= t.lineOf(node.End())
}

func (t *tracker) file(file *ast.File) {
	for _, decl := range file.Decls {
		if t.probe != nil {
			return
		}
		if !t.spans(decl) {
			continue
		}
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Body == nil {
				continue
			}
			scope := Bindings{}.With(fieldNames(d.Recv)...)
			scope = scope.With(fieldNames(d.Type.Params)...)
			scope = scope.With(fieldNames(d.Type.Results)...)
			t.stmts(d.Body.List, scope, funcName(d))
		case *ast.GenDecl:
			// package level function literals start with an empty scope
			t.literals(d, Bindings{}, "init")
		}
	}
}

// stmts scans a statement list, bindings declared by a statement are visible to the following ones.
func (t *tracker) stmts(list []ast.Stmt, scope Bindings, fn string) {
	for _, stmt := range list {
		if t.probe != nil {
			return
		}
		if t.lineOf(stmt.Pos()) == t.line {
			t.inject(stmt, scope, fn)
			return
		}
		if t.spans(stmt) {
			t.stmt(stmt, scope, fn)
		}
		scope = scope.With(declared(stmt)...)
	}
}

func (t *tracker) inject(at ast.Node, scope Bindings, fn string) {
	t.probe = &Probe{
		Line:     t.line,
		Offset:   t.fset.Position(at.Pos()).Offset,
		Function: fn,
		Bindings: scope.With(),
	}
}

// stmt descends into a statement spanning the target line with its own copy of the scope
func (t *tracker) stmt(stmt ast.Stmt, scope Bindings, fn string) {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		t.stmts(s.List, scope, fn)
	case *ast.LabeledStmt:
		if s.Stmt != nil && t.lineOf(s.Stmt.Pos()) == t.line {
			// the probe goes before the label so that branch statements keep their target
			t.inject(s, scope, fn)
			return
		}
		if s.Stmt != nil {
			t.stmt(s.Stmt, scope, fn)
		}
	case *ast.IfStmt:
		inner := t.init(s.Init, scope, fn)
		t.literals(s.Cond, inner, fn)
		if t.spans(s.Body) {
			t.stmts(s.Body.List, inner, fn)
		}
		if s.Else != nil && t.probe == nil && t.spans(s.Else) {
			t.stmt(s.Else, inner, fn)
		}
	case *ast.ForStmt:
		inner := t.init(s.Init, scope, fn)
		t.literals(s.Cond, inner, fn)
		if s.Post != nil {
			t.literals(s.Post, inner, fn)
		}
		if t.spans(s.Body) {
			t.stmts(s.Body.List, inner, fn)
		}
	case *ast.RangeStmt:
		t.literals(s.X, scope, fn)
		inner := scope
		if s.Tok == token.DEFINE {
			inner = scope.With(identNames(s.Key, s.Value)...)
		}
		if t.spans(s.Body) {
			t.stmts(s.Body.List, inner, fn)
		}
	case *ast.SwitchStmt:
		inner := t.init(s.Init, scope, fn)
		t.literals(s.Tag, inner, fn)
		t.clauses(s.Body, inner, nil, fn)
	case *ast.TypeSwitchStmt:
		inner := t.init(s.Init, scope, fn)
		t.literals(s.Assign, inner, fn)
		var symbol []string
		if assign, ok := s.Assign.(*ast.AssignStmt); ok && len(assign.Lhs) == 1 {
			symbol = identNames(assign.Lhs[0])
		}
		t.clauses(s.Body, inner, symbol, fn)
	case *ast.SelectStmt:
		for _, item := range s.Body.List {
			clause, ok := item.(*ast.CommClause)
			if !ok || !t.spans(clause) || t.probe != nil {
				continue
			}
			inner := scope
			if clause.Comm != nil {
				t.literals(clause.Comm, scope, fn)
				inner = scope.With(declared(clause.Comm)...)
			}
			t.stmts(clause.Body, inner, fn)
		}
	default:
		t.literals(stmt, scope, fn)
	}
}

// init returns the scope of a compound statement extended with its init statement bindings
func (t *tracker) init(init ast.Stmt, scope Bindings, fn string) Bindings {
	if init == nil {
		return scope
	}
	t.literals(init, scope, fn)
	return scope.With(declared(init)...)
}

// clauses walks case clauses, each with a fresh copy of the switch scope
func (t *tracker) clauses(body *ast.BlockStmt, scope Bindings, symbol []string, fn string) {
	for _, item := range body.List {
		clause, ok := item.(*ast.CaseClause)
		if !ok || !t.spans(clause) || t.probe != nil {
			continue
		}
		for _, expr := range clause.List {
			t.literals(expr, scope, fn)
		}
		t.stmts(clause.Body, scope.With(symbol...), fn)
	}
}

// literals looks for function literals spanning the target line inside node
func (t *tracker) literals(node ast.Node, scope Bindings, fn string) {
	if node == nil || t.probe != nil || !t.spans(node) {
		return
	}
	ast.Inspect(node, func(n ast.Node) bool {
		if t.probe != nil {
			return false
		}
		lit, ok := n.(*ast.FuncLit)
		if !ok {
			return n == nil || t.spans(n)
		}
		if t.spans(lit.Body) {
			inner := scope.With(fieldNames(lit.Type.Params)...)
			inner = inner.With(fieldNames(lit.Type.Results)...)
			t.stmts(lit.Body.List, inner, fn+".func")
		}
		return false
	})
}

// declared returns variables a statement introduces into its enclosing block
func declared(stmt ast.Stmt) []string {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		if s.Tok != token.DEFINE {
			return nil
		}
		return identNames(s.Lhs...)
	case *ast.DeclStmt:
		decl, ok := s.Decl.(*ast.GenDecl)
		if !ok || decl.Tok != token.VAR {
			return nil
		}
		var names []string
		for _, spec := range decl.Specs {
			if value, ok := spec.(*ast.ValueSpec); ok {
				for _, name := range value.Names {
					names = append(names, name.Name)
				}
			}
		}
		return names
	case *ast.LabeledStmt:
		return declared(s.Stmt)
	}
	return nil
}

func identNames(exprs ...ast.Expr) []string {
	var names []string
	for _, expr := range exprs {
		if ident, ok := expr.(*ast.Ident); ok && ident.Name != "_" {
			names = append(names, ident.Name)
		}
	}
	return names
}

func fieldNames(fields *ast.FieldList) []string {
	if fields == nil {
		return nil
	}
	var names []string
	for _, field := range fields.List {
		for _, name := range field.Names {
			names = append(names, name.Name)
		}
	}
	return names
}

func funcName(decl *ast.FuncDecl) string {
	if decl.Recv == nil || len(decl.Recv.List) == 0 {
		return decl.Name.Name
	}
	return baseTypeName(decl.Recv.List[0].Type) + "." + decl.Name.Name
}
