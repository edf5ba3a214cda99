package instrument

import (
	"github.com/viant/linescope/debugprobe"
	"go/ast"
	"go/token"
	"strconv"
	"strings"
)

// Probe represents capture code injected before the first statement of the target line
type Probe struct {
	Line     int
	Offset   int // byte offset of the insertion point
	Function string
	Bindings Bindings
}

// Code renders the probe as a single line block so that line numbers of the file stay unchanged
func (p *Probe) Code() string {
	alias := debugprobe.ImportAlias
	var sb strings.Builder
	sb.WriteString("{ ")
	sb.WriteString(alias + ".LineStart(" + strconv.Itoa(p.Line) + "); ")
	for _, name := range p.Bindings {
		sb.WriteString(SerializeCall(name, name))
		sb.WriteString("; ")
	}
	sb.WriteString(alias + ".LineEnd() }; ")
	return sb.String()
}

// SerializeCall renders a runtime call emitting the value of expr under the given slot name
func SerializeCall(expr, name string) string {
	return debugprobe.ImportAlias + ".Serialize(&" + expr + ", " + strconv.Quote(name) + ")"
}

// ImportDecl renders the runtime import for a module
func ImportDecl(modulePath string) string {
	return "import " + debugprobe.ImportAlias + " " + strconv.Quote(RuntimeImportPath(modulePath))
}

// RuntimeImportPath returns the import path of the runtime copy inside a module
func RuntimeImportPath(modulePath string) string {
	return modulePath + "/" + debugprobe.RuntimeDir
}

// FindProbe locates the probe point for line in a parsed file, it returns nil when no statement starts on the line
func FindProbe(fset *token.FileSet, file *ast.File, line int) *Probe {
	t := &tracker{fset: fset, line: line}
	t.file(file)
	return t.probe
}

// isSerializeCall returns true if stmt is a runtime Serialize call
func isSerializeCall(stmt ast.Stmt) bool {
	expr, ok := stmt.(*ast.ExprStmt)
	if !ok {
		return false
	}
	call, ok := expr.X.(*ast.CallExpr)
	if !ok {
		return false
	}
	selector, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || selector.Sel.Name != "Serialize" {
		return false
	}
	pkg, ok := selector.X.(*ast.Ident)
	return ok && pkg.Name == debugprobe.ImportAlias
}

// SerializeStatements returns every runtime Serialize statement in file
func SerializeStatements(file *ast.File) []ast.Stmt {
	var result []ast.Stmt
	ast.Inspect(file, func(n ast.Node) bool {
		if stmt, ok := n.(ast.Stmt); ok && isSerializeCall(stmt) {
			result = append(result, stmt)
			return false
		}
		return true
	})
	return result
}
