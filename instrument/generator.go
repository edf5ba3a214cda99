package instrument

import (
	"fmt"
	"github.com/viant/linescope/debugprobe"
	"go/format"
	"strconv"
	"strings"
)

// GeneratedFile is the name of the encoder file written to every instrumented package
const GeneratedFile = "zz_linescope_gen.go"

// Generator emits encoder registrations for collected package types
type Generator struct {
	ModulePath string
}

// Generate returns the source of the encoder file for pkg, or nil when pkg has no encodable types
func (g *Generator) Generate(pkg *Package) ([]byte, error) {
	if len(pkg.Types) == 0 {
		return nil, nil
	}
	e := &emitter{}
	e.line("// Code generated by linescope. DO NOT EDIT.")
	e.line("")
	e.line("package " + pkg.Name)
	e.line("")
	e.line(ImportDecl(g.ModulePath))
	e.line("")
	e.line("func init() {")
	for _, decl := range pkg.Types {
		switch decl.Kind {
		case StructType:
			e.structEncoder(decl)
		case EnumType:
			e.enumEncoder(decl)
		case SealedType:
			e.sealedEncoder(decl)
		}
	}
	e.line("}")
	formatted, err := format.Source([]byte(e.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to format encoders for %v: %w", pkg.Dir, err)
	}
	return formatted, nil
}

type emitter struct {
	strings.Builder
}

func (e *emitter) line(text string) {
	e.WriteString(text)
	e.WriteByte('\n')
}

func (e *emitter) call(fn string, args ...string) {
	e.line(debugprobe.ImportAlias + "." + fn + "(" + strings.Join(args, ", ") + ")")
}

func (e *emitter) register(typeName string, body func()) {
	e.line(debugprobe.ImportAlias + ".Register((*" + typeName + ")(nil), func(p_ interface{}, name_ string) {")
	e.line("v_ := p_.(*" + typeName + ")")
	body()
	e.call("End")
	e.line("})")
}

func (e *emitter) structEncoder(decl *TypeDecl) {
	e.register(decl.Name, func() {
		e.call("Record", "v_", "name_")
		for _, field := range decl.Fields {
			e.line(SerializeCall("v_."+field, field))
		}
	})
}

func (e *emitter) enumEncoder(decl *TypeDecl) {
	e.register(decl.Name, func() {
		e.line(`tag_ := ""`)
		e.line("switch {")
		for _, constant := range decl.Constants {
			e.line("case *v_ == " + constant + ":")
			e.line("tag_ = " + strconv.Quote(constant))
		}
		e.line("}")
		e.call("Variant", "v_", "name_", "tag_")
	})
}

func (e *emitter) sealedEncoder(decl *TypeDecl) {
	e.register(decl.Name, func() {
		e.line("switch x_ := (*v_).(type) {")
		for _, variant := range decl.Variants {
			tag := strconv.Quote(variant.Name)
			if variant.Value {
				e.line("case " + variant.Name + ":")
				e.call("Variant", "v_", "name_", tag)
				e.variantFields(variant)
			}
			e.line("case *" + variant.Name + ":")
			e.call("Variant", "v_", "name_", tag)
			if !variant.IsStruct {
				e.line(SerializeCall("x_", "0"))
				continue
			}
			if len(variant.Fields) > 0 {
				e.line("if x_ != nil {")
				e.variantFields(variant)
				e.line("}")
			}
		}
		e.line("default:")
		e.line("_ = x_")
		e.call("Variant", "v_", "name_", `""`)
		e.line("}")
	})
}

func (e *emitter) variantFields(variant *Variant) {
	if !variant.IsStruct {
		e.line(SerializeCall("x_", "0"))
		return
	}
	for _, field := range variant.Fields {
		e.line(SerializeCall("x_."+field, field))
	}
}
