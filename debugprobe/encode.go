package debugprobe

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

const maxDepth = 64

type visitKey struct {
	addr uintptr
	typ  reflect.Type
}

var (
	registry  = map[reflect.Type]func(ptr interface{}, name string){}
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// Register installs the encoder generated for the type sample points to.
// It is called from init functions only.
func Register(sample interface{}, fn func(ptr interface{}, name string)) {
	registry[reflect.TypeOf(sample).Elem()] = fn
}

// Serialize emits the value stored at ptr under the given slot name.
// Calls outside of a LineStart/LineEnd block are ignored.
func Serialize(ptr interface{}, name string) {
	b := active()
	if b == nil {
		return
	}
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		b.primitive(name, fmt.Sprintf("%T", ptr), KindErrorStr, "not addressable")
		return
	}
	mark := b.buf.Len()
	defer func() {
		if r := recover(); r != nil {
			b.buf.Truncate(mark)
			b.primitive(name, qualifiedName(v.Type().Elem()), KindErrorStr, fmt.Sprint("panic: ", r))
		}
	}()
	b.serializeAt(v, name)
}

// Record opens a struct node, fields follow as Serialize calls, End closes it.
func Record(v interface{}, name string) {
	b := active()
	if b == nil {
		return
	}
	b.open(Complex, name, qualifiedName(reflect.TypeOf(v).Elem()), KindNoData)
}

// Variant opens a tagged node, an empty tag falls back to the underlying value.
func Variant(v interface{}, name, tag string) {
	b := active()
	if b == nil {
		return
	}
	rv := reflect.ValueOf(v).Elem()
	if tag == "" {
		tag = formatBasic(rv)
	}
	b.open(Complex, name, qualifiedName(rv.Type()), KindStrIdent)
	b.log(tag)
}

// End closes the node opened by Record or Variant.
func End() {
	if b := active(); b != nil {
		b.close()
	}
}

func (b *block) serializeAt(ptr reflect.Value, name string) {
	t := ptr.Type().Elem()
	if b.depth >= maxDepth {
		b.primitive(name, qualifiedName(t), KindErrorStr, "max depth exceeded")
		return
	}
	key := visitKey{addr: ptr.Pointer(), typ: t}
	if b.visiting[key] {
		b.primitive(name, qualifiedName(t), KindErrorStr, "cycle")
		return
	}
	b.visiting[key] = true
	b.depth++
	defer func() {
		b.depth--
		delete(b.visiting, key)
	}()
	if fn, ok := registry[t]; ok && ptr.CanInterface() {
		fn(ptr.Interface(), name)
		return
	}
	b.builtin(ptr.Elem(), name)
}

// serializeValue handles values that are not addressable, such as map entries.
func (b *block) serializeValue(v reflect.Value, name string) {
	if v.CanAddr() {
		b.serializeAt(v.Addr(), name)
		return
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	b.serializeAt(p, name)
}

func (b *block) builtin(v reflect.Value, name string) {
	t := v.Type()
	typeName := qualifiedName(t)
	if t == errorType {
		b.outcome(v, name, typeName)
		return
	}
	if isNullType(t) {
		b.option(v, name, typeName)
		return
	}
	if isUUID(t) {
		raw := make([]byte, UUIDWidth)
		for i := range raw {
			raw[i] = byte(v.Index(i).Uint())
		}
		b.open(Primitive, name, typeName, KindUUID)
		b.data(raw)
		b.close()
		return
	}
	switch t.Kind() {
	case reflect.Bool:
		flag := byte(0)
		if v.Bool() {
			flag = 1
		}
		b.open(Primitive, name, typeName, KindBool)
		b.data([]byte{flag})
		b.close()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.open(Primitive, name, typeName, KindInt)
		b.writeInt(v.Int())
		b.close()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.open(Primitive, name, typeName, KindUint)
		b.writeUint(v.Uint())
		b.close()
	case reflect.Float32, reflect.Float64:
		b.primitive(name, typeName, KindStr, strconv.FormatFloat(v.Float(), 'g', -1, t.Bits()))
	case reflect.Complex64, reflect.Complex128:
		b.primitive(name, typeName, KindStr, strconv.FormatComplex(v.Complex(), 'g', -1, t.Bits()))
	case reflect.String:
		b.primitive(name, typeName, KindStr, v.String())
	case reflect.Ptr:
		if v.IsNil() {
			b.nilNode(name, typeName)
			return
		}
		b.open(Complex, name, typeName, KindNoData)
		b.serializeAt(v, "value")
		b.close()
	case reflect.Interface:
		if v.IsNil() {
			b.nilNode(name, typeName)
			return
		}
		b.open(Complex, name, typeName, KindNoData)
		b.serializeValue(v.Elem(), "value")
		b.close()
	case reflect.Slice, reflect.Array:
		b.open(Complex, name, typeName, KindArrayLen)
		b.writeUint(uint64(v.Len()))
		for i := 0; i < v.Len(); i++ {
			b.serializeValue(v.Index(i), IncIndex)
		}
		b.close()
	case reflect.Map:
		b.mapEntries(v, name, typeName)
	case reflect.Chan:
		if v.IsNil() {
			b.nilNode(name, typeName)
			return
		}
		b.open(Complex, name, typeName, KindRcMeta)
		b.writeInt(int64(v.Len()))
		b.writeInt(int64(v.Cap()))
		b.close()
	default:
		b.placeholder(name, typeName)
	}
}

func (b *block) nilNode(name, typeName string) {
	b.open(Complex, name, typeName, KindStrIdent)
	b.log("nil")
	b.close()
}

func (b *block) outcome(v reflect.Value, name, typeName string) {
	b.open(Complex, name, typeName, KindStrIdent)
	if v.IsNil() {
		b.log("Ok")
		b.close()
		return
	}
	b.log("Err")
	dynamic := v.Elem()
	message := "<unavailable>"
	if v.CanInterface() {
		message = errorText(v.Interface().(error))
	}
	b.primitive("0", qualifiedName(dynamic.Type()), KindErrorStr, message)
	b.close()
}

func errorText(err error) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = fmt.Sprint("panic: ", r)
		}
	}()
	return err.Error()
}

func (b *block) option(v reflect.Value, name, typeName string) {
	b.open(Complex, name, typeName, KindStrIdent)
	valid := v.FieldByName("Valid")
	if !valid.Bool() {
		b.log("None")
		b.close()
		return
	}
	b.log("Some")
	for i := 0; i < v.NumField(); i++ {
		if v.Type().Field(i).Name != "Valid" {
			b.serializeValue(v.Field(i), "0")
			break
		}
	}
	b.close()
}

func (b *block) mapEntries(v reflect.Value, name, typeName string) {
	b.open(Complex, name, typeName, KindArrayLen)
	b.writeUint(uint64(v.Len()))
	keys := v.MapKeys()
	sortKeys(keys)
	entryType := "(" + qualifiedName(v.Type().Key()) + ", " + qualifiedName(v.Type().Elem()) + ")"
	for _, key := range keys {
		b.open(Complex, IncIndex, entryType, KindNoData)
		b.serializeValue(key, "0")
		b.serializeValue(v.MapIndex(key), "1")
		b.close()
	}
	b.close()
}

func sortKeys(keys []reflect.Value) {
	if len(keys) < 2 {
		return
	}
	switch keys[0].Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Int() < keys[j].Int() })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Uint() < keys[j].Uint() })
	case reflect.Float32, reflect.Float64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Float() < keys[j].Float() })
	case reflect.String:
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	case reflect.Bool:
		sort.Slice(keys, func(i, j int) bool { return !keys[i].Bool() && keys[j].Bool() })
	}
}

// isNullType matches the database/sql Null wrappers without importing the package.
func isNullType(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t.PkgPath() != "database/sql" || t.NumField() != 2 {
		return false
	}
	if len(t.Name()) < 4 || t.Name()[:4] != "Null" {
		return false
	}
	valid, ok := t.FieldByName("Valid")
	return ok && valid.Type.Kind() == reflect.Bool
}

func isUUID(t reflect.Type) bool {
	return t.PkgPath() == "github.com/google/uuid" && t.Name() == "UUID" &&
		t.Kind() == reflect.Array && t.Len() == UUIDWidth && t.Elem().Kind() == reflect.Uint8
}

func qualifiedName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func formatBasic(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, v.Type().Bits())
	case reflect.String:
		return strconv.Quote(v.String())
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Interface:
		if v.IsNil() {
			return "nil"
		}
		return qualifiedName(v.Elem().Type())
	}
	return "?"
}
