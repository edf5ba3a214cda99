package output_test

import (
	"bytes"
	"database/sql"
	"errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/linescope/debugprobe"
	"github.com/viant/linescope/output"
	"math"
	"strconv"
	"strings"
	"testing"
)

type point struct {
	X int
	Y int
}

type color int

const (
	red color = iota
	green
)

func init() {
	debugprobe.Register((*point)(nil), func(p interface{}, name string) {
		v := p.(*point)
		debugprobe.Record(v, name)
		debugprobe.Serialize(&v.X, "X")
		debugprobe.Serialize(&v.Y, "Y")
		debugprobe.End()
	})
	debugprobe.Register((*color)(nil), func(p interface{}, name string) {
		v := p.(*color)
		tag := ""
		switch {
		case *v == red:
			tag = "red"
		case *v == green:
			tag = "green"
		}
		debugprobe.Variant(v, name, tag)
		debugprobe.End()
	})
}

// capture runs fn inside a capture block for the given line and returns the emitted records.
func capture(line int, fn func()) []string {
	buf := &bytes.Buffer{}
	debugprobe.SetOutput(buf)
	defer debugprobe.SetOutput(nil)
	debugprobe.LineStart(line)
	fn()
	debugprobe.LineEnd()
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

func leaf(name, typeName, payload, value string) *output.Node {
	return &output.Node{Kind: output.Primitive, Name: name, Type: typeName, Payload: payload, Value: value}
}

func TestParse_RoundTrip(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	ch := make(chan int, 4)
	ch <- 1

	tests := []struct {
		name  string
		value func() []string
		want  *output.Node
	}{
		{
			name:  "int8 min",
			value: func() []string { v := int8(math.MinInt8); return capture(1, func() { debugprobe.Serialize(&v, "v") }) },
			want:  leaf("v", "int8", debugprobe.KindInt, "-128"),
		},
		{
			name:  "int64 max",
			value: func() []string { v := int64(math.MaxInt64); return capture(1, func() { debugprobe.Serialize(&v, "v") }) },
			want:  leaf("v", "int64", debugprobe.KindInt, "9223372036854775807"),
		},
		{
			name:  "int64 min",
			value: func() []string { v := int64(math.MinInt64); return capture(1, func() { debugprobe.Serialize(&v, "v") }) },
			want:  leaf("v", "int64", debugprobe.KindInt, "-9223372036854775808"),
		},
		{
			name:  "uint64 max",
			value: func() []string { v := uint64(math.MaxUint64); return capture(1, func() { debugprobe.Serialize(&v, "v") }) },
			want:  leaf("v", "uint64", debugprobe.KindUint, "18446744073709551615"),
		},
		{
			name:  "bool",
			value: func() []string { v := true; return capture(1, func() { debugprobe.Serialize(&v, "v") }) },
			want:  leaf("v", "bool", debugprobe.KindBool, "true"),
		},
		{
			name:  "empty string",
			value: func() []string { v := ""; return capture(1, func() { debugprobe.Serialize(&v, "v") }) },
			want:  leaf("v", "string", debugprobe.KindStr, ""),
		},
		{
			name:  "multi line string",
			value: func() []string { v := "a\nb\\c"; return capture(1, func() { debugprobe.Serialize(&v, "v") }) },
			want:  leaf("v", "string", debugprobe.KindStr, "a\nb\\c"),
		},
		{
			name:  "float",
			value: func() []string { v := 1.5; return capture(1, func() { debugprobe.Serialize(&v, "v") }) },
			want:  leaf("v", "float64", debugprobe.KindStr, "1.5"),
		},
		{
			name: "nil pointer",
			value: func() []string {
				var v *int
				return capture(1, func() { debugprobe.Serialize(&v, "v") })
			},
			want: &output.Node{Kind: output.Complex, Name: "v", Type: "*int", Payload: debugprobe.KindStrIdent, Value: "nil"},
		},
		{
			name: "pointer",
			value: func() []string {
				i := 7
				v := &i
				return capture(1, func() { debugprobe.Serialize(&v, "v") })
			},
			want: &output.Node{Kind: output.Complex, Name: "v", Type: "*int", Payload: debugprobe.KindNoData, Children: []*output.Node{
				leaf("value", "int", debugprobe.KindInt, "7"),
			}},
		},
		{
			name: "nil error",
			value: func() []string {
				var v error
				return capture(1, func() { debugprobe.Serialize(&v, "err") })
			},
			want: &output.Node{Kind: output.Complex, Name: "err", Type: "error", Payload: debugprobe.KindStrIdent, Value: "Ok"},
		},
		{
			name: "error",
			value: func() []string {
				v := errors.New("boom")
				return capture(1, func() { debugprobe.Serialize(&v, "err") })
			},
			want: &output.Node{Kind: output.Complex, Name: "err", Type: "error", Payload: debugprobe.KindStrIdent, Value: "Err", Children: []*output.Node{
				leaf("0", "*errors.errorString", debugprobe.KindErrorStr, "boom"),
			}},
		},
		{
			name: "null string none",
			value: func() []string {
				v := sql.NullString{}
				return capture(1, func() { debugprobe.Serialize(&v, "v") })
			},
			want: &output.Node{Kind: output.Complex, Name: "v", Type: "database/sql.NullString", Payload: debugprobe.KindStrIdent, Value: "None"},
		},
		{
			name: "null int64 some",
			value: func() []string {
				v := sql.NullInt64{Int64: -3, Valid: true}
				return capture(1, func() { debugprobe.Serialize(&v, "v") })
			},
			want: &output.Node{Kind: output.Complex, Name: "v", Type: "database/sql.NullInt64", Payload: debugprobe.KindStrIdent, Value: "Some", Children: []*output.Node{
				leaf("0", "int64", debugprobe.KindInt, "-3"),
			}},
		},
		{
			name: "empty slice",
			value: func() []string {
				var v []int
				return capture(1, func() { debugprobe.Serialize(&v, "v") })
			},
			want: &output.Node{Kind: output.Complex, Name: "v", Type: "[]int", Payload: debugprobe.KindArrayLen, Value: "len: 0"},
		},
		{
			name: "single element array",
			value: func() []string {
				v := [1]string{"x"}
				return capture(1, func() { debugprobe.Serialize(&v, "v") })
			},
			want: &output.Node{Kind: output.Complex, Name: "v", Type: "[1]string", Payload: debugprobe.KindArrayLen, Value: "len: 1", Children: []*output.Node{
				leaf("0", "string", debugprobe.KindStr, "x"),
			}},
		},
		{
			name: "slice",
			value: func() []string {
				v := []uint16{1, 2, 3}
				return capture(1, func() { debugprobe.Serialize(&v, "v") })
			},
			want: &output.Node{Kind: output.Complex, Name: "v", Type: "[]uint16", Payload: debugprobe.KindArrayLen, Value: "len: 3", Children: []*output.Node{
				leaf("0", "uint16", debugprobe.KindUint, "1"),
				leaf("1", "uint16", debugprobe.KindUint, "2"),
				leaf("2", "uint16", debugprobe.KindUint, "3"),
			}},
		},
		{
			name: "map",
			value: func() []string {
				v := map[string]bool{"b": false, "a": true}
				return capture(1, func() { debugprobe.Serialize(&v, "v") })
			},
			want: &output.Node{Kind: output.Complex, Name: "v", Type: "map[string]bool", Payload: debugprobe.KindArrayLen, Value: "len: 2", Children: []*output.Node{
				{Kind: output.Complex, Name: "0", Type: "(string, bool)", Payload: debugprobe.KindNoData, Children: []*output.Node{
					leaf("0", "string", debugprobe.KindStr, "a"),
					leaf("1", "bool", debugprobe.KindBool, "true"),
				}},
				{Kind: output.Complex, Name: "1", Type: "(string, bool)", Payload: debugprobe.KindNoData, Children: []*output.Node{
					leaf("0", "string", debugprobe.KindStr, "b"),
					leaf("1", "bool", debugprobe.KindBool, "false"),
				}},
			}},
		},
		{
			name:  "channel",
			value: func() []string { return capture(1, func() { debugprobe.Serialize(&ch, "ch") }) },
			want:  &output.Node{Kind: output.Complex, Name: "ch", Type: "chan int", Payload: debugprobe.KindRcMeta, Value: "len: 1, cap: 4"},
		},
		{
			name:  "uuid",
			value: func() []string { return capture(1, func() { debugprobe.Serialize(&id, "id") }) },
			want:  leaf("id", "github.com/google/uuid.UUID", debugprobe.KindUUID, "6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		},
		{
			name: "interface",
			value: func() []string {
				var v any = uint8(5)
				return capture(1, func() { debugprobe.Serialize(&v, "v") })
			},
			want: &output.Node{Kind: output.Complex, Name: "v", Type: "interface {}", Payload: debugprobe.KindNoData, Children: []*output.Node{
				leaf("value", "uint8", debugprobe.KindUint, "5"),
			}},
		},
		{
			name: "unsupported",
			value: func() []string {
				v := struct{ A int }{A: 1}
				return capture(1, func() { debugprobe.Serialize(&v, "v") })
			},
			want: &output.Node{Kind: output.Complex, Name: "v", Type: "struct { A int }", Payload: debugprobe.KindNotImplemented, Value: "not implemented"},
		},
		{
			name: "registered struct",
			value: func() []string {
				v := point{X: 1, Y: -2}
				return capture(1, func() { debugprobe.Serialize(&v, "p") })
			},
			want: &output.Node{Kind: output.Complex, Name: "p", Type: "github.com/viant/linescope/output_test.point", Payload: debugprobe.KindNoData, Children: []*output.Node{
				leaf("X", "int", debugprobe.KindInt, "1"),
				leaf("Y", "int", debugprobe.KindInt, "-2"),
			}},
		},
		{
			name: "const enum",
			value: func() []string {
				v := green
				return capture(1, func() { debugprobe.Serialize(&v, "c") })
			},
			want: &output.Node{Kind: output.Complex, Name: "c", Type: "github.com/viant/linescope/output_test.color", Payload: debugprobe.KindStrIdent, Value: "green"},
		},
		{
			name: "const enum without constant",
			value: func() []string {
				v := color(9)
				return capture(1, func() { debugprobe.Serialize(&v, "c") })
			},
			want: &output.Node{Kind: output.Complex, Name: "c", Type: "github.com/viant/linescope/output_test.color", Payload: debugprobe.KindStrIdent, Value: "9"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			captures, err := output.Parse(tc.value())
			require.NoError(t, err)
			require.Len(t, captures, 1)
			assert.Equal(t, 1, captures[0].Line)
			require.Len(t, captures[0].Nodes, 1)
			if diff := cmp.Diff(tc.want, captures[0].Nodes[0]); diff != "" {
				t.Errorf("node mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Cycle(t *testing.T) {
	type link struct {
		Next *link
	}
	debugprobe.Register((*link)(nil), func(p interface{}, name string) {
		v := p.(*link)
		debugprobe.Record(v, name)
		debugprobe.Serialize(&v.Next, "Next")
		debugprobe.End()
	})
	v := &link{}
	v.Next = v
	captures, err := output.Parse(capture(3, func() { debugprobe.Serialize(&v, "v") }))
	require.NoError(t, err)
	require.Len(t, captures, 1)
	next := captures[0].Nodes[0].Child("value").Child("Next")
	require.NotNil(t, next)
	cycle := next.Child("value")
	require.NotNil(t, cycle)
	assert.Equal(t, debugprobe.KindErrorStr, cycle.Payload)
	assert.Equal(t, "cycle", cycle.Value)
}

func TestParse_MultipleHits(t *testing.T) {
	var lines []string
	for i := 0; i < 3; i++ {
		x := i
		lines = append(lines, "unrelated program output")
		lines = append(lines, capture(7, func() { debugprobe.Serialize(&x, "x") })...)
	}
	captures, err := output.Parse(lines)
	require.NoError(t, err)
	require.Len(t, captures, 3)
	for i, item := range captures {
		assert.Equal(t, 7, item.Line)
		require.Len(t, item.Nodes, 1)
		assert.Equal(t, "x", item.Nodes[0].Name)
		assert.Equal(t, strconv.Itoa(i), item.Nodes[0].Value)
	}
}

func TestParse_BindingOrder(t *testing.T) {
	a, b, c := 1, "two", true
	captures, err := output.Parse(capture(12, func() {
		debugprobe.Serialize(&a, "a")
		debugprobe.Serialize(&b, "b")
		debugprobe.Serialize(&c, "c")
	}))
	require.NoError(t, err)
	require.Len(t, captures, 1)
	var names []string
	for _, node := range captures[0].Nodes {
		names = append(names, node.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestParse_MarkerValues(t *testing.T) {
	end := debugprobe.LineEndMarker
	start := debugprobe.LineStartMarker + ";9"
	node := debugprobe.StartNode
	captures, err := output.Parse(capture(4, func() {
		debugprobe.Serialize(&end, "end")
		debugprobe.Serialize(&start, "start")
		debugprobe.Serialize(&node, "node")
	}))
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, 4, captures[0].Line)
	require.Len(t, captures[0].Nodes, 3)
	assert.Equal(t, end, captures[0].Lookup("end").Value)
	assert.Equal(t, start, captures[0].Lookup("start").Value)
	assert.Equal(t, node, captures[0].Lookup("node").Value)
}

func TestParse_NeverHit(t *testing.T) {
	captures, err := output.Parse([]string{"hello", "debugprobe log: unrelated"})
	require.NoError(t, err)
	assert.Empty(t, captures)
}

func TestParse_Malformed(t *testing.T) {
	log := func(text string) string { return debugprobe.LogPrefix + text }
	data := func(text string) string { return debugprobe.DataPrefix + text }
	header := func(kind, payload string) []string {
		return []string{log("START_NODE"), log(kind), log("v"), log("t"), log(payload)}
	}
	wrap := func(body ...string) []string {
		lines := []string{log("-.!;LINE_START;4")}
		lines = append(lines, body...)
		return append(lines, log("-.!;LINE_END"))
	}
	join := func(parts ...[]string) []string {
		var result []string
		for _, part := range parts {
			result = append(result, part...)
		}
		return result
	}

	tests := []struct {
		name  string
		lines []string
	}{
		{name: "missing end marker", lines: []string{log("-.!;LINE_START;4")}},
		{name: "bad marker", lines: []string{log("-.!;LINE_START;x"), log("-.!;LINE_END")}},
		{name: "missing start node", lines: wrap(log("primitive"))},
		{name: "unknown kind", lines: wrap(log("START_NODE"), log("other"), log("v"), log("t"), log("str"), log("x"), log("END_NODE"))},
		{name: "unknown payload", lines: wrap(join(header("primitive", "float"), []string{log("END_NODE")})...)},
		{name: "short int", lines: wrap(join(header("primitive", "int"), []string{data("AQ=="), log("END_NODE")})...)},
		{name: "bad base64", lines: wrap(join(header("primitive", "bool"), []string{data("!!"), log("END_NODE")})...)},
		{name: "bad bool", lines: wrap(join(header("primitive", "bool"), []string{data("Ag=="), log("END_NODE")})...)},
		{name: "missing end node", lines: wrap(join(header("primitive", "str"), []string{log("x")})...)},
		{name: "primitive with children", lines: wrap(join(
			header("primitive", "str"), []string{log("x")},
			header("primitive", "str"), []string{log("y"), log("END_NODE")},
			[]string{log("END_NODE")},
		)...)},
		{name: "ok outcome with child", lines: wrap(join(
			[]string{log("START_NODE"), log("complex"), log("err"), log("error"), log("str_ident"), log("Ok")},
			header("primitive", "str"), []string{log("x"), log("END_NODE")},
			[]string{log("END_NODE")},
		)...)},
		{name: "err outcome without child", lines: wrap(
			log("START_NODE"), log("complex"), log("err"), log("error"), log("str_ident"), log("Err"), log("END_NODE"),
		)},
		{name: "none option with child", lines: wrap(join(
			[]string{log("START_NODE"), log("complex"), log("v"), log("database/sql.NullString"), log("str_ident"), log("None")},
			header("primitive", "str"), []string{log("x"), log("END_NODE")},
			[]string{log("END_NODE")},
		)...)},
		{name: "nil with child", lines: wrap(join(
			[]string{log("START_NODE"), log("complex"), log("p"), log("*int"), log("str_ident"), log("nil")},
			header("primitive", "str"), []string{log("x"), log("END_NODE")},
			[]string{log("END_NODE")},
		)...)},
		{name: "trailing record", lines: wrap(join(
			header("primitive", "str"), []string{log("x"), log("END_NODE"), log("stray")},
		)...)},
		{name: "length mismatch", lines: wrap(join(
			header("complex", "array_len"), []string{data("AgAAAAAAAAAAAAAAAAAAAA=="), log("END_NODE")},
		)...)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := output.Parse(tc.lines)
			require.Error(t, err)
			var decodeErr *output.DecodeError
			assert.True(t, errors.As(err, &decodeErr))
		})
	}
}
