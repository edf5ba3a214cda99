package instrument_test

import (
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/linescope/instrument"
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

// lineOf returns the 1-based line of the first line containing marker
func lineOf(t *testing.T, src, marker string) int {
	for i, line := range strings.Split(src, "\n") {
		if strings.Contains(line, marker) {
			return i + 1
		}
	}
	t.Fatalf("marker %v not found", marker)
	return 0
}

func TestFindProbe(t *testing.T) {
	tests := []struct {
		name         string
		src          string
		marker       string
		wantBindings []string
		wantFunction string
		wantNone     bool
	}{
		{
			name: "params then let",
			src: `package main

func f(a int, b string) {
	c := a + len(b)
	g(c) // target
}`,
			marker:       "target",
			wantBindings: []string{"a", "b", "c"},
			wantFunction: "f",
		},
		{
			name: "then branch isolation",
			src: `package main

func f(cond bool) {
	if cond {
		x := 1
		g(x) // target
	} else {
		y := 2
		g(y)
	}
}`,
			marker:       "target",
			wantBindings: []string{"cond", "x"},
		},
		{
			name: "else branch isolation",
			src: `package main

func f(cond bool) {
	if v := 3; cond {
		x := 1
		g(x)
	} else {
		y := 2
		g(y, v) // target
	}
}`,
			marker:       "target",
			wantBindings: []string{"cond", "v", "y"},
		},
		{
			name: "bindings do not leak out of blocks",
			src: `package main

func f() {
	{
		inner := 1
		g(inner)
	}
	for i := 0; i < 3; i++ {
		g(i)
	}
	after := 2
	g(after) // target
}`,
			marker:       "target",
			wantBindings: []string{"after"},
		},
		{
			name: "statement own bindings are not visible",
			src: `package main

func f(a int) {
	b, c := a, a // target
	g(b, c)
}`,
			marker:       "target",
			wantBindings: []string{"a"},
		},
		{
			name: "receiver and named results",
			src: `package main

type S struct{}

func (s *S) m(a int) (n int, err error) {
	n = a // target
	return
}`,
			marker:       "target",
			wantBindings: []string{"s", "a", "n", "err"},
			wantFunction: "S.m",
		},
		{
			name: "nested function resets scope",
			src: `package main

func outer(a int) {
	b := 1
	_ = b
}

func inner(c int) {
	g(c) // target
}`,
			marker:       "target",
			wantBindings: []string{"c"},
			wantFunction: "inner",
		},
		{
			name: "closure extends enclosing scope",
			src: `package main

func f(a int) {
	b := 2
	h := func(c int) {
		g(a, b, c) // target
	}
	h(1)
}`,
			marker:       "target",
			wantBindings: []string{"a", "b", "c"},
			wantFunction: "f.func",
		},
		{
			name: "range",
			src: `package main

func f(items []int) {
	for i, item := range items {
		g(i, item) // target
	}
}`,
			marker:       "target",
			wantBindings: []string{"items", "i", "item"},
		},
		{
			name: "type switch symbol",
			src: `package main

func f(v any) {
	switch x := v.(type) {
	case int:
		g(x) // target
	case string:
		y := x
		g(y)
	}
}`,
			marker:       "target",
			wantBindings: []string{"v", "x"},
		},
		{
			name: "case clause isolation",
			src: `package main

func f(n int) {
	switch n {
	case 1:
		a := 1
		g(a)
	case 2:
		b := 2
		g(b) // target
	}
}`,
			marker:       "target",
			wantBindings: []string{"n", "b"},
		},
		{
			name: "select comm clause",
			src: `package main

func f(ch chan int) {
	select {
	case v, ok := <-ch:
		g(v, ok) // target
	default:
	}
}`,
			marker:       "target",
			wantBindings: []string{"ch", "v", "ok"},
		},
		{
			name: "var declarations and constants",
			src: `package main

func f() {
	var a, b int
	const c = 1
	var _ = 2
	g(a, b, c) // target
}`,
			marker:       "target",
			wantBindings: []string{"a", "b"},
		},
		{
			name: "blank identifiers",
			src: `package main

func f(_ int, a int) {
	_, b := g2()
	g(b) // target
}`,
			marker:       "target",
			wantBindings: []string{"a", "b"},
		},
		{
			name: "first statement wins",
			src: `package main

func f() {
	a := 1; b := 2 // target
	g(a, b)
}`,
			marker:       "target",
			wantBindings: []string{},
		},
		{
			name: "package level function literal",
			src: `package main

var handler = func(a int) {
	g(a) // target
}`,
			marker:       "target",
			wantBindings: []string{"a"},
		},
		{
			name: "no statement on line",
			src: `package main

func f() {
	g(1,
		2) // target
}`,
			marker:   "target",
			wantNone: true,
		},
		{
			name: "declaration line",
			src: `package main

func f() { // target
	g(1)
}`,
			marker:   "target",
			wantNone: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fset := token.NewFileSet()
			file, err := parser.ParseFile(fset, "main.go", tc.src, parser.ParseComments)
			require.NoError(t, err)
			line := lineOf(t, tc.src, tc.marker)
			probe := instrument.FindProbe(fset, file, line)
			if tc.wantNone {
				assert.Nil(t, probe)
				return
			}
			require.NotNil(t, probe)
			assert.Equal(t, line, probe.Line)
			assert.Equal(t, tc.wantBindings, []string(probe.Bindings))
			if tc.wantFunction != "" {
				assert.Equal(t, tc.wantFunction, probe.Function)
			}
		})
	}
}

func TestFindProbe_Label(t *testing.T) {
	src := `package main

func f(items []int) {
outer:
	for _, item := range items { // target
		if item > 1 {
			continue outer
		}
	}
}`
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "main.go", src, 0)
	require.NoError(t, err)
	probe := instrument.FindProbe(fset, file, lineOf(t, src, "target"))
	require.NotNil(t, probe)
	want := &instrument.Probe{
		Line:     5,
		Offset:   strings.Index(src, "outer:"),
		Function: "f",
		Bindings: instrument.Bindings{"items"},
	}
	assert.Empty(t, cmp.Diff(want, probe))
}

func TestBindings_With(t *testing.T) {
	base := instrument.Bindings{"a"}
	extended := base.With("b", "a", "_", "c")
	assert.Equal(t, instrument.Bindings{"a", "b", "c"}, extended)
	assert.Equal(t, instrument.Bindings{"a"}, base)

	left := extended.With("x")
	right := extended.With("y")
	assert.Equal(t, instrument.Bindings{"a", "b", "c", "x"}, left)
	assert.Equal(t, instrument.Bindings{"a", "b", "c", "y"}, right)
}
