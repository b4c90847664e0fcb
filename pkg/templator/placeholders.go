package templator

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"
)

func checkPlaceholders(tmpl *template.Template, vars any) error {
	t := indirectType(reflect.TypeOf(vars))
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("template vars must be a struct, got %T", vars)
	}

	unknown := map[string]struct{}{}
	for _, tt := range tmpl.Templates() {
		if tt.Tree == nil || tt.Root == nil {
			continue
		}
		walk(tt.Root, func(field string) {
			if !hasField(t, field) {
				unknown[field] = struct{}{}
			}
		})
	}

	if len(unknown) == 0 {
		return nil
	}

	names := make([]string, 0, len(unknown))
	for name := range unknown {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("%w: %s not in %s", ErrUnknownPlaceholder, strings.Join(names, ", "), t.Name())
}

// walk visits the first identifier of every field reference evaluated against
// the top-level dot. Bodies of range and with blocks rebind dot and are skipped.
func walk(node parse.Node, visit func(string)) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			walk(child, visit)
		}
	case *parse.ActionNode:
		walk(n.Pipe, visit)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			for _, arg := range cmd.Args {
				walk(arg, visit)
			}
		}
	case *parse.FieldNode:
		visit(n.Ident[0])
	case *parse.ChainNode:
		walk(n.Node, visit)
	case *parse.IfNode:
		walk(n.Pipe, visit)
		walk(n.List, visit)
		walk(n.ElseList, visit)
	case *parse.RangeNode:
		walk(n.Pipe, visit)
	case *parse.WithNode:
		walk(n.Pipe, visit)
	case *parse.TemplateNode:
		walk(n.Pipe, visit)
	}
}

func hasField(t reflect.Type, name string) bool {
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		return true
	}
	_, ok := reflect.PointerTo(t).MethodByName(name)
	return ok
}

func indirectType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func sameType(vars, data any) error {
	want := indirectType(reflect.TypeOf(vars))
	got := indirectType(reflect.TypeOf(data))
	if want != got {
		return fmt.Errorf("got vars of type %v, template was loaded for %v", got, want)
	}
	return nil
}
