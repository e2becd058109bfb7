// Package extract is the Symbol Extractor (§4.3): for one file's parse
// tree, walk the root and emit a flat record of top-level declarations.
// The traversal is lexical, not semantic — generic arguments are captured
// as nested type references but never unified, and a method call's
// receiver type is not resolved (here or later in the pipeline).
//
// Following §9's design note on recursive descent, this package is a
// family of pure functions over subtree roots: no package-level mutable
// state, and the source bytes are always passed alongside the node being
// inspected so that positions map back to characters.
package extract

import (
	"strings"

	"github.com/crateweave/depgraph/internal/model"
	"github.com/crateweave/depgraph/internal/synatree"
)

// File is everything extracted from one source file's root node, before
// the module resolver assigns qualified-path ids and stitches in
// submodules discovered on disk.
type File struct {
	Structs   []model.StructDecl
	Enums     []model.EnumDecl
	Traits    []model.TraitDecl
	Functions []model.FunctionDecl
	Impls     []model.ImplBlock
	Uses      []model.UseDecl
	Consts    []model.ConstDecl
	Statics   []model.ConstDecl
	Aliases   []model.TypeAliasDecl
	Inline    []InlineMod
}

// InlineMod is one `mod name { ... }` found directly under the walked
// node, carrying the unparsed declaration-list body for the resolver to
// recurse into and the cfg(test) flag (§4.2 step 5).
type InlineMod struct {
	Name    string
	Body    synatree.Node
	CfgTest bool
}

// Declarations walks root (a source_file node, or a mod_item's declaration
// list for an inline module) and extracts every top-level declaration.
func Declarations(root synatree.Node, source []byte) File {
	var f File
	children := synatree.Children(root)
	for i, child := range children {
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "struct_item":
			f.Structs = append(f.Structs, structDecl(child, source))
		case "enum_item":
			f.Enums = append(f.Enums, enumDecl(child, source))
		case "trait_item":
			f.Traits = append(f.Traits, traitDecl(child, source))
		case "function_item", "function_signature_item":
			f.Functions = append(f.Functions, functionDecl(child, source))
		case "impl_item":
			f.Impls = append(f.Impls, implDecl(child, source))
		case "use_declaration":
			f.Uses = append(f.Uses, useDecl(child, source))
		case "const_item":
			f.Consts = append(f.Consts, constDecl(child, source, false))
		case "static_item":
			f.Statics = append(f.Statics, constDecl(child, source, true))
		case "type_item":
			f.Aliases = append(f.Aliases, aliasDecl(child, source))
		case "mod_item":
			if body := child.FieldChild("body"); body != nil {
				f.Inline = append(f.Inline, InlineMod{
					Name:    textOf(child.FieldChild("name"), source),
					Body:    body,
					CfgTest: hasCfgTestAttribute(children, i, source),
				})
			}
		}
	}
	return f
}

// ModDeclarations returns the `mod <name>;` (no body) declarations at the
// top level of root, in source order — the module resolver uses these to
// locate sibling files or subdirectories (§4.2 step 2).
func ModDeclarations(root synatree.Node, source []byte) []string {
	var names []string
	for _, child := range synatree.Children(root) {
		if child == nil || child.Kind() != "mod_item" {
			continue
		}
		if child.FieldChild("body") != nil {
			continue // inline module, not a file reference
		}
		names = append(names, textOf(child.FieldChild("name"), source))
	}
	return names
}

// hasCfgTestAttribute scans backwards from index idx over immediately
// preceding siblings, skipping comments, stopping at the first
// non-attribute/non-comment node (§4.2 step 5).
func hasCfgTestAttribute(siblings []synatree.Node, idx int, source []byte) bool {
	for i := idx - 1; i >= 0; i-- {
		sib := siblings[i]
		if sib == nil {
			continue
		}
		switch sib.Kind() {
		case "line_comment", "block_comment":
			continue
		case "attribute_item":
			text := strings.ToLower(flattenText(sib, source))
			if strings.Contains(text, "cfg") && strings.Contains(text, "test") {
				return true
			}
			continue
		default:
			return false
		}
	}
	return false
}

// flattenText renders every leaf token of an attribute node by walking its
// children; attribute nodes don't expose a single "text" field worth
// relying on across grammar versions, so this just concatenates children.
func flattenText(n synatree.Node, source []byte) string {
	var b strings.Builder
	var walk func(synatree.Node)
	walk = func(node synatree.Node) {
		if node == nil {
			return
		}
		if node.ChildCount() == 0 {
			b.WriteString(node.Text(source))
			b.WriteByte(' ')
			return
		}
		for i := 0; i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}
	walk(n)
	return b.String()
}

func textOf(n synatree.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return n.Text(source)
}

func spanOf(n synatree.Node, file string) model.Span {
	if n == nil {
		return model.Span{File: file}
	}
	return model.Span{File: file, Line: n.StartLine(), Column: n.StartColumn()}
}

// visibility decodes the optional visibility marker preceding a
// declaration (§4.3 "Visibility decoding").
func visibility(n synatree.Node, source []byte) model.Visibility {
	vis := n.FieldChild("visibility_modifier")
	if vis == nil {
		for _, c := range synatree.Children(n) {
			if c != nil && c.Kind() == "visibility_modifier" {
				vis = c
				break
			}
		}
	}
	if vis == nil {
		return model.Private
	}
	text := vis.Text(source)
	switch {
	case strings.Contains(text, "in "):
		return model.InPath
	case strings.Contains(text, "super"):
		return model.SuperScoped
	case strings.Contains(text, "crate"):
		return model.CrateScoped
	default:
		return model.Public
	}
}

func genericParams(n synatree.Node, source []byte) []model.GenericParam {
	tp := n.FieldChild("type_parameters")
	if tp == nil {
		return nil
	}
	var out []model.GenericParam
	for _, c := range synatree.Children(tp) {
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "type_identifier", "lifetime":
			out = append(out, model.GenericParam{Name: c.Text(source)})
		case "constrained_type_parameter":
			name := textOf(c.FieldChild("left"), source)
			var bounds []model.TypeRef
			if b := c.FieldChild("bounds"); b != nil {
				for _, bc := range synatree.NamedChildren(b) {
					bounds = append(bounds, typeRef(bc, source))
				}
			}
			out = append(out, model.GenericParam{Name: name, Bounds: bounds})
		}
	}
	return out
}

// typeRef recursively extracts a type reference (§4.3 "Type-reference
// extraction"). Unknown shapes fall back to their raw text with no
// parameters.
func typeRef(n synatree.Node, source []byte) model.TypeRef {
	if n == nil {
		return model.TypeRef{}
	}
	span := model.Span{Line: n.StartLine(), Column: n.StartColumn()}
	switch n.Kind() {
	case "type_identifier", "primitive_type":
		return model.TypeRef{Name: n.Text(source), Span: span}
	case "unit_type":
		return model.TypeRef{Name: "()", Span: span}
	case "generic_type":
		name := textOf(n.FieldChild("type"), source)
		var args []model.TypeRef
		if ta := n.FieldChild("type_arguments"); ta != nil {
			for _, c := range synatree.NamedChildren(ta) {
				args = append(args, typeRef(c, source))
			}
		}
		return model.TypeRef{Name: name, Args: args, Span: span}
	case "scoped_identifier", "scoped_type_identifier":
		return model.TypeRef{Name: n.Text(source), Span: span}
	case "reference_type":
		inner := typeRef(lastNamedChild(n), source)
		return model.TypeRef{Name: "&" + inner.Name, Args: inner.Args, Span: span}
	case "mutable_specifier":
		return model.TypeRef{Name: n.Text(source), Span: span}
	case "tuple_type":
		var args []model.TypeRef
		for _, c := range synatree.NamedChildren(n) {
			args = append(args, typeRef(c, source))
		}
		return model.TypeRef{Name: "tuple", Args: args, Span: span}
	case "array_type", "slice_type":
		elem := typeRef(n.FieldChild("element"), source)
		return model.TypeRef{Name: "array", Args: []model.TypeRef{elem}, Span: span}
	case "function_type":
		return model.TypeRef{Name: n.Text(source), Span: span}
	default:
		return model.TypeRef{Name: n.Text(source), Span: span}
	}
}

func lastNamedChild(n synatree.Node) synatree.Node {
	children := synatree.NamedChildren(n)
	if len(children) == 0 {
		return nil
	}
	return children[len(children)-1]
}

func structDecl(n synatree.Node, source []byte) model.StructDecl {
	decl := model.StructDecl{
		Name:       textOf(n.FieldChild("name"), source),
		Visibility: visibility(n, source),
		Generics:   genericParams(n, source),
		Span:       spanOf(n, ""),
	}
	body := n.FieldChild("body")
	if body == nil {
		return decl
	}
	switch body.Kind() {
	case "field_declaration_list":
		for _, c := range synatree.Children(body) {
			if c == nil || c.Kind() != "field_declaration" {
				continue
			}
			decl.Fields = append(decl.Fields, model.Field{
				Name:       textOf(c.FieldChild("name"), source),
				Visibility: visibility(c, source),
				Type:       typeRef(c.FieldChild("type"), source),
			})
		}
	case "ordered_field_declaration_list":
		for _, c := range synatree.NamedChildren(body) {
			if c == nil || c.Kind() != "field_declaration" && c.Kind() != "visibility_modifier" {
				if c != nil {
					decl.Fields = append(decl.Fields, model.Field{Type: typeRef(c, source)})
				}
				continue
			}
		}
	}
	return decl
}

func enumDecl(n synatree.Node, source []byte) model.EnumDecl {
	decl := model.EnumDecl{
		Name:       textOf(n.FieldChild("name"), source),
		Visibility: visibility(n, source),
		Generics:   genericParams(n, source),
		Span:       spanOf(n, ""),
	}
	body := n.FieldChild("body")
	if body == nil {
		return decl
	}
	for _, c := range synatree.Children(body) {
		if c == nil || c.Kind() != "enum_variant" {
			continue
		}
		v := model.Variant{Name: textOf(c.FieldChild("name"), source)}
		if vb := c.FieldChild("body"); vb != nil {
			for _, fc := range synatree.Children(vb) {
				if fc == nil || fc.Kind() != "field_declaration" {
					continue
				}
				v.Fields = append(v.Fields, model.Field{
					Name: textOf(fc.FieldChild("name"), source),
					Type: typeRef(fc.FieldChild("type"), source),
				})
			}
		}
		decl.Variants = append(decl.Variants, v)
	}
	return decl
}

func traitDecl(n synatree.Node, source []byte) model.TraitDecl {
	decl := model.TraitDecl{
		Name:       textOf(n.FieldChild("name"), source),
		Visibility: visibility(n, source),
		Generics:   genericParams(n, source),
		Span:       spanOf(n, ""),
	}
	if b := n.FieldChild("bounds"); b != nil {
		for _, c := range synatree.NamedChildren(b) {
			decl.Supertraits = append(decl.Supertraits, typeRef(c, source))
		}
	}
	body := n.FieldChild("body")
	if body == nil {
		return decl
	}
	for _, c := range synatree.Children(body) {
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "function_item", "function_signature_item":
			decl.Methods = append(decl.Methods, functionDecl(c, source))
		case "associated_type":
			decl.AssocTypes = append(decl.AssocTypes, textOf(c.FieldChild("name"), source))
		}
	}
	return decl
}

func functionDecl(n synatree.Node, source []byte) model.FunctionDecl {
	decl := model.FunctionDecl{
		Name:       textOf(n.FieldChild("name"), source),
		Visibility: visibility(n, source),
		Generics:   genericParams(n, source),
		Span:       spanOf(n, ""),
	}
	for _, c := range synatree.Children(n) {
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "async":
			decl.Async = true
		case "function_modifiers":
			text := flattenText(c, source)
			decl.Async = decl.Async || strings.Contains(text, "async")
			decl.Const = strings.Contains(text, "const")
			decl.Unsafe = strings.Contains(text, "unsafe")
		}
	}
	if params := n.FieldChild("parameters"); params != nil {
		for _, c := range synatree.Children(params) {
			if c == nil {
				continue
			}
			switch c.Kind() {
			case "self_parameter":
				decl.Params = append(decl.Params, model.Param{Name: "self", Self: selfMarker(c, source)})
			case "parameter":
				decl.Params = append(decl.Params, model.Param{
					Name: textOf(c.FieldChild("pattern"), source),
					Type: typeRef(c.FieldChild("type"), source),
					Self: model.SelfNone,
				})
			}
		}
	}
	if rt := n.FieldChild("return_type"); rt != nil {
		ref := typeRef(rt, source)
		decl.Return = &ref
	}
	if body := n.FieldChild("body"); body != nil {
		decl.Calls = callSites(body, source)
	}
	return decl
}

func selfMarker(n synatree.Node, source []byte) model.SelfMarker {
	text := n.Text(source)
	switch {
	case strings.Contains(text, "&mut"):
		return model.SelfMutRef
	case strings.Contains(text, "&"):
		return model.SelfSharedRef
	default:
		return model.SelfValue
	}
}

// callSites walks a function body recording every call and method-call
// expression (§4.3 "Call-site extraction"). The receiver's type is not
// recorded.
func callSites(body synatree.Node, source []byte) []model.CallSite {
	var sites []model.CallSite
	var walk func(synatree.Node)
	walk = func(n synatree.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "call_expression":
			fn := n.FieldChild("function")
			if fn != nil {
				switch fn.Kind() {
				case "identifier", "scoped_identifier":
					sites = append(sites, model.CallSite{
						Name: fn.Text(source),
						Span: model.Span{Line: n.StartLine(), Column: n.StartColumn()},
					})
				case "field_expression":
					if field := fn.FieldChild("field"); field != nil {
						sites = append(sites, model.CallSite{
							Name:     field.Text(source),
							IsMethod: true,
							Span:     model.Span{Line: n.StartLine(), Column: n.StartColumn()},
						})
					}
				}
			}
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return sites
}

func implDecl(n synatree.Node, source []byte) model.ImplBlock {
	block := model.ImplBlock{
		Generics: genericParams(n, source),
		Span:     spanOf(n, ""),
	}
	if tr := n.FieldChild("trait"); tr != nil {
		ref := typeRef(tr, source)
		block.Trait = &ref
	}
	block.SelfType = typeRef(n.FieldChild("type"), source)
	if body := n.FieldChild("body"); body != nil {
		for _, c := range synatree.Children(body) {
			if c == nil {
				continue
			}
			switch c.Kind() {
			case "function_item", "function_signature_item":
				block.Methods = append(block.Methods, functionDecl(c, source))
			}
		}
	}
	return block
}

func useDecl(n synatree.Node, source []byte) model.UseDecl {
	decl := model.UseDecl{
		Visibility: visibility(n, source),
		Span:       spanOf(n, ""),
	}
	arg := n.FieldChild("argument")
	if arg == nil {
		for _, c := range synatree.NamedChildren(n) {
			if c != nil && c.Kind() != "visibility_modifier" {
				arg = c
				break
			}
		}
	}
	expandUseClause(arg, nil, source, &decl)
	return decl
}

// expandUseClause recursively flattens a use-clause tree, grounded on the
// same brace/alias/wildcard handling ben-ranford/lopper's Rust adapter
// applies to raw `use` text, but driven off parsed nodes instead of regex.
func expandUseClause(n synatree.Node, prefix []string, source []byte, decl *model.UseDecl) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "scoped_identifier":
		path := n.FieldChild("path")
		name := n.FieldChild("name")
		full := append(append([]string{}, prefix...), pathSegments(path, source)...)
		full = append(full, textOf(name, source))
		decl.PathSegments = full
	case "identifier", "crate", "self", "super", "metavariable":
		decl.PathSegments = append(append([]string{}, prefix...), n.Text(source))
	case "use_as_clause":
		expandUseClause(n.FieldChild("path"), prefix, source, decl)
		decl.Alias = textOf(n.FieldChild("alias"), source)
	case "use_wildcard":
		decl.Glob = true
		expandUseClause(firstNamed(n), prefix, source, decl)
	case "use_list":
		base := prefix
		if parent := n.Parent(); parent != nil && parent.Kind() == "scoped_use_list" {
			// handled by caller via scoped_use_list branch
		}
		for _, c := range synatree.NamedChildren(n) {
			item := model.UseItem{}
			sub := model.UseDecl{}
			expandUseClause(c, nil, source, &sub)
			if len(sub.PathSegments) > 0 {
				item.Name = sub.PathSegments[len(sub.PathSegments)-1]
			}
			item.Alias = sub.Alias
			decl.Items = append(decl.Items, item)
		}
		decl.PathSegments = base
	case "scoped_use_list":
		path := pathSegments(n.FieldChild("path"), source)
		full := append(append([]string{}, prefix...), path...)
		decl.PathSegments = full
		list := n.FieldChild("list")
		expandUseClause(list, full, source, decl)
	default:
		decl.PathSegments = append(append([]string{}, prefix...), n.Text(source))
	}
}

func firstNamed(n synatree.Node) synatree.Node {
	children := synatree.NamedChildren(n)
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

func pathSegments(n synatree.Node, source []byte) []string {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "scoped_identifier":
		segs := pathSegments(n.FieldChild("path"), source)
		segs = append(segs, textOf(n.FieldChild("name"), source))
		return segs
	default:
		return []string{n.Text(source)}
	}
}

func constDecl(n synatree.Node, source []byte, isStatic bool) model.ConstDecl {
	decl := model.ConstDecl{
		Name:       textOf(n.FieldChild("name"), source),
		Visibility: visibility(n, source),
		IsStatic:   isStatic,
		Span:       spanOf(n, ""),
	}
	if t := n.FieldChild("type"); t != nil {
		ref := typeRef(t, source)
		decl.Type = &ref
	}
	return decl
}

func aliasDecl(n synatree.Node, source []byte) model.TypeAliasDecl {
	return model.TypeAliasDecl{
		Name:       textOf(n.FieldChild("name"), source),
		Visibility: visibility(n, source),
		Target:     typeRef(n.FieldChild("type"), source),
		Span:       spanOf(n, ""),
	}
}
