// Package model defines the core data structures shared by every stage of
// the depgraph pipeline: crate/module trees, declarations, the dependency
// graph, cycles, and metrics.
package model

// Visibility is the decoded visibility of a declaration.
type Visibility string

const (
	Public      Visibility = "public"
	Private     Visibility = "private"
	CrateScoped Visibility = "crate"
	SuperScoped Visibility = "super"
	InPath      Visibility = "in-path"
)

// NodeKind is the closed set of graph-node kinds.
type NodeKind string

const (
	KindCrate    NodeKind = "crate"
	KindModule   NodeKind = "module"
	KindStruct   NodeKind = "struct"
	KindEnum     NodeKind = "enum"
	KindTrait    NodeKind = "trait"
	KindFunction NodeKind = "function"
	KindImpl     NodeKind = "impl"
)

// DependencyKind is the closed set of edge kinds (§3).
type DependencyKind string

const (
	UseImport     DependencyKind = "use_import"
	TypeReference DependencyKind = "type_reference"
	FunctionCall  DependencyKind = "function_call"
	MethodCall    DependencyKind = "method_call"
	TraitImpl     DependencyKind = "trait_impl"
	TraitBound    DependencyKind = "trait_bound"
	FieldType     DependencyKind = "field_type"
	ReturnType    DependencyKind = "return_type"
	ParameterType DependencyKind = "parameter_type"
)

// SelfMarker describes a method receiver's self-parameter, if any.
type SelfMarker string

const (
	SelfNone     SelfMarker = "none"
	SelfValue    SelfMarker = "value"
	SelfSharedRef SelfMarker = "shared-ref"
	SelfMutRef   SelfMarker = "mutable-ref"
)

// Span is a source position (1-based line/column).
type Span struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// GenericParam is a single generic parameter with its trait bounds.
type GenericParam struct {
	Name   string    `json:"name"`
	Bounds []TypeRef `json:"bounds,omitempty"`
}

// TypeRef is a (possibly recursive) reference to a type as written in source.
type TypeRef struct {
	Name     string    `json:"name"`
	Resolved string    `json:"resolved,omitempty"` // resolved id, filled in by the use resolver; empty if unresolved
	Args     []TypeRef `json:"args,omitempty"`
	Span     Span      `json:"span"`
}

// Field is a struct/enum-variant field. Name is empty for tuple fields.
type Field struct {
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Type       TypeRef    `json:"type"`
}

// Variant is one arm of a sum type.
type Variant struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields,omitempty"`
}

// Param is a function/method parameter.
type Param struct {
	Name string     `json:"name"`
	Type TypeRef    `json:"type"`
	Self SelfMarker `json:"self"`
}

// CallSite is a single call or method-call expression inside a function body.
type CallSite struct {
	Name       string `json:"name"`
	IsMethod   bool   `json:"isMethod"`
	ReceiverID string `json:"receiverId,omitempty"` // not filled in by any stage; method calls are resolved by name only
	Span       Span   `json:"span"`
}

// StructDecl is a record type.
type StructDecl struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Visibility Visibility     `json:"visibility"`
	Generics   []GenericParam `json:"generics,omitempty"`
	Fields     []Field        `json:"fields,omitempty"`
	Span       Span           `json:"span"`
}

// EnumDecl is a sum type.
type EnumDecl struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Visibility Visibility     `json:"visibility"`
	Generics   []GenericParam `json:"generics,omitempty"`
	Variants   []Variant      `json:"variants,omitempty"`
	Span       Span           `json:"span"`
}

// TraitDecl is an interface type.
type TraitDecl struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Visibility  Visibility     `json:"visibility"`
	Generics    []GenericParam `json:"generics,omitempty"`
	Supertraits []TypeRef      `json:"supertraits,omitempty"`
	Methods     []FunctionDecl `json:"methods,omitempty"`
	AssocTypes  []string       `json:"assocTypes,omitempty"`
	Span        Span           `json:"span"`
}

// FunctionDecl is a free function (in Module.Functions) or a method (in
// ImplBlock.Methods or TraitDecl.Methods).
type FunctionDecl struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Owner      string         `json:"owner,omitempty"` // not filled in by any stage; a method's owner follows from the impl/trait that holds it
	Visibility Visibility     `json:"visibility"`
	Generics   []GenericParam `json:"generics,omitempty"`
	Params     []Param        `json:"params,omitempty"`
	Return     *TypeRef       `json:"return,omitempty"`
	Async      bool           `json:"async"`
	Const      bool           `json:"const"`
	Unsafe     bool           `json:"unsafe"`
	Calls      []CallSite     `json:"calls,omitempty"`
	Span       Span           `json:"span"`
}

// ImplBlock is an `impl [Trait for] SelfType { ... }` block.
type ImplBlock struct {
	Trait    *TypeRef       `json:"trait,omitempty"`
	SelfType TypeRef        `json:"selfType"`
	Generics []GenericParam `json:"generics,omitempty"`
	Methods  []FunctionDecl `json:"methods,omitempty"`
	Span     Span           `json:"span"`
}

// UseItem is one `{name[, alias]}` entry inside a use declaration, or the
// implicit single item of a non-list use declaration.
type UseItem struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// UseDecl is an import declaration prior to resolution.
type UseDecl struct {
	PathSegments []string   `json:"pathSegments"`
	Alias        string     `json:"alias,omitempty"`
	Glob         bool       `json:"glob"`
	Items        []UseItem  `json:"items,omitempty"`
	Visibility   Visibility `json:"visibility"`
	Span         Span       `json:"span"`
}

// ConstDecl covers both `const` and `static` declarations.
type ConstDecl struct {
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Type       *TypeRef   `json:"type,omitempty"`
	IsStatic   bool       `json:"isStatic"`
	Span       Span       `json:"span"`
}

// TypeAliasDecl is a `type X = ...` declaration.
type TypeAliasDecl struct {
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Target     TypeRef    `json:"target"`
	Span       Span       `json:"span"`
}

// Module is a node of the module tree (§3).
type Module struct {
	ID         string          `json:"id"`
	ShortName  string          `json:"shortName"`
	Path       string          `json:"path"` // qualified path, dot-free double-colon form
	File       string          `json:"file"`
	Visibility Visibility      `json:"visibility"`
	Structs    []StructDecl    `json:"structs,omitempty"`
	Enums      []EnumDecl      `json:"enums,omitempty"`
	Traits     []TraitDecl     `json:"traits,omitempty"`
	Functions  []FunctionDecl  `json:"functions,omitempty"`
	Impls      []ImplBlock     `json:"impls,omitempty"`
	Uses       []UseDecl       `json:"uses,omitempty"`
	Consts     []ConstDecl     `json:"consts,omitempty"`
	Statics    []ConstDecl     `json:"statics,omitempty"`
	TypeAlias  []TypeAliasDecl `json:"typeAlias,omitempty"`
	Submodules []*Module       `json:"submodules,omitempty"`
	IsInline   bool            `json:"isInline"`
	CfgTest    bool            `json:"cfgTest"`
}

// Crate is the resolved module tree of one crate (or workspace member).
type Crate struct {
	Name string  `json:"name"` // short package name; empty outside workspace mode
	Root *Module `json:"root"`
}

// Workspace is the top-level result of module resolution in workspace mode.
type Workspace struct {
	Crates      []Crate  `json:"crates"`                // empty Name for single-crate mode; exactly one entry
	Diagnostics []string `json:"diagnostics,omitempty"` // unreadable files, unresolved mod declarations
}

// GraphNode is one node of the dependency graph (§3).
type GraphNode struct {
	ID        string   `json:"id"`
	ShortName string   `json:"shortName"`
	Path      string   `json:"path"`
	Kind      NodeKind `json:"kind"`
	ParentID  string   `json:"parentId,omitempty"`
	File      string   `json:"file,omitempty"`
	Line      int      `json:"line,omitempty"`
	Children  []string `json:"children,omitempty"`
}

// Location is one occurrence of an edge.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Edge is a deduplicated, counted, located dependency edge (§3).
type Edge struct {
	From      string         `json:"from"`
	To        string         `json:"to"`
	Kind      DependencyKind `json:"kind"`
	Count     int            `json:"count"`
	Locations []Location     `json:"locations"`
}

// Graph is the complete dependency multigraph.
type Graph struct {
	Nodes map[string]*GraphNode `json:"nodes"`
	Edges []*Edge               `json:"edges"`
	// edgeIndex maps (from,to,kind) to the Edges slice position, used only
	// during construction; callers should not rely on it after graphbuild.Build returns.
	edgeIndex map[edgeKey]int
}

type edgeKey struct {
	From, To string
	Kind     DependencyKind
}

// NewGraph returns an empty graph ready for edge insertion.
func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[string]*GraphNode),
		edgeIndex: make(map[edgeKey]int),
	}
}

// AddEdge inserts or deduplicates an edge per §4.5's provenance rules.
// No-ops when from==to, or when either endpoint is absent from Nodes.
func (g *Graph) AddEdge(from, to string, kind DependencyKind, loc Location) {
	if from == to {
		return
	}
	if _, ok := g.Nodes[from]; !ok {
		return
	}
	if _, ok := g.Nodes[to]; !ok {
		return
	}
	key := edgeKey{from, to, kind}
	if idx, ok := g.edgeIndex[key]; ok {
		e := g.Edges[idx]
		e.Count++
		e.Locations = append(e.Locations, loc)
		return
	}
	e := &Edge{From: from, To: to, Kind: kind, Count: 1, Locations: []Location{loc}}
	g.edgeIndex[key] = len(g.Edges)
	g.Edges = append(g.Edges, e)
}

// Cycle is a reported strongly connected component (§4.6).
type Cycle struct {
	Index int      `json:"index"`
	Nodes []string `json:"nodes"`
	Edges []*Edge  `json:"edges"`
}

// NodeMetrics are the per-node derived metrics of §4.7.
type NodeMetrics struct {
	ID           string  `json:"id"`
	Ca           int     `json:"ca"`
	Ce           int     `json:"ce"`
	Instability  float64 `json:"instability"`
	Abstractness float64 `json:"abstractness"`
	Distance     float64 `json:"distance"`
	FanIn        int     `json:"fanIn"`
	FanOut       int     `json:"fanOut"`
	LinesOfCode  int     `json:"linesOfCode"`
	Complexity   int     `json:"complexity"`
	InCycle      bool    `json:"inCycle"`
	CycleIndex   *int    `json:"cycleIndex,omitempty"`
}

// ModuleMetrics extends NodeMetrics with module-level aggregates (§4.7).
type ModuleMetrics struct {
	NodeMetrics
	TotalTypes     int `json:"totalTypes"`
	TotalTraits    int `json:"totalTraits"`
	TotalFunctions int `json:"totalFunctions"`
	PublicItems    int `json:"publicItems"`
	PrivateItems   int `json:"privateItems"`
}

// CrateMetrics are the crate-level aggregates of §4.7.
type CrateMetrics struct {
	TotalModules        int      `json:"totalModules"`
	TotalTypesAndTraits int      `json:"totalTypesAndTraits"`
	TotalFunctions      int      `json:"totalFunctions"`
	TotalLines          int      `json:"totalLines"`
	AvgInstability      float64  `json:"avgInstability"`
	AvgAbstractness     float64  `json:"avgAbstractness"`
	AvgDistance         float64  `json:"avgDistance"`
	CycleCount          int      `json:"cycleCount"`
	MostCoupled         []string `json:"mostCoupled,omitempty"`
	MostUnstable        []string `json:"mostUnstable,omitempty"`
	HighestDistance     []string `json:"highestDistance,omitempty"`
}

// MetricsReport is the full metrics output (§6).
type MetricsReport struct {
	Crate   CrateMetrics             `json:"crate"`
	Modules map[string]ModuleMetrics `json:"modules"`
	Nodes   map[string]NodeMetrics   `json:"nodes"`
}

// FilterConfig controls file inclusion during module resolution (§6).
type FilterConfig struct {
	ExcludePatterns       []string `json:"excludePatterns,omitempty"`
	IncludePatterns       []string `json:"includePatterns,omitempty"`
	ExcludeTestFiles      bool     `json:"excludeTestFiles"`
	ExcludeTestsDirectory bool     `json:"excludeTestsDirectory"`
	ExcludeCfgTest        bool     `json:"excludeCfgTest"`
}

// DefaultFilterConfig returns the all-inclusive preset.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{}
}

// NoTestsFilterConfig returns the "no-tests" preset (all three flags true).
func NoTestsFilterConfig() FilterConfig {
	return FilterConfig{
		ExcludeTestFiles:      true,
		ExcludeTestsDirectory: true,
		ExcludeCfgTest:        true,
	}
}

// Result bundles the four output aggregates of §6.
type Result struct {
	Workspace Workspace     `json:"workspace"`
	Graph     *Graph        `json:"graph"`
	Cycles    []Cycle       `json:"cycles"`
	Metrics   MetricsReport `json:"metrics"`
}
