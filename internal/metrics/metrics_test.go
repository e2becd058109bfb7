package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crateweave/depgraph/internal/cycles"
	"github.com/crateweave/depgraph/internal/model"
)

func twoModuleWorkspace() (model.Workspace, *model.Graph) {
	leaf := &model.Module{
		ShortName: "leaf", Path: "crate::leaf",
		Structs: []model.StructDecl{{ID: "crate::leaf::Leaf", Name: "Leaf", Visibility: model.Public}},
	}
	root := &model.Module{
		ShortName: "crate", Path: "crate",
		Traits:     []model.TraitDecl{{ID: "crate::Greet", Name: "Greet", Visibility: model.Public}},
		Submodules: []*model.Module{leaf},
	}
	ws := model.Workspace{Crates: []model.Crate{{Name: "", Root: root}}}

	g := model.NewGraph()
	g.Nodes["crate"] = &model.GraphNode{ID: "crate", Kind: model.KindModule}
	g.Nodes["crate::leaf"] = &model.GraphNode{ID: "crate::leaf", Kind: model.KindModule, ParentID: "crate"}
	g.Nodes["crate::Greet"] = &model.GraphNode{ID: "crate::Greet", Kind: model.KindTrait, ParentID: "crate"}
	g.Nodes["crate::leaf::Leaf"] = &model.GraphNode{ID: "crate::leaf::Leaf", Kind: model.KindStruct, ParentID: "crate::leaf"}
	g.AddEdge("crate::leaf::Leaf", "crate::Greet", model.TraitImpl, model.Location{})

	return ws, g
}

func TestComputeNodeMetricsCouplingAndInstability(t *testing.T) {
	_, g := twoModuleWorkspace()
	report := Compute(model.Workspace{}, g, nil, "")

	leaf := report.Nodes["crate::leaf::Leaf"]
	if leaf.Ce != 1 || leaf.Ca != 0 {
		t.Errorf("expected Leaf Ce=1 Ca=0, got Ce=%d Ca=%d", leaf.Ce, leaf.Ca)
	}
	if leaf.Instability != 1.0 {
		t.Errorf("expected Leaf fully unstable (no dependents), got %f", leaf.Instability)
	}

	greet := report.Nodes["crate::Greet"]
	if greet.Ca != 1 || greet.Ce != 0 {
		t.Errorf("expected Greet Ca=1 Ce=0, got Ca=%d Ce=%d", greet.Ca, greet.Ce)
	}
	if greet.Instability != 0.0 {
		t.Errorf("expected Greet fully stable (no dependencies), got %f", greet.Instability)
	}
	if greet.Abstractness != 1.0 {
		t.Errorf("expected trait node abstractness 1.0, got %f", greet.Abstractness)
	}
}

func TestComputeModuleMetricsRollUp(t *testing.T) {
	ws, g := twoModuleWorkspace()
	report := Compute(ws, g, nil, "")

	leafMod := report.Modules["crate::leaf"]
	if leafMod.TotalTypes != 1 || leafMod.PublicItems != 1 {
		t.Errorf("expected leaf module to report 1 public type, got %+v", leafMod)
	}

	rootMod := report.Modules["crate"]
	if rootMod.TotalTraits != 1 {
		t.Errorf("expected root module to report 1 trait, got %+v", rootMod)
	}
}

func TestComputeCrateMetricsTopLists(t *testing.T) {
	ws, g := twoModuleWorkspace()
	report := Compute(ws, g, nil, "")

	if report.Crate.TotalModules != 2 {
		t.Errorf("expected 2 modules counted, got %d", report.Crate.TotalModules)
	}
	if len(report.Crate.MostCoupled) == 0 {
		t.Fatal("expected a non-empty most-coupled list")
	}
	if report.Crate.MostCoupled[0] != "crate::leaf::Leaf" && report.Crate.MostCoupled[0] != "crate::Greet" {
		t.Errorf("unexpected top coupled node %q", report.Crate.MostCoupled[0])
	}
}

func TestComputeMarksCycleMembership(t *testing.T) {
	g := model.NewGraph()
	g.Nodes["a"] = &model.GraphNode{ID: "a", Kind: model.KindStruct}
	g.Nodes["b"] = &model.GraphNode{ID: "b", Kind: model.KindStruct}
	g.AddEdge("a", "b", model.FunctionCall, model.Location{})
	g.AddEdge("b", "a", model.FunctionCall, model.Location{})

	cycleList := cycles.Detect(g)
	report := Compute(model.Workspace{}, g, cycleList, "")

	a := report.Nodes["a"]
	if !a.InCycle || a.CycleIndex == nil || *a.CycleIndex != 0 {
		t.Errorf("expected node a marked in cycle 0, got %+v", a)
	}
}

func TestComputeComplexityIsOnePlusFanOutForFunctions(t *testing.T) {
	g := model.NewGraph()
	g.Nodes["crate"] = &model.GraphNode{ID: "crate", Kind: model.KindModule}
	g.Nodes["crate::run"] = &model.GraphNode{ID: "crate::run", Kind: model.KindFunction, ParentID: "crate"}
	g.Nodes["crate::helper"] = &model.GraphNode{ID: "crate::helper", Kind: model.KindFunction, ParentID: "crate"}
	g.Nodes["crate::Widget"] = &model.GraphNode{ID: "crate::Widget", Kind: model.KindStruct, ParentID: "crate"}
	g.AddEdge("crate::run", "crate::helper", model.FunctionCall, model.Location{})
	g.AddEdge("crate::run", "crate::Widget", model.ReturnType, model.Location{})

	report := Compute(model.Workspace{}, g, nil, "")

	run := report.Nodes["crate::run"]
	if run.Complexity != 1+run.FanOut {
		t.Errorf("expected run complexity 1+fanOut(%d), got %d", run.FanOut, run.Complexity)
	}

	helper := report.Nodes["crate::helper"]
	if helper.Complexity != 1 {
		t.Errorf("expected helper complexity 1 (no calls out), got %d", helper.Complexity)
	}

	widget := report.Nodes["crate::Widget"]
	if widget.Complexity != 1 {
		t.Errorf("expected non-function node complexity 1, got %d", widget.Complexity)
	}
}

func TestComputeLinesOfCodeReadsModuleFileAndStandsInForOthers(t *testing.T) {
	dir := t.TempDir()
	content := "line1\nline2\nline3\n"
	if err := os.WriteFile(filepath.Join(dir, "lib.rs"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	g := model.NewGraph()
	g.Nodes["crate"] = &model.GraphNode{ID: "crate", Kind: model.KindModule, File: "lib.rs"}
	g.Nodes["crate::Widget"] = &model.GraphNode{ID: "crate::Widget", Kind: model.KindStruct, ParentID: "crate", File: "lib.rs"}

	report := Compute(model.Workspace{}, g, nil, dir)

	if report.Nodes["crate"].LinesOfCode != 3 {
		t.Errorf("expected module node to report 3 lines, got %d", report.Nodes["crate"].LinesOfCode)
	}
	if report.Nodes["crate::Widget"].LinesOfCode != nonModuleLinesOfCode {
		t.Errorf("expected non-module node to report the stand-in constant, got %d", report.Nodes["crate::Widget"].LinesOfCode)
	}
}
