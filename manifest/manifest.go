// Package manifest loads pipeline definitions from HCL files.
//
// A manifest declares stages as blocks:
//
//	stage "pom" {
//	  from = "base"
//	  run  = ["mvn dependency:resolve"]
//	}
//
// String attributes may reference caller-supplied variables as var.<name>.
package manifest

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"buildpipe/apperrors"
	"buildpipe/pipeline"
)

// hclManifest represents the top-level structure of a manifest file.
type hclManifest struct {
	Stages []*hclStage `hcl:"stage,block"`
}

// hclStage mirrors a single stage block.
type hclStage struct {
	Name    string   `hcl:"name,label"`
	From    string   `hcl:"from,optional"`
	Image   string   `hcl:"image,optional"`
	Run     []string `hcl:"run,optional"`
	Inputs  []string `hcl:"inputs,optional"`
	Outputs []string `hcl:"outputs,optional"`
}

// Load parses the manifest file at path and returns a populated graph.
// Stage blocks may appear in any order; parent references are resolved
// after all blocks are decoded.
func Load(path string, vars map[string]string) (*pipeline.Graph, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, diags)
	}
	return build(hclFile.Body, path, vars)
}

// LoadBytes parses manifest source held in memory, using filename only for
// diagnostics.
func LoadBytes(src []byte, filename string, vars map[string]string) (*pipeline.Graph, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}
	return build(hclFile.Body, filename, vars)
}

func build(body hcl.Body, filename string, vars map[string]string) (*pipeline.Graph, error) {
	var parsed hclManifest
	diags := gohcl.DecodeBody(body, evalContext(vars), &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	seen := make(map[string]bool, len(parsed.Stages))
	for _, stage := range parsed.Stages {
		if seen[stage.Name] {
			return nil, fmt.Errorf("manifest %s: %w", filename, apperrors.DuplicateStage(stage.Name))
		}
		seen[stage.Name] = true
	}

	graph := pipeline.NewGraph()
	for _, stage := range sortForInsert(parsed.Stages) {
		err := graph.AddStage(pipeline.Stage{
			Name:    stage.Name,
			From:    stage.From,
			Image:   stage.Image,
			Run:     stage.Run,
			Inputs:  stage.Inputs,
			Outputs: stage.Outputs,
		})
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", filename, err)
		}
	}
	return graph, nil
}

// sortForInsert orders stages parents-first so insertion never depends on
// block order in the file. Stages whose parent is not declared in the file
// keep their relative order; the graph resolves them lazily.
func sortForInsert(stages []*hclStage) []*hclStage {
	byName := make(map[string]*hclStage, len(stages))
	for _, s := range stages {
		byName[s.Name] = s
	}

	ordered := make([]*hclStage, 0, len(stages))
	visited := make(map[string]bool, len(stages))

	var visit func(s *hclStage)
	visit = func(s *hclStage) {
		if visited[s.Name] {
			return
		}
		visited[s.Name] = true
		if parent, ok := byName[s.From]; ok && parent.Name != s.Name {
			visit(parent)
		}
		ordered = append(ordered, s)
	}

	// Deterministic traversal regardless of map iteration.
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		visit(byName[name])
	}
	return ordered
}

// evalContext exposes caller variables to the manifest as var.<name>.
func evalContext(vars map[string]string) *hcl.EvalContext {
	values := make(map[string]cty.Value, len(vars))
	for k, v := range vars {
		values[k] = cty.StringVal(v)
	}

	var varObj cty.Value
	if len(values) > 0 {
		varObj = cty.ObjectVal(values)
	} else {
		varObj = cty.EmptyObjectVal
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var": varObj,
		},
	}
}
