// Package compiler turns YAML workflow documents into validated
// domain.Workflow graphs. All structural errors (unknown fields,
// malformed conditions, dangling references) surface here, at setup
// time, so the engine never sees a broken graph.
package compiler

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/parley/internal/expr"
	"github.com/aretw0/parley/pkg/domain"
)

// document is the on-disk shape: either one workflow at the top level
// or a "workflows" list sharing a file.
type document struct {
	Workflows []*domain.Workflow `yaml:"workflows"`

	// Single-workflow form.
	Key    string                  `yaml:"key"`
	Domain string                  `yaml:"domain"`
	Entry  string                  `yaml:"entry"`
	Nodes  map[string]*domain.Node `yaml:"nodes"`
}

// Compile decodes one YAML document into workflows. Unknown fields are
// rejected so typos in hand-written files do not silently vanish.
func Compile(data []byte) ([]*domain.Workflow, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty workflow document")
		}
		return nil, fmt.Errorf("failed to decode workflow document: %w", err)
	}

	workflows := doc.Workflows
	if len(workflows) == 0 {
		workflows = []*domain.Workflow{{
			Key:    doc.Key,
			Domain: doc.Domain,
			Entry:  doc.Entry,
			Nodes:  doc.Nodes,
		}}
	}

	for _, w := range workflows {
		if err := validate(w); err != nil {
			return nil, err
		}
	}
	return workflows, nil
}

// CompileFile reads and compiles one workflow file.
func CompileFile(path string) ([]*domain.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	workflows, err := Compile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return workflows, nil
}

// CompileDir compiles every .yaml/.yml file under dir, non-recursively.
func CompileDir(dir string) ([]*domain.Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow dir: %w", err)
	}

	var all []*domain.Workflow
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		workflows, err := CompileFile(path)
		if err != nil {
			return nil, err
		}
		for _, w := range workflows {
			if prev, dup := seen[w.Key]; dup {
				return nil, fmt.Errorf("%s: workflow %q already defined in %s", path, w.Key, prev)
			}
			seen[w.Key] = path
		}
		all = append(all, workflows...)
	}
	return all, nil
}

func isYAML(entry fs.DirEntry) bool {
	ext := strings.ToLower(filepath.Ext(entry.Name()))
	return ext == ".yaml" || ext == ".yml"
}

// validate checks the structural rules a single workflow must satisfy.
// Cross-workflow references (sub-workflow keys) are the engine's job,
// since they span the whole registry.
func validate(w *domain.Workflow) error {
	if w.Key == "" {
		return fmt.Errorf("workflow is missing a key")
	}
	if w.Entry == "" {
		return fmt.Errorf("workflow %q: entry is required", w.Key)
	}
	if len(w.Nodes) == 0 {
		return fmt.Errorf("workflow %q: at least one node is required", w.Key)
	}
	if w.Nodes[w.Entry] == nil {
		return fmt.Errorf("workflow %q: entry node %q does not exist", w.Key, w.Entry)
	}

	for key, node := range w.Nodes {
		if node == nil {
			return fmt.Errorf("workflow %q: node %q is empty", w.Key, key)
		}
		if node.Key == "" {
			node.Key = key
		}
		if node.Responder != "" && node.SubWorkflow != "" {
			return fmt.Errorf("workflow %q node %q: responder and sub_workflow are mutually exclusive", w.Key, key)
		}
		if node.Responder == "" && node.SubWorkflow == "" && !node.End {
			return fmt.Errorf("workflow %q node %q: needs a responder, a sub_workflow, or end: true", w.Key, key)
		}
		for i, tr := range node.Transitions {
			if tr.Target == "" {
				return fmt.Errorf("workflow %q node %q: transition %d has no target", w.Key, key, i)
			}
			if w.Nodes[tr.Target] == nil {
				return fmt.Errorf("workflow %q node %q: transition target %q does not exist", w.Key, key, tr.Target)
			}
			if err := expr.Check(tr.Condition); err != nil {
				return fmt.Errorf("workflow %q node %q: bad condition %q: %w", w.Key, key, tr.Condition, err)
			}
		}
		if node.Default != "" && w.Nodes[node.Default] == nil {
			return fmt.Errorf("workflow %q node %q: default target %q does not exist", w.Key, key, node.Default)
		}
	}
	return nil
}

// DecodeParams maps a node's free-form params onto a typed options
// struct. Responder implementations call this instead of poking at the
// raw map. Weak typing is on so "5" satisfies an int field, matching
// how hand-written YAML tends to arrive.
func DecodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to build params decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}
