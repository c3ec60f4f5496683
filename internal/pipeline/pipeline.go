// Package pipeline holds the validated, immutable description of every
// monitored pipeline and the counting strategy bound to each of its stages.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/pipelinewatch/internal/counter"
)

// ErrInvalid marks a malformed pipeline or stage definition.
var ErrInvalid = errors.New("invalid pipeline definition")

// dateStageName is the snapshot's leading column.
const dateStageName = "date"

// Stage is one counted step of a pipeline.
type Stage struct {
	Name    string
	Kind    counter.Kind
	Parent  string
	Counter counter.Counter
}

// HasParent reports whether the stage is expressed as a percentage of another.
func (s Stage) HasParent() bool {
	return s.Parent != ""
}

// Pipeline is an ordered, validated set of stages. Order is significant: it
// fixes the column order of the persisted time series.
type Pipeline struct {
	name   string
	stages []Stage
	index  map[string]int
}

// New validates stages and builds a Pipeline.
func New(name string, stages []Stage) (*Pipeline, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: pipeline name is required", ErrInvalid)
	}
	if strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: pipeline name %q must not contain path separators", ErrInvalid, name)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: pipeline %q has no stages", ErrInvalid, name)
	}
	index := make(map[string]int, len(stages))
	for i, st := range stages {
		if strings.TrimSpace(st.Name) == "" {
			return nil, fmt.Errorf("%w: pipeline %q: stage %d has no name", ErrInvalid, name, i)
		}
		if st.Name == dateStageName {
			return nil, fmt.Errorf("%w: pipeline %q: stage name %q is reserved", ErrInvalid, name, st.Name)
		}
		if strings.ContainsAny(st.Name, ",%\"\n\r") {
			return nil, fmt.Errorf("%w: pipeline %q: stage name %q contains a reserved character", ErrInvalid, name, st.Name)
		}
		if _, dup := index[st.Name]; dup {
			return nil, fmt.Errorf("%w: pipeline %q: duplicate stage %q", ErrInvalid, name, st.Name)
		}
		if st.Counter == nil {
			return nil, fmt.Errorf("%w: pipeline %q: stage %q has no counter", ErrInvalid, name, st.Name)
		}
		index[st.Name] = i
	}
	for _, st := range stages {
		if !st.HasParent() {
			continue
		}
		if st.Parent == st.Name {
			return nil, fmt.Errorf("%w: pipeline %q: stage %q is its own parent", ErrInvalid, name, st.Name)
		}
		if _, ok := index[st.Parent]; !ok {
			return nil, fmt.Errorf("%w: pipeline %q: stage %q references unknown parent %q",
				ErrInvalid, name, st.Name, st.Parent)
		}
	}
	cp := make([]Stage, len(stages))
	copy(cp, stages)
	return &Pipeline{name: name, stages: cp, index: index}, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// Stages returns a copy of the stages in definition order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Stage looks up a stage by name.
func (p *Pipeline) Stage(name string) (Stage, bool) {
	i, ok := p.index[name]
	if !ok {
		return Stage{}, false
	}
	return p.stages[i], true
}

// Set is the process-wide collection of monitored pipelines.
type Set struct {
	pipelines []*Pipeline
	byName    map[string]*Pipeline
}

// NewSet builds a Set, rejecting duplicate pipeline names.
func NewSet(pipelines ...*Pipeline) (*Set, error) {
	s := &Set{byName: make(map[string]*Pipeline, len(pipelines))}
	for _, p := range pipelines {
		if p == nil {
			return nil, fmt.Errorf("%w: nil pipeline", ErrInvalid)
		}
		if _, dup := s.byName[p.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate pipeline %q", ErrInvalid, p.Name())
		}
		s.byName[p.Name()] = p
		s.pipelines = append(s.pipelines, p)
	}
	return s, nil
}

// Names returns pipeline names in configuration order.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		out = append(out, p.Name())
	}
	return out
}

// All returns the pipelines in configuration order.
func (s *Set) All() []*Pipeline {
	out := make([]*Pipeline, len(s.pipelines))
	copy(out, s.pipelines)
	return out
}

// Get looks up a pipeline by name.
func (s *Set) Get(name string) (*Pipeline, bool) {
	p, ok := s.byName[name]
	return p, ok
}
