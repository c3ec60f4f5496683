package pipeline

import (
	"fmt"

	"github.com/JakeFAU/pipelinewatch/internal/counter"
)

// Definition is the configured, not yet validated form of a pipeline.
type Definition struct {
	Name   string            `mapstructure:"name"`
	Stages []StageDefinition `mapstructure:"stages"`
}

// StageDefinition is the configured form of a stage.
type StageDefinition struct {
	Name    string       `mapstructure:"name"`
	Kind    counter.Kind `mapstructure:"kind"`
	Root    string       `mapstructure:"root"`
	Pattern string       `mapstructure:"pattern"`
	Query   string       `mapstructure:"query"`
	Parent  string       `mapstructure:"parent"`
}

// NeedsDatabase reports whether any stage counts with a query.
func NeedsDatabase(defs []Definition) bool {
	for _, d := range defs {
		for _, st := range d.Stages {
			if st.Kind == counter.KindQuery {
				return true
			}
		}
	}
	return false
}

// Build binds a counter to every stage and validates the resulting graph.
// db may be nil when no stage uses the query strategy.
func Build(defs []Definition, db counter.Querier) (*Set, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no pipelines configured", ErrInvalid)
	}
	pipelines := make([]*Pipeline, 0, len(defs))
	for _, d := range defs {
		stages := make([]Stage, 0, len(d.Stages))
		for _, sd := range d.Stages {
			c, err := bindCounter(sd, db)
			if err != nil {
				return nil, fmt.Errorf("%w: pipeline %q stage %q: %w", ErrInvalid, d.Name, sd.Name, err)
			}
			stages = append(stages, Stage{
				Name:    sd.Name,
				Kind:    sd.Kind,
				Parent:  sd.Parent,
				Counter: c,
			})
		}
		p, err := New(d.Name, stages)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}
	return NewSet(pipelines...)
}

func bindCounter(sd StageDefinition, db counter.Querier) (counter.Counter, error) {
	switch sd.Kind {
	case counter.KindDirectory:
		return counter.NewDirectory(sd.Root)
	case counter.KindPattern:
		return counter.NewPattern(sd.Root, sd.Pattern)
	case counter.KindQuery:
		if db == nil {
			return nil, fmt.Errorf("query stage requires a database connection")
		}
		return counter.NewQuery(db, sd.Query)
	default:
		return nil, fmt.Errorf("unknown counter kind %q", sd.Kind)
	}
}
