package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/yourbasic/graph"
)

// Edge points from an upstream step to the step that depends on it.
type Edge struct {
	From string
	To   string
}

// Pipeline is the explicit DAG handed to the scheduler. Steps keep their declaration order.
type Pipeline struct {
	Name        string
	Description string
	Owner       string
	Schedule    string
	StartDate   time.Time
	Retries     int
	RetryDelay  time.Duration
	Catchup     bool
	Steps       []*Step

	stepsByName map[string]*Step
}

func (p *Pipeline) ensureStepNameMapIsFilled() {
	if p.stepsByName != nil && len(p.stepsByName) == len(p.Steps) {
		return
	}

	p.stepsByName = make(map[string]*Step, len(p.Steps))
	for _, s := range p.Steps {
		p.stepsByName[s.Name] = s
	}
}

func (p *Pipeline) GetStep(name string) *Step {
	p.ensureStepNameMapIsFilled()

	step, ok := p.stepsByName[name]
	if !ok {
		return nil
	}

	return step
}

func (p *Pipeline) StepNames() []string {
	return lo.Map(p.Steps, func(s *Step, _ int) string { return s.Name })
}

func (p *Pipeline) Edges() []Edge {
	edges := make([]Edge, 0)
	for _, s := range p.Steps {
		for _, up := range s.Upstreams {
			edges = append(edges, Edge{From: up, To: s.Name})
		}
	}

	return edges
}

// DirectDownstream returns the steps that list name as one of their upstreams.
func (p *Pipeline) DirectDownstream(name string) []*Step {
	return lo.Filter(p.Steps, func(s *Step, _ int) bool {
		return lo.Contains(s.Upstreams, name)
	})
}

// Upstream returns the names of every transitive predecessor of the given step, sorted.
func (p *Pipeline) Upstream(name string) []string {
	seen := make(map[string]bool)

	var walk func(string)
	walk = func(current string) {
		step := p.GetStep(current)
		if step == nil {
			return
		}

		for _, up := range step.Upstreams {
			if seen[up] {
				continue
			}
			seen[up] = true
			walk(up)
		}
	}
	walk(name)

	names := lo.Keys(seen)
	sort.Strings(names)
	return names
}

// Downstream returns the names of every transitive successor of the given step, sorted.
func (p *Pipeline) Downstream(name string) []string {
	seen := make(map[string]bool)

	var walk func(string)
	walk = func(current string) {
		for _, down := range p.DirectDownstream(current) {
			if seen[down.Name] {
				continue
			}
			seen[down.Name] = true
			walk(down.Name)
		}
	}
	walk(name)

	names := lo.Keys(seen)
	sort.Strings(names)
	return names
}

// Levels groups the steps so that every step sits one level below its deepest upstream.
// Steps within a level are independent of each other and keep their declaration order.
func (p *Pipeline) Levels() ([][]string, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	assigned := make(map[string]int, len(p.Steps))
	var levelOf func(name string) int
	levelOf = func(name string) int {
		if level, ok := assigned[name]; ok {
			return level
		}

		level := 0
		for _, up := range p.GetStep(name).Upstreams {
			if l := levelOf(up) + 1; l > level {
				level = l
			}
		}

		assigned[name] = level
		return level
	}

	levels := make([][]string, 0)
	for _, s := range p.Steps {
		level := levelOf(s.Name)
		for len(levels) <= level {
			levels = append(levels, []string{})
		}
		levels[level] = append(levels[level], s.Name)
	}

	return levels, nil
}

// Validate ensures the pipeline is a DAG whose steps are all well formed.
// Since the pipeline is a directed graph, any strongly connected component with more than one
// step is a cycle. Self dependencies are checked separately.
func (p *Pipeline) Validate() error {
	if len(p.Steps) == 0 {
		return errors.New("pipeline has no steps")
	}

	indexes := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		if _, ok := indexes[s.Name]; ok {
			return errors.Errorf("duplicate step name '%s'", s.Name)
		}
		indexes[s.Name] = i
	}

	for _, s := range p.Steps {
		if err := s.Validate(); err != nil {
			return err
		}

		for _, up := range s.Upstreams {
			if up == s.Name {
				return errors.Errorf("step '%s' depends on itself", s.Name)
			}
			if _, ok := indexes[up]; !ok {
				return errors.Errorf("step '%s' depends on unknown step '%s'", s.Name, up)
			}
		}
	}

	g := graph.New(len(p.Steps))
	for _, s := range p.Steps {
		for _, up := range s.Upstreams {
			g.Add(indexes[s.Name], indexes[up])
		}
	}

	for _, component := range graph.StrongComponents(g) {
		if len(component) == 1 {
			continue
		}

		names := lo.Map(component, func(i int, _ int) string { return p.Steps[i].Name })
		sort.Strings(names)
		return errors.Errorf("pipeline contains a cycle between steps: %s", strings.Join(names, ", "))
	}

	return nil
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("%s (%d steps)", p.Name, len(p.Steps))
}
