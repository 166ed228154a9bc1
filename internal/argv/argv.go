// Package argv classifies a tokenized command line into the execution shape
// the dispatcher should run. Classification never mutates the input: each
// command is a Segment view into the original vector.
package argv

import (
	"errors"
	"fmt"
	"strings"
)

// Special tokens recognised by Classify. They are compared by exact match.
const (
	TokenBackground = "&"
	TokenInput      = "<"
	TokenOutput     = ">"
	TokenPipe       = "|"
)

var (
	// ErrTooManyStages is returned when a pipeline has more stages than allowed.
	ErrTooManyStages = errors.New("too many pipeline stages")

	// ErrEmptySegment is returned when a command position holds no program name.
	ErrEmptySegment = errors.New("empty command")

	// ErrMissingTarget is returned when a redirection symbol is the last token.
	ErrMissingTarget = errors.New("missing redirection target")
)

// Vector is one command line, already split into tokens.
type Vector []string

// Segment is a read-only view of one command and its arguments inside a Vector.
type Segment struct {
	vec        Vector
	start, end int
}

// NewSegment returns the view v[start:end].
func NewSegment(v Vector, start, end int) Segment {
	if start < 0 {
		start = 0
	}
	if end > len(v) {
		end = len(v)
	}
	if end < start {
		end = start
	}
	return Segment{vec: v, start: start, end: end}
}

// Args returns the program name followed by its arguments. The returned slice
// has its capacity clamped so appending to it cannot write into the vector.
func (s Segment) Args() []string {
	return s.vec[s.start:s.end:s.end]
}

// Name returns the program name, or "" for an empty segment.
func (s Segment) Name() string {
	if s.Len() == 0 {
		return ""
	}
	return s.vec[s.start]
}

// Len returns the number of tokens in the segment.
func (s Segment) Len() int {
	return s.end - s.start
}

// Start returns the segment's offset in the vector.
func (s Segment) Start() int {
	return s.start
}

func (s Segment) String() string {
	return strings.Join(s.Args(), " ")
}

// Shape is the execution shape chosen for a command line.
type Shape int

const (
	ShapeSimple Shape = iota
	ShapeBackground
	ShapePipeline
	ShapeInput
	ShapeOutput
)

func (s Shape) String() string {
	switch s {
	case ShapeSimple:
		return "simple"
	case ShapeBackground:
		return "background"
	case ShapePipeline:
		return "pipeline"
	case ShapeInput:
		return "input-redirection"
	case ShapeOutput:
		return "output-redirection"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Plan is the result of classifying a Vector.
type Plan struct {
	Shape Shape

	// Segments holds one entry per command to launch. Only pipelines have
	// more than one.
	Segments []Segment

	// Target is the redirection file for ShapeInput and ShapeOutput.
	Target string

	// Symbol is the index of the token that selected the shape, or -1 for
	// ShapeSimple.
	Symbol int
}

// Empty reports whether the plan has nothing to run.
func (p Plan) Empty() bool {
	return len(p.Segments) == 0
}

// scan holds the positions found in a single pass over the vector.
type scan struct {
	background int
	input      int
	output     int
	pipes      []int
}

func scanVector(v Vector) scan {
	sc := scan{background: 0, input: -1, output: -1}
	for i, tok := range v {
		switch tok {
		case TokenBackground:
			sc.background = i
		case TokenInput:
			sc.input = i
		case TokenOutput:
			sc.output = i
		case TokenPipe:
			sc.pipes = append(sc.pipes, i)
		}
	}
	return sc
}

// Classify scans v once and picks the execution shape. When several special
// tokens are present the first match wins in this order: background,
// pipeline, input redirection, output redirection. Tokens that belong to a
// lower-priority shape are passed through to the program untouched.
//
// maxStages bounds the number of pipeline stages; values below 2 disable
// pipelines entirely.
func Classify(v Vector, maxStages int) (Plan, error) {
	if len(v) == 0 {
		return Plan{Shape: ShapeSimple, Symbol: -1}, nil
	}

	sc := scanVector(v)
	if len(sc.pipes) > 0 && len(sc.pipes)+1 > maxStages {
		return Plan{}, fmt.Errorf("%w: %d stages, limit is %d", ErrTooManyStages, len(sc.pipes)+1, maxStages)
	}

	switch {
	case sc.background > 0:
		return single(v, ShapeBackground, sc.background, "")
	case len(sc.pipes) > 0:
		return pipeline(v, sc.pipes)
	case sc.input != -1:
		return redirect(v, ShapeInput, sc.input)
	case sc.output != -1:
		return redirect(v, ShapeOutput, sc.output)
	default:
		return single(v, ShapeSimple, len(v), "")
	}
}

func single(v Vector, shape Shape, end int, target string) (Plan, error) {
	seg := NewSegment(v, 0, end)
	if seg.Len() == 0 {
		return Plan{}, ErrEmptySegment
	}
	symbol := end
	if shape == ShapeSimple {
		symbol = -1
	}
	return Plan{Shape: shape, Segments: []Segment{seg}, Target: target, Symbol: symbol}, nil
}

func redirect(v Vector, shape Shape, at int) (Plan, error) {
	if at+1 >= len(v) {
		return Plan{}, fmt.Errorf("%w after %q", ErrMissingTarget, v[at])
	}
	return single(v, shape, at, v[at+1])
}

func pipeline(v Vector, pipes []int) (Plan, error) {
	segs := make([]Segment, 0, len(pipes)+1)
	start := 0
	for _, p := range pipes {
		segs = append(segs, NewSegment(v, start, p))
		start = p + 1
	}
	segs = append(segs, NewSegment(v, start, len(v)))

	for i, seg := range segs {
		if seg.Len() == 0 {
			return Plan{}, fmt.Errorf("%w in pipeline stage %d", ErrEmptySegment, i+1)
		}
	}
	return Plan{Shape: ShapePipeline, Segments: segs, Symbol: pipes[0]}, nil
}
