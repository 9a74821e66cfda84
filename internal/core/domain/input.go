package domain

import "iter"

// InputSpec is an input as declared by a manifest, before resolution.
type InputSpec struct {
	// Ref is the declared reference, nil when the input only follows another input.
	Ref *Ref
	// Follows makes the input an alias of another input. It takes precedence over Ref.
	Follows InputPath
	// IsFlake is false for inputs that are plain source trees without a manifest.
	IsFlake bool
	// Overrides are the nested input declarations aimed at this input's own inputs.
	Overrides OverrideTree
	// Absolute marks Follows as rooted at the top-level manifest instead of at the
	// declaring manifest.
	Absolute bool
}

// NewInputSpec returns an input spec with the defaults of a manifest declaration.
func NewInputSpec() *InputSpec {
	return &InputSpec{IsFlake: true, Overrides: OverrideTree{}}
}

// IsFollows reports whether the input is an alias.
func (s *InputSpec) IsFollows() bool {
	return s.Follows != nil
}

// Inputs is an ordered mapping from input id to its declaration. Iteration follows
// declaration order.
type Inputs struct {
	ids   []string
	specs map[string]*InputSpec
}

// NewInputs creates an empty input set.
func NewInputs() *Inputs {
	return &Inputs{specs: make(map[string]*InputSpec)}
}

// Set declares or replaces an input.
func (in *Inputs) Set(id string, spec *InputSpec) {
	if _, ok := in.specs[id]; !ok {
		in.ids = append(in.ids, id)
	}
	in.specs[id] = spec
}

// SetDefault declares an input only if it is not declared yet.
func (in *Inputs) SetDefault(id string, spec *InputSpec) bool {
	if _, ok := in.specs[id]; ok {
		return false
	}
	in.Set(id, spec)
	return true
}

// Get returns the declaration of id.
func (in *Inputs) Get(id string) (*InputSpec, bool) {
	s, ok := in.specs[id]
	return s, ok
}

// Len returns the number of inputs.
func (in *Inputs) Len() int {
	return len(in.ids)
}

// IDs returns the input ids in declaration order.
func (in *Inputs) IDs() []string {
	return append([]string(nil), in.ids...)
}

// All iterates over the inputs in declaration order.
func (in *Inputs) All() iter.Seq2[string, *InputSpec] {
	return func(yield func(string, *InputSpec) bool) {
		for _, id := range in.ids {
			if !yield(id, in.specs[id]) {
				return
			}
		}
	}
}
