package domain

import "iter"

// ValueKind is the type of an evaluated manifest value.
type ValueKind uint8

// Value kinds produced by manifest evaluators.
const (
	KindNull ValueKind = iota
	KindString
	KindBool
	KindInt
	KindFloat
	KindList
	KindAttrs
	KindLambda
)

// String names the kind the way type errors mention it.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "a string"
	case KindBool:
		return "a Boolean"
	case KindInt:
		return "an integer"
	case KindFloat:
		return "a float"
	case KindList:
		return "a list"
	case KindAttrs:
		return "a set"
	case KindLambda:
		return "a function"
	default:
		return "an unknown value"
	}
}

// Value is the structured result of evaluating a manifest file.
type Value struct {
	Kind  ValueKind
	Str   string
	Bool  bool
	Int   int64
	Float float64
	List  []Value
	Attrs *AttrSet
	// Formals are the named parameters of a lambda taking an attribute set.
	Formals []string
	// MatchAttrs is true for lambdas whose parameter is an attribute set pattern.
	MatchAttrs bool
	// Pos is the source position of the value, "file:line:column", when known.
	Pos string
}

// StringValue returns a string value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IntValue returns an integer value.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// AttrsValue returns an attribute set value.
func AttrsValue(set *AttrSet) Value { return Value{Kind: KindAttrs, Attrs: set} }

// LambdaValue returns a lambda taking an attribute set with the given formals.
func LambdaValue(formals ...string) Value {
	return Value{Kind: KindLambda, Formals: formals, MatchAttrs: true}
}

// AttrSet is an attribute set that remembers insertion order.
type AttrSet struct {
	names []string
	vals  map[string]Value
}

// NewAttrSet creates an empty attribute set.
func NewAttrSet() *AttrSet {
	return &AttrSet{vals: make(map[string]Value)}
}

// Set adds or replaces an attribute.
func (s *AttrSet) Set(name string, v Value) {
	if _, ok := s.vals[name]; !ok {
		s.names = append(s.names, name)
	}
	s.vals[name] = v
}

// Get returns an attribute.
func (s *AttrSet) Get(name string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s.vals[name]
	return v, ok
}

// Len returns the number of attributes.
func (s *AttrSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// All iterates over the attributes in insertion order.
func (s *AttrSet) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if s == nil {
			return
		}
		for _, name := range s.names {
			if !yield(name, s.vals[name]) {
				return
			}
		}
	}
}
