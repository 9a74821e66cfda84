package evaluator

import (
	"context"
	"fmt"
	"os"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// FunctionTag marks a YAML sequence of names as a function taking an attribute set
// with those names, e.g. `outputs: !fn [self, nixpkgs]`.
const FunctionTag = "!fn"

// YAMLEvaluator evaluates YAML manifests. Mapping order is preserved.
type YAMLEvaluator struct{}

// NewYAMLEvaluator creates a new YAMLEvaluator.
func NewYAMLEvaluator() *YAMLEvaluator {
	return &YAMLEvaluator{}
}

// Evaluate reads the YAML file at path.
func (e *YAMLEvaluator) Evaluate(_ context.Context, path string) (domain.Value, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a manifest inside a fetched tree
	if err != nil {
		return domain.Value{}, zerr.With(zerr.Wrap(err, domain.ErrEvaluationFailed.Error()), "file", path)
	}
	return e.EvaluateBytes(path, data)
}

// EvaluateBytes evaluates YAML text. name is used in source positions.
func (e *YAMLEvaluator) EvaluateBytes(name string, data []byte) (domain.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.Value{}, zerr.With(zerr.Wrap(err, domain.ErrEvaluationFailed.Error()), "file", name)
	}
	if doc.Kind == 0 {
		return domain.Value{Kind: domain.KindNull}, nil
	}
	return convertNode(name, &doc)
}

func convertNode(file string, n *yaml.Node) (domain.Value, error) {
	pos := fmt.Sprintf("%s:%d:%d", file, n.Line, n.Column)

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return domain.Value{Kind: domain.KindNull, Pos: pos}, nil
		}
		return convertNode(file, n.Content[0])
	case yaml.AliasNode:
		return convertNode(file, n.Alias)
	case yaml.SequenceNode:
		list := make([]domain.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := convertNode(file, c)
			if err != nil {
				return domain.Value{}, err
			}
			list = append(list, v)
		}
		if n.Tag == FunctionTag {
			return functionFromList(list, pos)
		}
		return domain.Value{Kind: domain.KindList, List: list, Pos: pos}, nil
	case yaml.MappingNode:
		set := domain.NewAttrSet()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return domain.Value{}, zerr.With(zerr.With(domain.ErrEvaluationFailed, "reason", "non-scalar key"),
					"pos", fmt.Sprintf("%s:%d:%d", file, key.Line, key.Column))
			}
			v, err := convertNode(file, n.Content[i+1])
			if err != nil {
				return domain.Value{}, err
			}
			set.Set(key.Value, v)
		}
		if lambda, ok, err := lambdaFromSet(set, pos); err != nil || ok {
			return lambda, err
		}
		return domain.Value{Kind: domain.KindAttrs, Attrs: set, Pos: pos}, nil
	case yaml.ScalarNode:
		return convertScalar(n, pos)
	default:
		return domain.Value{}, zerr.With(domain.ErrEvaluationFailed, "pos", pos)
	}
}

func convertScalar(n *yaml.Node, pos string) (domain.Value, error) {
	v := domain.Value{Pos: pos}
	switch n.ShortTag() {
	case "!!null":
		v.Kind = domain.KindNull
	case "!!bool":
		v.Kind = domain.KindBool
		if err := n.Decode(&v.Bool); err != nil {
			return domain.Value{}, zerr.With(zerr.Wrap(err, domain.ErrEvaluationFailed.Error()), "pos", pos)
		}
	case "!!int":
		v.Kind = domain.KindInt
		if err := n.Decode(&v.Int); err != nil {
			return domain.Value{}, zerr.With(zerr.Wrap(err, domain.ErrEvaluationFailed.Error()), "pos", pos)
		}
	case "!!float":
		v.Kind = domain.KindFloat
		if err := n.Decode(&v.Float); err != nil {
			return domain.Value{}, zerr.With(zerr.Wrap(err, domain.ErrEvaluationFailed.Error()), "pos", pos)
		}
	default:
		v.Kind = domain.KindString
		v.Str = n.Value
	}
	return v, nil
}

func functionFromList(list []domain.Value, pos string) (domain.Value, error) {
	names := make([]string, 0, len(list))
	for _, item := range list {
		if item.Kind != domain.KindString {
			return domain.Value{}, zerr.With(zerr.With(domain.ErrTypeMismatch, "tag", FunctionTag), "pos", item.Pos)
		}
		names = append(names, item.Str)
	}
	v := domain.LambdaValue(names...)
	v.Pos = pos
	return v, nil
}
