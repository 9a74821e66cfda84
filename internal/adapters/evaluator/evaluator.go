// Package evaluator turns manifest files into structured values.
package evaluator

import (
	"context"
	"path/filepath"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// FormalsAttr is the attribute that marks a set as a function. A set whose only
// attribute is FormalsAttr, holding a list of names, evaluates to a function taking
// an attribute set with those names.
const FormalsAttr = "__formals"

// Evaluator dispatches to a format specific evaluator by file extension.
type Evaluator struct {
	yaml *YAMLEvaluator
	cue  *CUEEvaluator
}

// New creates an Evaluator supporting YAML and CUE manifests.
func New() *Evaluator {
	return &Evaluator{yaml: NewYAMLEvaluator(), cue: NewCUEEvaluator()}
}

// Evaluate reads and evaluates the manifest at path.
func (e *Evaluator) Evaluate(ctx context.Context, path string) (domain.Value, error) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return e.yaml.Evaluate(ctx, path)
	case ".cue":
		return e.cue.Evaluate(ctx, path)
	default:
		return domain.Value{}, zerr.With(domain.ErrEvaluationFailed, "file", path)
	}
}

// lambdaFromSet converts a set following the FormalsAttr convention into a function.
func lambdaFromSet(set *domain.AttrSet, pos string) (domain.Value, bool, error) {
	if set.Len() != 1 {
		return domain.Value{}, false, nil
	}
	formals, ok := set.Get(FormalsAttr)
	if !ok {
		return domain.Value{}, false, nil
	}
	if formals.Kind != domain.KindList {
		return domain.Value{}, false, zerr.With(zerr.With(domain.ErrTypeMismatch, "attribute", FormalsAttr), "pos", pos)
	}

	names := make([]string, 0, len(formals.List))
	for _, f := range formals.List {
		if f.Kind != domain.KindString {
			return domain.Value{}, false, zerr.With(zerr.With(domain.ErrTypeMismatch, "attribute", FormalsAttr), "pos", f.Pos)
		}
		names = append(names, f.Str)
	}
	v := domain.LambdaValue(names...)
	v.Pos = pos
	return v, true, nil
}
