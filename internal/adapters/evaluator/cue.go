package evaluator

import (
	"context"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// CUEEvaluator evaluates CUE manifests. Field order follows the source.
type CUEEvaluator struct{}

// NewCUEEvaluator creates a new CUEEvaluator.
func NewCUEEvaluator() *CUEEvaluator {
	return &CUEEvaluator{}
}

// Evaluate reads and evaluates the CUE file at path.
func (e *CUEEvaluator) Evaluate(_ context.Context, path string) (domain.Value, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a manifest inside a fetched tree
	if err != nil {
		return domain.Value{}, zerr.With(zerr.Wrap(err, domain.ErrEvaluationFailed.Error()), "file", path)
	}
	return e.EvaluateBytes(path, data)
}

// EvaluateBytes evaluates CUE source. name is used as the file name in positions.
func (e *CUEEvaluator) EvaluateBytes(name string, data []byte) (domain.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return domain.Value{}, zerr.With(zerr.Wrap(err, domain.ErrEvaluationFailed.Error()), "file", name)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return domain.Value{}, zerr.With(zerr.Wrap(err, domain.ErrEvaluationFailed.Error()), "file", name)
	}
	return convertCUE(v)
}

func cuePos(v cue.Value) string {
	p := v.Pos()
	if !p.IsValid() {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename(), p.Line(), p.Column())
}

func convertCUE(v cue.Value) (domain.Value, error) {
	if def, ok := v.Default(); ok {
		v = def
	}
	pos := cuePos(v)
	wrap := func(err error) error {
		return zerr.With(zerr.Wrap(err, domain.ErrEvaluationFailed.Error()), "pos", pos)
	}

	out := domain.Value{Pos: pos}
	switch v.Kind() {
	case cue.NullKind:
		out.Kind = domain.KindNull
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return domain.Value{}, wrap(err)
		}
		out.Kind, out.Bool = domain.KindBool, b
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return domain.Value{}, wrap(err)
		}
		out.Kind, out.Int = domain.KindInt, i
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return domain.Value{}, wrap(err)
		}
		out.Kind, out.Float = domain.KindFloat, f
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return domain.Value{}, wrap(err)
		}
		out.Kind, out.Str = domain.KindString, s
	case cue.ListKind:
		it, err := v.List()
		if err != nil {
			return domain.Value{}, wrap(err)
		}
		out.Kind = domain.KindList
		for it.Next() {
			item, err := convertCUE(it.Value())
			if err != nil {
				return domain.Value{}, err
			}
			out.List = append(out.List, item)
		}
	case cue.StructKind:
		it, err := v.Fields()
		if err != nil {
			return domain.Value{}, wrap(err)
		}
		set := domain.NewAttrSet()
		for it.Next() {
			item, err := convertCUE(it.Value())
			if err != nil {
				return domain.Value{}, err
			}
			set.Set(it.Selector().Unquoted(), item)
		}
		if lambda, ok, err := lambdaFromSet(set, pos); err != nil || ok {
			return lambda, err
		}
		out.Kind, out.Attrs = domain.KindAttrs, set
	default:
		return domain.Value{}, zerr.With(zerr.With(domain.ErrEvaluationFailed, "kind", v.Kind().String()), "pos", pos)
	}
	return out, nil
}
