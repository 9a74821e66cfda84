package locker

import (
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	inputAttrURL     = "url"
	inputAttrFlake   = "flake"
	inputAttrInputs  = "inputs"
	inputAttrFollows = "follows"
)

// parseInputs parses the "inputs" attribute of a manifest. Top-level inputs without a
// reference or follows target default to the indirect reference named by their id.
func parseInputs(v domain.Value, topLevel bool) (*domain.Inputs, error) {
	if v.Kind != domain.KindAttrs {
		return nil, typeMismatch("inputs", v, domain.KindAttrs)
	}

	inputs := domain.NewInputs()
	for id, iv := range v.Attrs.All() {
		if !domain.IsValidInputID(id) {
			return nil, zerr.With(domain.ErrInvalidInputPath, "input", id)
		}
		spec, err := parseInput(id, iv, topLevel)
		if err != nil {
			return nil, err
		}
		inputs.Set(id, spec)
	}
	return inputs, nil
}

func parseInput(id string, v domain.Value, topLevel bool) (*domain.InputSpec, error) {
	if v.Kind != domain.KindAttrs {
		return nil, typeMismatch("inputs."+id, v, domain.KindAttrs)
	}

	spec := domain.NewInputSpec()
	attrs := domain.Attrs{}
	var url string
	hasURL := false

	for name, av := range v.Attrs.All() {
		switch name {
		case inputAttrURL:
			if av.Kind != domain.KindString {
				return nil, typeMismatch("inputs."+id+".url", av, domain.KindString)
			}
			url = av.Str
			hasURL = true
			attrs[domain.AttrURL] = domain.StringAttr(av.Str)
		case inputAttrFlake:
			if av.Kind != domain.KindBool {
				return nil, typeMismatch("inputs."+id+".flake", av, domain.KindBool)
			}
			spec.IsFlake = av.Bool
		case inputAttrInputs:
			nested, err := parseInputs(av, false)
			if err != nil {
				return nil, zerr.With(err, "input", id)
			}
			spec.Overrides = toOverrides(nested)
		case inputAttrFollows:
			if av.Kind != domain.KindString {
				return nil, typeMismatch("inputs."+id+".follows", av, domain.KindString)
			}
			path, err := domain.ParseInputPath(av.Str)
			if err != nil {
				return nil, zerr.With(err, "input", id)
			}
			spec.Follows = path
		default:
			if av.Kind != domain.KindString {
				return nil, typeMismatch("inputs."+id+"."+name, av, domain.KindString)
			}
			attrs[name] = domain.StringAttr(av.Str)
		}
	}

	if _, ok := attrs[domain.AttrType]; ok {
		ref, err := domain.RefFromAttrs(attrs)
		if err != nil {
			return nil, zerr.With(err, "input", id)
		}
		spec.Ref = &ref
	} else {
		delete(attrs, domain.AttrURL)
		if len(attrs) > 0 {
			return nil, zerr.With(zerr.With(domain.ErrConflictingInputAttrs, "input", id), "attribute", attrs.Keys()[0])
		}
		if hasURL {
			ref, err := domain.ParseRef(url)
			if err != nil {
				return nil, zerr.With(err, "input", id)
			}
			spec.Ref = &ref
		}
	}

	if topLevel && spec.Ref == nil && spec.Follows == nil {
		ref, err := domain.RefFromAttrs(domain.Attrs{
			domain.AttrType: domain.StringAttr(domain.RefTypeIndirect),
			domain.AttrID:   domain.StringAttr(id),
		})
		if err != nil {
			return nil, zerr.With(err, "input", id)
		}
		spec.Ref = &ref
	}

	return spec, nil
}

func toOverrides(inputs *domain.Inputs) domain.OverrideTree {
	tree := make(domain.OverrideTree, inputs.Len())
	for id, spec := range inputs.All() {
		tree[id] = &domain.Override{
			Ref:       spec.Ref,
			Follows:   spec.Follows,
			Overrides: spec.Overrides,
		}
	}
	return tree
}

func typeMismatch(attr string, v domain.Value, want domain.ValueKind) error {
	err := zerr.With(zerr.With(zerr.With(domain.ErrTypeMismatch,
		"attribute", attr), "expected", want.String()), "got", v.Kind.String())
	if v.Pos != "" {
		err = zerr.With(err, "pos", v.Pos)
	}
	return err
}
