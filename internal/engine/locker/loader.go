package locker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	manifestAttrDescription = "description"
	manifestAttrEdition     = "edition"
	manifestAttrInputs      = "inputs"
	manifestAttrOutputs     = "outputs"

	selfFormal = "self"
)

func (l *Locker) getFlake(
	ctx context.Context,
	original domain.Ref,
	allowLookup bool,
	cache *fetchCache,
) (*domain.Flake, error) {
	tree, resolved, locked, err := l.fetchOrResolve(ctx, original, allowLookup, cache)
	if err != nil {
		return nil, err
	}

	ctx, span := l.tracer.Start(ctx, "manifest.load", ports.WithAttribute("ref", locked.String()))
	defer span.End()

	flake, err := l.loadManifest(ctx, tree, locked)
	if err != nil {
		span.RecordError(err)
		return nil, zerr.With(err, "ref", original.String())
	}
	flake.OriginalRef = original
	flake.ResolvedRef = resolved
	return flake, nil
}

func (l *Locker) loadManifest(ctx context.Context, tree *domain.Tree, locked domain.Ref) (*domain.Flake, error) {
	manifestPath, err := findManifest(tree.ActualPath, locked.Subdir)
	if err != nil {
		return nil, err
	}

	value, err := l.evaluator.Evaluate(ctx, manifestPath)
	if err != nil {
		return nil, err
	}
	if value.Kind != domain.KindAttrs {
		return nil, zerr.With(typeMismatch("manifest", value, domain.KindAttrs), "file", manifestPath)
	}

	flake := &domain.Flake{
		LockedRef: locked,
		Tree:      tree,
		Inputs:    domain.NewInputs(),
	}

	if _, ok := value.Attrs.Get(manifestAttrEdition); ok {
		l.logger.Warn(fmt.Sprintf("manifest '%s' has deprecated attribute 'edition'", locked))
	}

	if v, ok := value.Attrs.Get(manifestAttrDescription); ok {
		if v.Kind != domain.KindString {
			return nil, typeMismatch(manifestAttrDescription, v, domain.KindString)
		}
		desc := v.Str
		flake.Description = &desc
	}

	if v, ok := value.Attrs.Get(manifestAttrInputs); ok {
		flake.Inputs, err = parseInputs(v, true)
		if err != nil {
			return nil, err
		}
	}

	outputs, ok := value.Attrs.Get(manifestAttrOutputs)
	if !ok {
		return nil, zerr.With(domain.ErrMissingOutputs, "file", manifestPath)
	}
	if outputs.Kind != domain.KindLambda {
		return nil, typeMismatch(manifestAttrOutputs, outputs, domain.KindLambda)
	}
	if outputs.MatchAttrs {
		for _, formal := range outputs.Formals {
			if formal == selfFormal {
				continue
			}
			if err := declareFormal(flake.Inputs, formal); err != nil {
				return nil, err
			}
		}
	}
	flake.Outputs = outputs

	for name, v := range value.Attrs.All() {
		switch name {
		case manifestAttrDescription, manifestAttrEdition, manifestAttrInputs, manifestAttrOutputs:
		default:
			err := zerr.With(zerr.With(domain.ErrUnsupportedAttribute, "attribute", name), "file", manifestPath)
			if v.Pos != "" {
				err = zerr.With(err, "pos", v.Pos)
			}
			return nil, err
		}
	}

	return flake, nil
}

// declareFormal adds an input for an outputs parameter that is not declared under
// "inputs". The input resolves through the registry by the parameter name.
func declareFormal(inputs *domain.Inputs, formal string) error {
	if _, ok := inputs.Get(formal); ok {
		return nil
	}
	ref, err := domain.RefFromAttrs(domain.Attrs{
		domain.AttrType: domain.StringAttr(domain.RefTypeIndirect),
		domain.AttrID:   domain.StringAttr(formal),
	})
	if err != nil {
		return zerr.With(err, "formal", formal)
	}
	spec := domain.NewInputSpec()
	spec.Ref = &ref
	inputs.Set(formal, spec)
	return nil
}

// findManifest locates the manifest file of a tree. The file must not resolve to a
// location outside the tree.
func findManifest(root, subdir string) (string, error) {
	for _, name := range domain.ManifestFileNames() {
		rel := filepath.Join(filepath.FromSlash(subdir), name)
		if _, err := os.Lstat(filepath.Join(root, rel)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", zerr.With(zerr.Wrap(err, domain.ErrManifestNotFound.Error()), "path", rel)
		}
		resolved, err := resolveInTree(root, rel)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(resolved); err != nil {
			return "", zerr.With(zerr.Wrap(err, domain.ErrManifestNotFound.Error()), "path", rel)
		}
		return resolved, nil
	}
	return "", zerr.With(domain.ErrManifestNotFound, "dir", filepath.Join(root, subdir))
}
