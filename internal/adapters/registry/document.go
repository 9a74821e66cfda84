package registry

import (
	"encoding/json"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// DocumentVersion is the registry document format understood by the resolver.
const DocumentVersion = 2

type document struct {
	Version int     `json:"version"`
	Flakes  []entry `json:"flakes"`
}

type entry struct {
	From  domain.Attrs `json:"from"`
	To    domain.Attrs `json:"to"`
	Exact bool         `json:"exact,omitempty"`
}

func parseDocument(source string, data []byte) (*document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrRegistryParse.Error()), "registry", source)
	}
	if doc.Version != DocumentVersion {
		return nil, zerr.With(zerr.With(domain.ErrRegistryParse, "registry", source), "version", doc.Version)
	}
	return &doc, nil
}

// lookup returns the target of the first entry matching ref.
func (d *document) lookup(source string, ref domain.Ref) (domain.Ref, bool, error) {
	id, _ := ref.StringAttr(domain.AttrID)
	for i, e := range d.Flakes {
		if !e.matches(id, ref) {
			continue
		}

		to, err := domain.RefFromAttrs(e.To)
		if err != nil {
			return domain.Ref{}, false, zerr.With(zerr.With(zerr.Wrap(err, domain.ErrRegistryParse.Error()),
				"registry", source), "entry", i)
		}
		return e.apply(to, ref), true, nil
	}
	return domain.Ref{}, false, nil
}

func (e entry) matches(id string, ref domain.Ref) bool {
	if t, _ := e.From.String(domain.AttrType); t != domain.RefTypeIndirect {
		return false
	}
	if fromID, _ := e.From.String(domain.AttrID); fromID != id {
		return false
	}
	// A pinned branch in the entry only matches refs asking for that branch.
	if fromRef, ok := e.From.String(domain.AttrRef); ok && fromRef != ref.GitRef() {
		return false
	}
	return true
}

// apply carries the ref, rev and subdirectory of the indirect reference over to the
// registry target. Exact entries are returned as written.
func (e entry) apply(to, ref domain.Ref) domain.Ref {
	if e.Exact {
		return to
	}
	if r := ref.GitRef(); r != "" {
		to = to.With(domain.AttrRef, domain.StringAttr(r))
	}
	if rev := ref.Rev(); rev != "" {
		to = to.With(domain.AttrRev, domain.StringAttr(rev))
	}
	if ref.Subdir != "" {
		to = to.WithSubdir(ref.Subdir)
	}
	return to
}
