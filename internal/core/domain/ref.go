package domain

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// Reference types understood by the resolver.
const (
	RefTypePath     = "path"
	RefTypeGit      = "git"
	RefTypeTarball  = "tarball"
	RefTypeIndirect = "indirect"
)

// Well-known reference attributes.
const (
	AttrType         = "type"
	AttrPath         = "path"
	AttrURL          = "url"
	AttrID           = "id"
	AttrRef          = "ref"
	AttrRev          = "rev"
	AttrRevCount     = "revCount"
	AttrLastModified = "lastModified"
	AttrNarHash      = "narHash"
	AttrDir          = "dir"
)

var (
	indirectIDPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
	revPattern        = regexp.MustCompile(`^[0-9a-f]{40}$`)

	tarballSuffixes = []string{".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tar.zst", ".zip"}

	// Query keys that are lifted into attributes for URL-based references. Any other
	// query parameter stays part of the URL.
	urlQueryAttrs = map[string]bool{
		AttrRef: true, AttrRev: true, AttrRevCount: true,
		AttrLastModified: true, AttrNarHash: true, AttrDir: true,
	}
)

// Ref is a reference to a source tree: a typed attribute set plus an optional
// subdirectory inside the fetched tree.
type Ref struct {
	attrs  Attrs
	Subdir string
}

// IsValidRev reports whether s is a full 40 character hex revision.
func IsValidRev(s string) bool {
	return revPattern.MatchString(s)
}

// ParseRef parses the URL-like string form of a reference.
func ParseRef(s string) (Ref, error) {
	if s == "" {
		return Ref{}, zerr.With(ErrInvalidRef, "ref", s)
	}

	if isPathLike(s) {
		return RefFromAttrs(Attrs{AttrType: StringAttr(RefTypePath), AttrPath: StringAttr(s)})
	}

	u, err := url.Parse(s)
	if err != nil {
		return Ref{}, zerr.With(zerr.Wrap(err, ErrInvalidRef.Error()), "ref", s)
	}

	switch {
	case u.Scheme == "":
		return parseIndirect(u.Path, u.Query(), u.Fragment)
	case u.Scheme == "flake":
		return parseIndirect(u.Opaque, u.Query(), u.Fragment)
	case u.Scheme == RefTypePath:
		return parsePathURL(s, u)
	case strings.HasPrefix(u.Scheme, "git+"):
		return parseURLRef(s, u, RefTypeGit, strings.TrimPrefix(u.Scheme, "git+"))
	case strings.HasPrefix(u.Scheme, "tarball+"):
		return parseURLRef(s, u, RefTypeTarball, strings.TrimPrefix(u.Scheme, "tarball+"))
	case (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "file") && hasTarballSuffix(u.Path):
		return parseURLRef(s, u, RefTypeTarball, u.Scheme)
	default:
		return Ref{}, zerr.With(zerr.With(ErrUnsupportedReference, "ref", s), "scheme", u.Scheme)
	}
}

// MustParseRef is like ParseRef but panics on error. It is meant for tests and constants.
func MustParseRef(s string) Ref {
	r, err := ParseRef(s)
	if err != nil {
		panic(err)
	}
	return r
}

func isPathLike(s string) bool {
	return filepath.IsAbs(s) || s == "." || s == ".." ||
		strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../")
}

func hasTarballSuffix(p string) bool {
	for _, suffix := range tarballSuffixes {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func parseIndirect(s string, q url.Values, subdir string) (Ref, error) {
	parts := strings.Split(s, "/")
	if len(parts) > 3 {
		return Ref{}, zerr.With(ErrInvalidRef, "ref", s)
	}

	attrs := Attrs{}
	if err := queryAttrs(attrs, q, nil); err != nil {
		return Ref{}, zerr.With(err, "ref", s)
	}
	attrs[AttrType] = StringAttr(RefTypeIndirect)
	attrs[AttrID] = StringAttr(parts[0])
	switch len(parts) {
	case 2:
		if parts[1] == "" {
			return Ref{}, zerr.With(ErrInvalidRef, "ref", s)
		}
		if IsValidRev(parts[1]) {
			attrs[AttrRev] = StringAttr(parts[1])
		} else {
			attrs[AttrRef] = StringAttr(parts[1])
		}
	case 3:
		if parts[1] == "" || !IsValidRev(parts[2]) {
			return Ref{}, zerr.With(ErrInvalidRef, "ref", s)
		}
		attrs[AttrRef] = StringAttr(parts[1])
		attrs[AttrRev] = StringAttr(parts[2])
	}
	if subdir != "" {
		attrs[AttrDir] = StringAttr(subdir)
	}
	return RefFromAttrs(attrs)
}

func parsePathURL(s string, u *url.URL) (Ref, error) {
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		return Ref{}, zerr.With(ErrInvalidRef, "ref", s)
	}

	attrs := Attrs{AttrType: StringAttr(RefTypePath), AttrPath: StringAttr(p)}
	if err := queryAttrs(attrs, u.Query(), nil); err != nil {
		return Ref{}, zerr.With(err, "ref", s)
	}
	if u.Fragment != "" {
		attrs[AttrDir] = StringAttr(u.Fragment)
	}
	return RefFromAttrs(attrs)
}

func parseURLRef(s string, u *url.URL, refType, scheme string) (Ref, error) {
	attrs := Attrs{AttrType: StringAttr(refType)}

	rest := u.Query()
	if err := queryAttrs(attrs, rest, urlQueryAttrs); err != nil {
		return Ref{}, zerr.With(err, "ref", s)
	}

	inner := *u
	inner.Scheme = scheme
	inner.RawQuery = rest.Encode()
	inner.Fragment = ""
	inner.RawFragment = ""
	attrs[AttrURL] = StringAttr(inner.String())

	if u.Fragment != "" {
		attrs[AttrDir] = StringAttr(u.Fragment)
	}
	return RefFromAttrs(attrs)
}

// queryAttrs moves query parameters into attrs. When only is non-nil, parameters not
// listed stay in q; the others are removed from it.
func queryAttrs(attrs Attrs, q url.Values, only map[string]bool) error {
	for key, values := range q {
		if only != nil && !only[key] {
			continue
		}
		if len(values) == 0 {
			continue
		}
		v := values[0]
		switch key {
		case AttrRevCount, AttrLastModified:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return zerr.With(zerr.Wrap(err, ErrInvalidRef.Error()), "attribute", key)
			}
			attrs[key] = IntAttr(n)
		default:
			attrs[key] = StringAttr(v)
		}
		q.Del(key)
	}
	return nil
}

// RefFromAttrs builds a reference from its attribute form. The "dir" attribute becomes
// the subdirectory.
func RefFromAttrs(attrs Attrs) (Ref, error) {
	t, ok := attrs.String(AttrType)
	if !ok {
		return Ref{}, zerr.With(ErrInvalidRef, "reason", "missing 'type' attribute")
	}

	attrs = attrs.Clone()
	var subdir string
	if dir, ok := attrs.String(AttrDir); ok {
		subdir = dir
		delete(attrs, AttrDir)
	}

	switch t {
	case RefTypePath:
		if _, ok := attrs.String(AttrPath); !ok {
			return Ref{}, zerr.With(zerr.With(ErrInvalidRef, "type", t), "missing", AttrPath)
		}
	case RefTypeGit, RefTypeTarball:
		if _, ok := attrs.String(AttrURL); !ok {
			return Ref{}, zerr.With(zerr.With(ErrInvalidRef, "type", t), "missing", AttrURL)
		}
	case RefTypeIndirect:
		id, ok := attrs.String(AttrID)
		if !ok || !indirectIDPattern.MatchString(id) {
			return Ref{}, zerr.With(zerr.With(ErrInvalidRef, "type", t), "id", id)
		}
	default:
		return Ref{}, zerr.With(ErrUnsupportedReference, "type", t)
	}

	if rev, ok := attrs.String(AttrRev); ok && !IsValidRev(rev) {
		return Ref{}, zerr.With(ErrInvalidRef, "rev", rev)
	}

	return Ref{attrs: attrs, Subdir: subdir}, nil
}

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool {
	return r.attrs == nil
}

// Type returns the reference type.
func (r Ref) Type() string {
	t, _ := r.attrs.String(AttrType)
	return t
}

// Attr returns a single attribute.
func (r Ref) Attr(key string) (Attr, bool) {
	a, ok := r.attrs[key]
	return a, ok
}

// StringAttr returns a string attribute.
func (r Ref) StringAttr(key string) (string, bool) {
	return r.attrs.String(key)
}

// ToAttrs returns the attribute form of the reference, including "dir".
func (r Ref) ToAttrs() Attrs {
	out := r.attrs.Clone()
	if r.Subdir != "" {
		out[AttrDir] = StringAttr(r.Subdir)
	}
	return out
}

// With returns a copy of the reference with key set to v.
func (r Ref) With(key string, v Attr) Ref {
	out := Ref{attrs: r.attrs.Clone(), Subdir: r.Subdir}
	out.attrs[key] = v
	return out
}

// Without returns a copy of the reference with the given keys removed.
func (r Ref) Without(keys ...string) Ref {
	out := Ref{attrs: r.attrs.Clone(), Subdir: r.Subdir}
	for _, k := range keys {
		delete(out.attrs, k)
	}
	return out
}

// WithSubdir returns a copy of the reference pointing at another subdirectory.
func (r Ref) WithSubdir(subdir string) Ref {
	return Ref{attrs: r.attrs.Clone(), Subdir: subdir}
}

// IsDirect reports whether the reference can be fetched without a registry lookup.
func (r Ref) IsDirect() bool {
	return r.Type() != RefTypeIndirect
}

// IsImmutable reports whether the reference pins its content.
func (r Ref) IsImmutable() bool {
	switch r.Type() {
	case RefTypePath, RefTypeTarball:
		return r.NarHash() != ""
	case RefTypeGit:
		return IsValidRev(r.Rev())
	default:
		return false
	}
}

// NarHash returns the pinned content hash, if any.
func (r Ref) NarHash() string {
	h, _ := r.attrs.String(AttrNarHash)
	return h
}

// Rev returns the pinned revision, if any.
func (r Ref) Rev() string {
	rev, _ := r.attrs.String(AttrRev)
	return rev
}

// GitRef returns the branch or tag name, if any.
func (r Ref) GitRef() string {
	ref, _ := r.attrs.String(AttrRef)
	return ref
}

// RevCount returns the revision count, or zero.
func (r Ref) RevCount() int64 {
	n, _ := r.attrs.Int(AttrRevCount)
	return n
}

// LastModified returns the last modification time in seconds, or zero.
func (r Ref) LastModified() int64 {
	n, _ := r.attrs.Int(AttrLastModified)
	return n
}

// SourcePath returns the writable local directory backing the reference, if any.
func (r Ref) SourcePath() (string, bool) {
	switch r.Type() {
	case RefTypePath:
		p, _ := r.attrs.String(AttrPath)
		if !filepath.IsAbs(p) {
			return "", false
		}
		return p, true
	case RefTypeGit:
		raw, _ := r.attrs.String(AttrURL)
		u, err := url.Parse(raw)
		if err != nil || u.Scheme != "file" || u.Path == "" {
			return "", false
		}
		return u.Path, true
	default:
		return "", false
	}
}

// Equal reports whether both references have the same attributes and subdirectory.
func (r Ref) Equal(o Ref) bool {
	return r.Subdir == o.Subdir && r.attrs.Equal(o.attrs)
}

// String renders the reference in its URL-like form.
func (r Ref) String() string {
	if r.IsZero() {
		return ""
	}

	switch r.Type() {
	case RefTypeIndirect:
		return r.indirectString()
	case RefTypePath:
		p, _ := r.attrs.String(AttrPath)
		return "path:" + p + r.queryString(AttrPath) + r.fragment()
	default:
		raw, _ := r.attrs.String(AttrURL)
		u, err := url.Parse(raw)
		if err != nil {
			return r.Type() + "+" + raw + r.queryString(AttrURL) + r.fragment()
		}
		q := u.Query()
		for _, k := range r.extraKeys(AttrURL) {
			q.Set(k, r.attrs[k].String())
		}
		u.RawQuery = q.Encode()
		u.Fragment = r.Subdir
		return r.Type() + "+" + u.String()
	}
}

func (r Ref) indirectString() string {
	var b strings.Builder
	id, _ := r.attrs.String(AttrID)
	b.WriteString(id)
	if ref := r.GitRef(); ref != "" {
		b.WriteString("/" + ref)
	}
	if rev := r.Rev(); rev != "" {
		b.WriteString("/" + rev)
	}
	extra := r.queryString(AttrID, AttrRef, AttrRev)
	if extra == "" && r.Subdir == "" {
		return b.String()
	}
	return "flake:" + b.String() + extra + r.fragment()
}

func (r Ref) extraKeys(skip ...string) []string {
	var keys []string
	for _, k := range r.attrs.Keys() {
		if k == AttrType {
			continue
		}
		skipped := false
		for _, s := range skip {
			if k == s {
				skipped = true
				break
			}
		}
		if !skipped {
			keys = append(keys, k)
		}
	}
	return keys
}

func (r Ref) queryString(skip ...string) string {
	keys := r.extraKeys(skip...)
	if len(keys) == 0 {
		return ""
	}
	q := url.Values{}
	for _, k := range keys {
		q.Set(k, r.attrs[k].String())
	}
	return "?" + q.Encode()
}

func (r Ref) fragment() string {
	if r.Subdir == "" {
		return ""
	}
	return "#" + r.Subdir
}
