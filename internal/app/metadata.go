package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/ui/output"
	"go.trai.ch/zerr"
)

// MetadataOptions configuration for the Metadata method.
type MetadataOptions struct {
	LockOptions
	JSON bool
}

type metadataJSON struct {
	Description  *string          `json:"description,omitempty"`
	OriginalURL  string           `json:"originalUrl"`
	Original     domain.Attrs     `json:"original"`
	ResolvedURL  string           `json:"resolvedUrl"`
	Resolved     domain.Attrs     `json:"resolved"`
	URL          string           `json:"url"`
	Locked       domain.Attrs     `json:"locked"`
	Revision     string           `json:"revision,omitempty"`
	RevCount     int64            `json:"revCount,omitempty"`
	LastModified int64            `json:"lastModified,omitempty"`
	Path         string           `json:"path"`
	Fingerprint  string           `json:"fingerprint"`
	Locks        *domain.LockFile `json:"locks"`
}

// Metadata locks the manifest behind opts.Ref without writing the lock file and
// prints what it resolved to.
func (a *App) Metadata(ctx context.Context, opts MetadataOptions) error {
	opts.NoWriteLockFile = true
	locked, err := a.lock(ctx, opts.LockOptions)
	if err != nil {
		return err
	}

	if opts.JSON {
		return writeMetadataJSON(a.out, locked)
	}
	writeMetadataText(output.New(a.out), locked)
	return nil
}

func writeMetadataJSON(w io.Writer, locked *domain.LockedFlake) error {
	flake := locked.Flake
	doc := metadataJSON{
		Description:  flake.Description,
		OriginalURL:  flake.OriginalRef.String(),
		Original:     flake.OriginalRef.ToAttrs(),
		ResolvedURL:  flake.ResolvedRef.String(),
		Resolved:     flake.ResolvedRef.ToAttrs(),
		URL:          flake.LockedRef.String(),
		Locked:       flake.LockedRef.ToAttrs(),
		Revision:     flake.LockedRef.Rev(),
		RevCount:     flake.LockedRef.RevCount(),
		LastModified: flake.LockedRef.LastModified(),
		Path:         flake.Tree.StorePath,
		Fingerprint:  locked.Fingerprint(),
		Locks:        locked.LockFile,
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return zerr.Wrap(err, "failed to encode metadata")
	}
	return nil
}

func writeMetadataText(o *termenv.Output, locked *domain.LockedFlake) {
	flake := locked.Flake
	field := func(label, value string) {
		_, _ = fmt.Fprintf(o, "%s %s\n", o.String(fmt.Sprintf("%-14s", label+":")).Bold(), value)
	}

	field("Resolved URL", flake.ResolvedRef.String())
	field("Locked URL", flake.LockedRef.String())
	if flake.Description != nil {
		field("Description", *flake.Description)
	}
	field("Path", flake.Tree.StorePath)
	if rev := flake.LockedRef.Rev(); rev != "" {
		field("Revision", rev)
	}
	if n := flake.LockedRef.RevCount(); n > 0 {
		field("Revisions", strconv.FormatInt(n, 10))
	}
	if ts := flake.LockedRef.LastModified(); ts > 0 {
		field("Last modified", time.Unix(ts, 0).UTC().Format(time.DateTime))
	}
	field("Fingerprint", locked.Fingerprint())

	if len(locked.LockFile.Root.Inputs) == 0 {
		return
	}
	_, _ = fmt.Fprintln(o, o.String("Inputs:").Bold())
	writeInputTree(o, locked.LockFile.Root, "")
}

func writeInputTree(o *termenv.Output, node *domain.Node, prefix string) {
	ids := node.InputIDs()
	for i, id := range ids {
		last := i == len(ids)-1
		branch, indent := "├───", "│   "
		if last {
			branch, indent = "└───", "    "
		}

		switch edge := node.Inputs[id].(type) {
		case *domain.LockedNode:
			_, _ = fmt.Fprintf(o, "%s%s%s: %s\n", prefix, branch, o.String(id).Bold(), edge.Locked)
			writeInputTree(o, &edge.Node, prefix+indent)
		case domain.FollowsEdge:
			_, _ = fmt.Fprintf(o, "%s%s%s follows input '%s'\n", prefix, branch, o.String(id).Bold(), edge.Path)
		}
	}
}
