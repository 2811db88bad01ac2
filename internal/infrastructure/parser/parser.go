// Package parser converts the four consolidated sanctions list schemas
// (UN, UK OFSI, US OFAC SDN, EU FSF) into canonical records.  Each source
// schema is a tagged Parser implementation selected explicitly by source
// list — never by sniffing the XML shape — and every parser emits through
// the same per-entry result type, so a malformed entry becomes a skip note
// while the rest of the file keeps streaming.
package parser

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/mkweli/amlscreen/internal/domain/sanction"
	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// SkipNote records one malformed entry that was skipped during parsing,
// with enough detail to locate it in the source document.
type SkipNote struct {
	Source  types.SourceList `json:"source"`
	LocalID string           `json:"local_id,omitempty"`
	Field   string           `json:"field,omitempty"`
	Reason  string           `json:"reason"`
}

// Entry is the explicit per-entry parse result: exactly one of Record or
// Skip is set.  An explicit variant instead of error-based control flow
// lets the stream continue past bad entries.
type Entry struct {
	Record *sanction.Record
	Skip   *SkipNote
}

// EmitFunc receives each parsed entry in document order.  Returning an
// error aborts the parse; context cancellation is surfaced the same way.
type EmitFunc func(Entry) error

// Parser converts one source's XML byte stream into canonical records.
// Parse is restartable: feeding it the same bytes yields the same entry
// sequence.  A whole-file failure (not XML, unrecognized root) returns a
// CodeMalformedDocument error; per-entry failures become skip notes.
type Parser interface {
	Source() types.SourceList
	Parse(ctx context.Context, r io.Reader, emit EmitFunc) error
}

// ForSource returns the parser for the declared source list.  The filename
// a caller read the bytes from plays no part in this selection.
func ForSource(src types.SourceList) (Parser, error) {
	switch src {
	case types.SourceUN:
		return &unParser{}, nil
	case types.SourceUK:
		return &ukParser{}, nil
	case types.SourceOFAC:
		return &ofacParser{}, nil
	case types.SourceEU:
		return &euParser{}, nil
	default:
		return nil, errors.Newf(errors.CodeInvalidParam, "no parser for source %q", src)
	}
}

// streamEntries drives an xml.Decoder over r, validating that the document
// root is one of wantRoots and dispatching each element named in entryNames
// to handle.  handle is expected to call dec.DecodeElement with the given
// start element, which consumes the entire entry subtree.
func streamEntries(
	ctx context.Context,
	src types.SourceList,
	r io.Reader,
	wantRoots map[string]bool,
	entryNames map[string]bool,
	handle func(dec *xml.Decoder, se xml.StartElement) error,
) error {
	dec := xml.NewDecoder(r)
	sawRoot := false

	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.CodeTimeout, "parse cancelled").
				WithDetail("source=" + src.String())
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, errors.CodeMalformedDocument, "document is not well-formed XML").
				WithDetail("source=" + src.String())
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if !sawRoot {
			if !wantRoots[se.Name.Local] {
				return errors.Newf(errors.CodeMalformedDocument,
					"unrecognized document root <%s> for %s list", se.Name.Local, src)
			}
			sawRoot = true
			continue
		}

		if entryNames[se.Name.Local] {
			if err := handle(dec, se); err != nil {
				return err
			}
		}
	}

	if !sawRoot {
		return errors.Newf(errors.CodeMalformedDocument, "empty document for %s list", src)
	}
	return nil
}

// skip emits a SkipNote through emit.
func skip(emit EmitFunc, src types.SourceList, localID, field, reason string) error {
	return emit(Entry{Skip: &SkipNote{Source: src, LocalID: localID, Field: field, Reason: reason}})
}
