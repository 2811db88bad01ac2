package parser

import (
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/mkweli/amlscreen/internal/domain/sanction"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// ukParser reads the UK OFSI consolidated designations file.  Each
// Designation lists several Name blocks; the one flagged "Primary Name" is
// the record's primary and the rest become aliases.  UK dates are
// day-first ("dd/mm/yyyy"), which ParsePartialDate handles.
type ukParser struct{}

func (p *ukParser) Source() types.SourceList { return types.SourceUK }

type ukName struct {
	Name6    string `xml:"Name6"`
	NameType string `xml:"NameType"`
}

type ukDesignation struct {
	UniqueID         string   `xml:"UniqueID"`
	RegimeName       string   `xml:"RegimeName"`
	EntityKind       string   `xml:"IndividualEntityShip"`
	Names            []ukName `xml:"Names>Name"`
	DatesOfBirth     []string `xml:"IndividualDatesOfBirth>DateOfBirth"`
	Nationality      []string `xml:"IndividualNationalities>Nationality"`
	LastUpdated      string   `xml:"LastUpdated"`
	SanctionsImposed string   `xml:"SanctionsImposed"`
}

func (p *ukParser) Parse(ctx context.Context, r io.Reader, emit EmitFunc) error {
	roots := map[string]bool{"Designations": true, "DesignationsFile": true}
	entries := map[string]bool{"Designation": true}

	return streamEntries(ctx, p.Source(), r, roots, entries, func(dec *xml.Decoder, se xml.StartElement) error {
		var raw ukDesignation
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return skip(emit, p.Source(), "", "Designation", "undecodable element: "+err.Error())
		}
		return p.emitDesignation(emit, raw)
	})
}

func (p *ukParser) emitDesignation(emit EmitFunc, raw ukDesignation) error {
	if strings.TrimSpace(raw.UniqueID) == "" {
		return skip(emit, p.Source(), "", "UniqueID", "missing identifier")
	}

	primary, aliases := splitUKNames(raw.Names)
	if primary == "" {
		return skip(emit, p.Source(), raw.UniqueID, "Names", "no primary name")
	}

	rec, err := sanction.NewRecord(p.Source(), raw.UniqueID, ukKind(raw.EntityKind), primary)
	if err != nil {
		return skip(emit, p.Source(), raw.UniqueID, "Names", "no usable name")
	}
	for _, alias := range aliases {
		rec.AddAlias(alias, types.AliasAKA)
	}

	for _, dob := range raw.DatesOfBirth {
		if pd, perr := types.ParsePartialDate(dob); perr == nil && !pd.IsZero() {
			rec.DateOfBirth = &pd
			break
		}
	}
	if len(raw.Nationality) > 0 {
		rec.Nationality = sanction.NormalizeCountry(raw.Nationality[0])
	}
	rec.SetRawField("regime", raw.RegimeName)
	rec.SetRawField("last_updated", raw.LastUpdated)
	rec.SetRawField("sanctions_imposed", raw.SanctionsImposed)
	return emit(Entry{Record: rec})
}

// splitUKNames separates the block flagged "Primary Name" from the alias
// blocks.  When no block carries the flag the first non-empty name is
// promoted, which matches how OFSI publishes single-name designations.
func splitUKNames(names []ukName) (primary string, aliases []string) {
	for _, n := range names {
		name := strings.TrimSpace(n.Name6)
		if name == "" {
			continue
		}
		if primary == "" && strings.EqualFold(strings.TrimSpace(n.NameType), "Primary Name") {
			primary = name
			continue
		}
		aliases = append(aliases, name)
	}
	if primary == "" && len(aliases) > 0 {
		primary = aliases[0]
		aliases = aliases[1:]
	}
	return primary, aliases
}

func ukKind(s string) types.RecordKind {
	if strings.EqualFold(strings.TrimSpace(s), "Individual") {
		return types.KindIndividual
	}
	return types.KindEntity
}
