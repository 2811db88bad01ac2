package parser

import (
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/mkweli/amlscreen/internal/domain/sanction"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// ofacParser reads the US Treasury SDN list.  Individual names are split
// into lastName/firstName and rejoined "first last"; entities carry only
// lastName.  An aka's category ("strong"/"weak") drives alias weighting,
// its type ("a.k.a."/"f.k.a.") the alias classification.
type ofacParser struct{}

func (p *ofacParser) Source() types.SourceList { return types.SourceOFAC }

type ofacAKA struct {
	UID       string `xml:"uid"`
	Type      string `xml:"type"`
	Category  string `xml:"category"`
	LastName  string `xml:"lastName"`
	FirstName string `xml:"firstName"`
}

type ofacDOB struct {
	DateOfBirth string `xml:"dateOfBirth"`
	MainEntry   string `xml:"mainEntry"`
}

type ofacNationality struct {
	Country   string `xml:"country"`
	MainEntry string `xml:"mainEntry"`
}

type ofacEntry struct {
	UID           string            `xml:"uid"`
	FirstName     string            `xml:"firstName"`
	LastName      string            `xml:"lastName"`
	SDNType       string            `xml:"sdnType"`
	Programs      []string          `xml:"programList>program"`
	AKAs          []ofacAKA         `xml:"akaList>aka"`
	DatesOfBirth  []ofacDOB         `xml:"dateOfBirthList>dateOfBirthItem"`
	Nationalities []ofacNationality `xml:"nationalityList>nationality"`
}

func (p *ofacParser) Parse(ctx context.Context, r io.Reader, emit EmitFunc) error {
	roots := map[string]bool{"sdnList": true}
	entries := map[string]bool{"sdnEntry": true}

	return streamEntries(ctx, p.Source(), r, roots, entries, func(dec *xml.Decoder, se xml.StartElement) error {
		var raw ofacEntry
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return skip(emit, p.Source(), "", "sdnEntry", "undecodable element: "+err.Error())
		}
		return p.emitEntry(emit, raw)
	})
}

func (p *ofacParser) emitEntry(emit EmitFunc, raw ofacEntry) error {
	if strings.TrimSpace(raw.UID) == "" {
		return skip(emit, p.Source(), "", "uid", "missing identifier")
	}

	kind := ofacKind(raw.SDNType)
	name := joinNameParts(raw.FirstName, raw.LastName)
	rec, err := sanction.NewRecord(p.Source(), raw.UID, kind, name)
	if err != nil {
		return skip(emit, p.Source(), raw.UID, "lastName", "no usable name")
	}

	for _, aka := range raw.AKAs {
		alias := joinNameParts(aka.FirstName, aka.LastName)
		rec.AddAlias(alias, ofacAliasType(aka.Type, aka.Category))
	}

	for _, dob := range raw.DatesOfBirth {
		if pd, perr := types.ParsePartialDate(dob.DateOfBirth); perr == nil && !pd.IsZero() {
			rec.DateOfBirth = &pd
			if strings.EqualFold(dob.MainEntry, "true") {
				break
			}
		}
	}
	for _, nat := range raw.Nationalities {
		if strings.TrimSpace(nat.Country) == "" {
			continue
		}
		rec.Nationality = sanction.NormalizeCountry(nat.Country)
		if strings.EqualFold(nat.MainEntry, "true") {
			break
		}
	}
	rec.SetRawField("sdn_type", raw.SDNType)
	rec.SetRawField("programs", strings.Join(raw.Programs, ", "))
	return emit(Entry{Record: rec})
}

func ofacKind(sdnType string) types.RecordKind {
	if strings.EqualFold(strings.TrimSpace(sdnType), "Individual") {
		return types.KindIndividual
	}
	return types.KindEntity
}

func ofacAliasType(akaType, category string) types.AliasType {
	if strings.EqualFold(strings.TrimSpace(category), "weak") {
		return types.AliasWeakVariant
	}
	if strings.EqualFold(strings.TrimSpace(akaType), "f.k.a.") {
		return types.AliasFKA
	}
	return types.AliasAKA
}
