package parser

import (
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/mkweli/amlscreen/internal/domain/sanction"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// unParser reads the UN Security Council consolidated list.  Individuals
// carry a segmented name (FIRST_NAME..FOURTH_NAME) that is joined in order;
// entities carry a single FIRST_NAME.  Alias QUALITY "Good" maps to a
// strong variant, anything else to a weak one.
type unParser struct{}

func (p *unParser) Source() types.SourceList { return types.SourceUN }

type unAlias struct {
	Quality   string `xml:"QUALITY"`
	AliasName string `xml:"ALIAS_NAME"`
}

type unDateOfBirth struct {
	TypeOfDate string `xml:"TYPE_OF_DATE"`
	Date       string `xml:"DATE"`
	Year       string `xml:"YEAR"`
	FromYear   string `xml:"FROM_YEAR"`
}

type unIndividual struct {
	DataID        string          `xml:"DATAID"`
	FirstName     string          `xml:"FIRST_NAME"`
	SecondName    string          `xml:"SECOND_NAME"`
	ThirdName     string          `xml:"THIRD_NAME"`
	FourthName    string          `xml:"FOURTH_NAME"`
	ListType      string          `xml:"UN_LIST_TYPE"`
	ListedOn      string          `xml:"LISTED_ON"`
	Comments      string          `xml:"COMMENTS1"`
	Aliases       []unAlias       `xml:"INDIVIDUAL_ALIAS"`
	DatesOfBirth  []unDateOfBirth `xml:"INDIVIDUAL_DATE_OF_BIRTH"`
	Nationalities []string        `xml:"NATIONALITY>VALUE"`
}

type unEntity struct {
	DataID   string    `xml:"DATAID"`
	Name     string    `xml:"FIRST_NAME"`
	ListType string    `xml:"UN_LIST_TYPE"`
	ListedOn string    `xml:"LISTED_ON"`
	Comments string    `xml:"COMMENTS1"`
	Aliases  []unAlias `xml:"ENTITY_ALIAS"`
}

func (p *unParser) Parse(ctx context.Context, r io.Reader, emit EmitFunc) error {
	roots := map[string]bool{"CONSOLIDATED_LIST": true}
	entries := map[string]bool{"INDIVIDUAL": true, "ENTITY": true}

	return streamEntries(ctx, p.Source(), r, roots, entries, func(dec *xml.Decoder, se xml.StartElement) error {
		if se.Name.Local == "INDIVIDUAL" {
			var raw unIndividual
			if err := dec.DecodeElement(&raw, &se); err != nil {
				return skip(emit, p.Source(), "", "INDIVIDUAL", "undecodable element: "+err.Error())
			}
			return p.emitIndividual(emit, raw)
		}
		var raw unEntity
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return skip(emit, p.Source(), "", "ENTITY", "undecodable element: "+err.Error())
		}
		return p.emitEntity(emit, raw)
	})
}

func (p *unParser) emitIndividual(emit EmitFunc, raw unIndividual) error {
	if strings.TrimSpace(raw.DataID) == "" {
		return skip(emit, p.Source(), "", "DATAID", "missing identifier")
	}
	name := joinNameParts(raw.FirstName, raw.SecondName, raw.ThirdName, raw.FourthName)
	rec, err := sanction.NewRecord(p.Source(), raw.DataID, types.KindIndividual, name)
	if err != nil {
		return skip(emit, p.Source(), raw.DataID, "FIRST_NAME", "no usable name")
	}

	for _, a := range raw.Aliases {
		rec.AddAlias(a.AliasName, unAliasType(a.Quality))
	}
	rec.DateOfBirth = unBirthDate(raw.DatesOfBirth)
	if len(raw.Nationalities) > 0 {
		rec.Nationality = sanction.NormalizeCountry(raw.Nationalities[0])
	}
	rec.SetRawField("list_type", raw.ListType)
	rec.SetRawField("listed_on", raw.ListedOn)
	rec.SetRawField("comments", raw.Comments)
	return emit(Entry{Record: rec})
}

func (p *unParser) emitEntity(emit EmitFunc, raw unEntity) error {
	if strings.TrimSpace(raw.DataID) == "" {
		return skip(emit, p.Source(), "", "DATAID", "missing identifier")
	}
	rec, err := sanction.NewRecord(p.Source(), raw.DataID, types.KindEntity, raw.Name)
	if err != nil {
		return skip(emit, p.Source(), raw.DataID, "FIRST_NAME", "no usable name")
	}
	for _, a := range raw.Aliases {
		rec.AddAlias(a.AliasName, unAliasType(a.Quality))
	}
	rec.SetRawField("list_type", raw.ListType)
	rec.SetRawField("listed_on", raw.ListedOn)
	rec.SetRawField("comments", raw.Comments)
	return emit(Entry{Record: rec})
}

// unAliasType maps the list's alias QUALITY marker.  Only "Good" is a
// full-weight variant; "Low" and anything unrecognized are weak.
func unAliasType(quality string) types.AliasType {
	if strings.EqualFold(strings.TrimSpace(quality), "Good") {
		return types.AliasStrongVariant
	}
	return types.AliasWeakVariant
}

// unBirthDate picks the first parseable date of birth.  EXACT entries carry
// a full DATE, APPROXIMATELY ones usually just a YEAR or FROM_YEAR.
func unBirthDate(dobs []unDateOfBirth) *types.PartialDate {
	for _, d := range dobs {
		for _, candidate := range []string{d.Date, d.Year, d.FromYear} {
			if strings.TrimSpace(candidate) == "" {
				continue
			}
			if pd, err := types.ParsePartialDate(candidate); err == nil && !pd.IsZero() {
				return &pd
			}
		}
	}
	return nil
}

// joinNameParts concatenates the segmented UN name fields, skipping blanks.
func joinNameParts(parts ...string) string {
	kept := parts[:0]
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}
