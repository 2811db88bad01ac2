package parser

import (
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/mkweli/amlscreen/internal/domain/sanction"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// euParser reads the EU Financial Sanctions Files export.  Everything of
// interest lives in attributes: the entity's logicalId, each nameAlias's
// wholeName and strong flag, birthdate year, citizenship ISO code.  The
// first non-empty wholeName is the primary; the rest are aliases weighted
// by their strong flag.
type euParser struct{}

func (p *euParser) Source() types.SourceList { return types.SourceEU }

type euNameAlias struct {
	WholeName string `xml:"wholeName,attr"`
	Strong    string `xml:"strong,attr"`
	Function  string `xml:"function,attr"`
}

type euSubjectType struct {
	Code string `xml:"code,attr"`
}

type euRegulation struct {
	Programme       string `xml:"programme,attr"`
	PublicationDate string `xml:"publicationDate,attr"`
}

type euBirthdate struct {
	Birthdate string `xml:"birthdate,attr"`
	Year      string `xml:"year,attr"`
}

type euCitizenship struct {
	CountryISO2 string `xml:"countryIso2Code,attr"`
}

type euEntity struct {
	LogicalID    string          `xml:"logicalId,attr"`
	SubjectType  euSubjectType   `xml:"subjectType"`
	Regulation   euRegulation    `xml:"regulation"`
	NameAliases  []euNameAlias   `xml:"nameAlias"`
	Birthdates   []euBirthdate   `xml:"birthdate"`
	Citizenships []euCitizenship `xml:"citizenship"`
}

func (p *euParser) Parse(ctx context.Context, r io.Reader, emit EmitFunc) error {
	roots := map[string]bool{"export": true}
	entries := map[string]bool{"sanctionEntity": true}

	return streamEntries(ctx, p.Source(), r, roots, entries, func(dec *xml.Decoder, se xml.StartElement) error {
		var raw euEntity
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return skip(emit, p.Source(), "", "sanctionEntity", "undecodable element: "+err.Error())
		}
		return p.emitEntity(emit, raw)
	})
}

func (p *euParser) emitEntity(emit EmitFunc, raw euEntity) error {
	if strings.TrimSpace(raw.LogicalID) == "" {
		return skip(emit, p.Source(), "", "logicalId", "missing identifier")
	}

	primaryIdx := -1
	for i, na := range raw.NameAliases {
		if strings.TrimSpace(na.WholeName) != "" {
			primaryIdx = i
			break
		}
	}
	if primaryIdx < 0 {
		return skip(emit, p.Source(), raw.LogicalID, "nameAlias", "no usable name")
	}

	rec, err := sanction.NewRecord(p.Source(), raw.LogicalID, euKind(raw.SubjectType.Code),
		raw.NameAliases[primaryIdx].WholeName)
	if err != nil {
		return skip(emit, p.Source(), raw.LogicalID, "nameAlias", "no usable name")
	}

	for i, na := range raw.NameAliases {
		if i == primaryIdx {
			continue
		}
		rec.AddAlias(na.WholeName, euAliasType(na.Strong))
	}

	for _, bd := range raw.Birthdates {
		for _, candidate := range []string{bd.Birthdate, bd.Year} {
			if strings.TrimSpace(candidate) == "" {
				continue
			}
			if pd, perr := types.ParsePartialDate(candidate); perr == nil && !pd.IsZero() {
				rec.DateOfBirth = &pd
				break
			}
		}
		if rec.DateOfBirth != nil {
			break
		}
	}
	for _, c := range raw.Citizenships {
		if code := strings.TrimSpace(c.CountryISO2); code != "" {
			rec.Nationality = sanction.NormalizeCountry(code)
			break
		}
	}
	rec.SetRawField("programme", raw.Regulation.Programme)
	rec.SetRawField("publication_date", raw.Regulation.PublicationDate)
	return emit(Entry{Record: rec})
}

func euKind(code string) types.RecordKind {
	if strings.EqualFold(strings.TrimSpace(code), "person") {
		return types.KindIndividual
	}
	return types.KindEntity
}

func euAliasType(strong string) types.AliasType {
	if strings.EqualFold(strings.TrimSpace(strong), "false") {
		return types.AliasWeakVariant
	}
	return types.AliasStrongVariant
}
