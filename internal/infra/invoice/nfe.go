package invoice

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

// ErrNotNFe is returned when the document has no infNFe element.
var ErrNotNFe = errors.New("document is not an NF-e")

type infNFe struct {
	Ide struct {
		Number   string `xml:"nNF"`
		Series   string `xml:"serie"`
		IssuedAt string `xml:"dhEmi"`
		// NF-e 2.0 only carries the date
		IssuedOn string `xml:"dEmi"`
	} `xml:"ide"`
	Emit party `xml:"emit"`
	Dest party `xml:"dest"`
	Det  []struct {
		Prod struct {
			Description string `xml:"xProd"`
			Quantity    string `xml:"qCom"`
			UnitValue   string `xml:"vUnCom"`
			TotalValue  string `xml:"vProd"`
			NCM         string `xml:"NCM"`
			CFOP        string `xml:"CFOP"`
		} `xml:"prod"`
	} `xml:"det"`
	Total struct {
		ICMSTot struct {
			Value string `xml:"vNF"`
		} `xml:"ICMSTot"`
	} `xml:"total"`
}

type party struct {
	Name string `xml:"xNome"`
	CNPJ string `xml:"CNPJ"`
}

// Parsed is the subset of an NF-e the analyzer needs.
type Parsed struct {
	Number     string
	Series     string
	IssuedAt   *time.Time
	Total      float64
	IssuerName string
	IssuerCNPJ string
	BuyerName  string
	BuyerCNPJ  string
	Items      []amendments.InvoiceItem
}

// Parse reads an NF-e, with or without the nfeProc envelope. Namespaces are
// ignored.
func Parse(r io.Reader) (*Parsed, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, ErrNotNFe
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read xml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "infNFe" {
			continue
		}
		var inf infNFe
		if err := dec.DecodeElement(&inf, &se); err != nil {
			return nil, fmt.Errorf("failed to decode infNFe: %w", err)
		}
		return inf.parsed(), nil
	}
}

func (inf *infNFe) parsed() *Parsed {
	p := &Parsed{
		Number:     strings.TrimSpace(inf.Ide.Number),
		Series:     strings.TrimSpace(inf.Ide.Series),
		IssuedAt:   parseIssued(inf.Ide.IssuedAt, inf.Ide.IssuedOn),
		Total:      num(inf.Total.ICMSTot.Value),
		IssuerName: strings.TrimSpace(inf.Emit.Name),
		IssuerCNPJ: strings.TrimSpace(inf.Emit.CNPJ),
		BuyerName:  strings.TrimSpace(inf.Dest.Name),
		BuyerCNPJ:  strings.TrimSpace(inf.Dest.CNPJ),
	}
	sum := 0.0
	for _, d := range inf.Det {
		it := amendments.InvoiceItem{
			Description: strings.TrimSpace(d.Prod.Description),
			Quantity:    num(d.Prod.Quantity),
			UnitValue:   num(d.Prod.UnitValue),
			TotalValue:  num(d.Prod.TotalValue),
			NCM:         strings.TrimSpace(d.Prod.NCM),
			CFOP:        strings.TrimSpace(d.Prod.CFOP),
		}
		sum += it.TotalValue
		p.Items = append(p.Items, it)
	}
	if p.Total == 0 {
		p.Total = sum
	}
	return p
}

func num(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIssued(dateTime, date string) *time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(dateTime)); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", strings.TrimSpace(dateTime)); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(date)); err == nil {
		return &t
	}
	return nil
}
