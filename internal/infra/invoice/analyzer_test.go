package invoice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JadsonMattos/vigia-pix/internal/domain/ai"
	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

const sampleNFe = `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe Id="NFe35250112345678000190550010000012341000012345" versao="4.00">
      <ide><nNF>1234</nNF><serie>1</serie><dhEmi>2025-01-15T10:30:00-03:00</dhEmi></ide>
      <emit><CNPJ>12345678000190</CNPJ><xNome>Hospitalar Ltda</xNome></emit>
      <dest><CNPJ>98765432000110</CNPJ><xNome>Prefeitura de Cuiabá</xNome></dest>
      <det nItem="1"><prod><xProd>Ambulância tipo A</xProd><NCM>87031000</NCM><CFOP>5102</CFOP><qCom>2.0000</qCom><vUnCom>250000.00</vUnCom><vProd>500000.00</vProd></prod></det>
      <det nItem="2"><prod><xProd>Equipamento hospitalar</xProd><qCom>1</qCom><vUnCom>80000.00</vUnCom><vProd>80000.00</vProd></prod></det>
      <det nItem="3"><prod><xProd>Cadeira gamer</xProd><qCom>4</qCom><vUnCom>1500.00</vUnCom><vProd>6000.00</vProd></prod></det>
      <total><ICMSTot><vNF>586000.00</vNF></ICMSTot></total>
    </infNFe>
  </NFe>
</nfeProc>`

func TestParse(t *testing.T) {
	p, err := Parse(strings.NewReader(sampleNFe))
	require.NoError(t, err)
	assert.Equal(t, "1234", p.Number)
	assert.Equal(t, "1", p.Series)
	assert.Equal(t, 586000.0, p.Total)
	assert.Equal(t, "Hospitalar Ltda", p.IssuerName)
	assert.Equal(t, "98765432000110", p.BuyerCNPJ)
	require.Len(t, p.Items, 3)
	assert.Equal(t, "Ambulância tipo A", p.Items[0].Description)
	assert.Equal(t, 2.0, p.Items[0].Quantity)
	assert.Equal(t, "87031000", p.Items[0].NCM)
	require.NotNil(t, p.IssuedAt)
	assert.Equal(t, 2025, p.IssuedAt.Year())
}

func TestParse_NotNFe(t *testing.T) {
	_, err := Parse(strings.NewReader(`<root><a/></root>`))
	assert.ErrorIs(t, err, ErrNotNFe)

	_, err = Parse(strings.NewReader(`<infNFe><ide>`))
	assert.Error(t, err)
}

func TestCompareKeywords(t *testing.T) {
	cmp := CompareKeywords("Compra de ambulância", []string{"Ambulancia UTI", "Cadeira"})
	// "compra" is missing, "ambulancia" matches
	assert.Equal(t, 50.0, cmp.MatchScore)
	assert.Equal(t, []string{"Ambulancia UTI"}, cmp.MatchedItems)
	assert.Equal(t, []string{"Cadeira"}, cmp.UnmatchedItems)

	assert.Equal(t, 0.0, CompareKeywords("de a", []string{"x"}).MatchScore)
}

type fakeComparer struct {
	cmp ai.ItemComparison
	err error
}

func (f fakeComparer) CompareItems(context.Context, string, []string) (ai.ItemComparison, error) {
	return f.cmp, f.err
}

func newAnalyzer(cmp Comparer, now time.Time) *Analyzer {
	a := NewAnalyzer(cmp, nil)
	a.Now = func() time.Time { return now }
	return a
}

func TestAnalyzeInvoice_Keywords(t *testing.T) {
	a := newAnalyzer(nil, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	doc := amendments.Document{ID: "doc-1", Kind: amendments.DocumentInvoice, XMLContent: sampleNFe}

	res, err := a.AnalyzeInvoice(context.Background(), doc, "Ambulância e equipamento hospitalar")
	require.NoError(t, err)
	assert.Equal(t, "keywords", res.Method)
	assert.Equal(t, "doc-1", res.DocumentID)
	assert.Equal(t, 100.0, res.MatchScore)
	assert.Equal(t, "high", res.Alignment)
	assert.Len(t, res.MatchedItems, 2)
	assert.Empty(t, res.Inconsistencies)
}

func TestAnalyzeInvoice_Inconsistencies(t *testing.T) {
	a := newAnalyzer(nil, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	doc := amendments.Document{ID: "doc-1", XMLContent: strings.Replace(sampleNFe, "586000.00", "1586000.00", 1)}

	res, err := a.AnalyzeInvoice(context.Background(), doc, "Pavimentação de estrada vicinal")
	require.NoError(t, err)
	assert.Equal(t, "low", res.Alignment)

	var kinds []string
	for _, i := range res.Inconsistencies {
		kinds = append(kinds, i.Kind)
	}
	assert.Equal(t, []string{"low_match_score", "unmatched_items", "high_value", "old_invoice"}, kinds)
}

func TestAnalyzeInvoice_SemanticComparer(t *testing.T) {
	a := newAnalyzer(fakeComparer{cmp: ai.ItemComparison{MatchScore: 45, MatchedItems: []string{"a"}}}, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	res, err := a.AnalyzeInvoice(context.Background(), amendments.Document{ID: "d", XMLContent: sampleNFe}, "x")
	require.NoError(t, err)
	assert.Equal(t, "openai", res.Method)
	assert.Equal(t, "medium", res.Alignment)

	a = newAnalyzer(fakeComparer{err: errors.New("down")}, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	res, err = a.AnalyzeInvoice(context.Background(), amendments.Document{ID: "d", XMLContent: sampleNFe}, "ambulancia")
	require.NoError(t, err)
	assert.Equal(t, "keywords", res.Method)
}

func TestAnalyzeInvoice_BadXML(t *testing.T) {
	a := newAnalyzer(nil, time.Now())
	_, err := a.AnalyzeInvoice(context.Background(), amendments.Document{ID: "d", XMLContent: "<nope/>"}, "x")
	assert.ErrorIs(t, err, ErrNotNFe)
}
