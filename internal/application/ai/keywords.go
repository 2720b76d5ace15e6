package ai

import (
	"regexp"
	"strings"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

const categoryOther = "Outros"

// ordered so ties resolve the same way every run
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"Saúde", []string{"saude", "hospital", "posto", "ambulancia", "medicamento", "equipamento medico", "unidade basica"}},
	{"Educação", []string{"educacao", "escola", "creche", "material didatico", "reforma escolar", "merenda"}},
	{"Infraestrutura", []string{"pavimentacao", "asfalto", "ponte", "estrada", "calcada", "drenagem", "iluminacao"}},
	{"Assistência Social", []string{"assistencia", "cesta basica", "bolsa", "beneficio", "programa social"}},
	{"Segurança", []string{"seguranca", "policia", "viaturas", "cameras", "monitoramento"}},
	{"Meio Ambiente", []string{"meio ambiente", "saneamento", "agua", "esgoto", "coleta de lixo"}},
	{"Cultura", []string{"cultura", "biblioteca", "teatro", "evento cultural", "patrimonio"}},
	{"Esporte", []string{"esporte", "quadra", "campo", "ginasio", "equipamento esportivo"}},
}

var locationPattern = regexp.MustCompile(`(?i)\b(rua|avenida|bairro|distrito)\s+[\p{L}\d ]+`)

const maxMainObject = 100

// ClassifyByKeywords picks the category with the most keyword hits.
func ClassifyByKeywords(objective string) amendments.Classification {
	folded := amendments.Fold(objective)
	res := amendments.Classification{Category: categoryOther, Source: "keywords"}

	best := 0
	for _, c := range categoryKeywords {
		var hits []string
		for _, w := range c.words {
			if strings.Contains(folded, w) {
				hits = append(hits, w)
			}
		}
		if len(hits) > best {
			best = len(hits)
			res.Category = c.category
			res.Keywords = hits
		}
	}

	main := strings.TrimSpace(strings.SplitN(objective, ".", 2)[0])
	if r := []rune(main); len(r) > maxMainObject {
		main = string(r[:maxMainObject]) + "..."
	}
	res.MainObject = main

	if m := locationPattern.FindString(objective); m != "" {
		res.Location = strings.TrimSpace(m)
	}
	return res
}

func knownCategory(c string) (string, bool) {
	f := amendments.Fold(c)
	for _, k := range categoryKeywords {
		if amendments.Fold(k.category) == f {
			return k.category, true
		}
	}
	if f == amendments.Fold(categoryOther) {
		return categoryOther, true
	}
	return "", false
}
