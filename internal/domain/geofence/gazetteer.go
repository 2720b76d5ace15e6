package geofence

import (
	"strings"
	"sync"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

type place struct {
	name   string
	coords amendments.Coordinates
}

// state capitals, used as the reference point for each UF
var capitals = map[string]place{
	"AC": {"Rio Branco", amendments.Coordinates{Lat: -9.9747, Lon: -67.8076}},
	"AL": {"Maceió", amendments.Coordinates{Lat: -9.6658, Lon: -35.7353}},
	"AP": {"Macapá", amendments.Coordinates{Lat: 0.0349, Lon: -51.0694}},
	"AM": {"Manaus", amendments.Coordinates{Lat: -3.1190, Lon: -60.0217}},
	"BA": {"Salvador", amendments.Coordinates{Lat: -12.9714, Lon: -38.5014}},
	"CE": {"Fortaleza", amendments.Coordinates{Lat: -3.7319, Lon: -38.5267}},
	"DF": {"Brasília", amendments.Coordinates{Lat: -15.7939, Lon: -47.8828}},
	"ES": {"Vitória", amendments.Coordinates{Lat: -20.3155, Lon: -40.3128}},
	"GO": {"Goiânia", amendments.Coordinates{Lat: -16.6869, Lon: -49.2648}},
	"MA": {"São Luís", amendments.Coordinates{Lat: -2.5307, Lon: -44.3068}},
	"MT": {"Cuiabá", amendments.Coordinates{Lat: -15.6014, Lon: -56.0979}},
	"MS": {"Campo Grande", amendments.Coordinates{Lat: -20.4697, Lon: -54.6201}},
	"MG": {"Belo Horizonte", amendments.Coordinates{Lat: -19.9167, Lon: -43.9345}},
	"PA": {"Belém", amendments.Coordinates{Lat: -1.4558, Lon: -48.4902}},
	"PB": {"João Pessoa", amendments.Coordinates{Lat: -7.1195, Lon: -34.8450}},
	"PR": {"Curitiba", amendments.Coordinates{Lat: -25.4284, Lon: -49.2733}},
	"PE": {"Recife", amendments.Coordinates{Lat: -8.0476, Lon: -34.8770}},
	"PI": {"Teresina", amendments.Coordinates{Lat: -5.0892, Lon: -42.8019}},
	"RJ": {"Rio de Janeiro", amendments.Coordinates{Lat: -22.9068, Lon: -43.1729}},
	"RN": {"Natal", amendments.Coordinates{Lat: -5.7945, Lon: -35.2110}},
	"RS": {"Porto Alegre", amendments.Coordinates{Lat: -30.0346, Lon: -51.2177}},
	"RO": {"Porto Velho", amendments.Coordinates{Lat: -8.7612, Lon: -63.9004}},
	"RR": {"Boa Vista", amendments.Coordinates{Lat: 2.8235, Lon: -60.6758}},
	"SC": {"Florianópolis", amendments.Coordinates{Lat: -27.5954, Lon: -48.5480}},
	"SP": {"São Paulo", amendments.Coordinates{Lat: -23.5505, Lon: -46.6333}},
	"SE": {"Aracaju", amendments.Coordinates{Lat: -10.9472, Lon: -37.0731}},
	"TO": {"Palmas", amendments.Coordinates{Lat: -10.2491, Lon: -48.3243}},
}

// Gazetteer maps municipality/UF pairs to a reference point. It knows every
// state capital and whatever was registered with Add.
type Gazetteer struct {
	mu sync.RWMutex
	// FallbackToCapital answers with the UF capital when the municipality
	// is unknown.
	FallbackToCapital bool
	places            map[string]amendments.Coordinates
}

func NewGazetteer(fallbackToCapital bool) *Gazetteer {
	g := &Gazetteer{
		FallbackToCapital: fallbackToCapital,
		places:            make(map[string]amendments.Coordinates, len(capitals)),
	}
	for uf, p := range capitals {
		g.places[key(p.name, uf)] = p.coords
	}
	return g
}

// Add registers or replaces a municipality.
func (g *Gazetteer) Add(municipality, uf string, c amendments.Coordinates) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.places[key(municipality, uf)] = c
}

// Lookup returns the reference point for a municipality.
func (g *Gazetteer) Lookup(municipality, uf string) (amendments.Coordinates, bool) {
	uf = strings.ToUpper(strings.TrimSpace(uf))
	g.mu.RLock()
	c, ok := g.places[key(municipality, uf)]
	g.mu.RUnlock()
	if ok {
		return c, true
	}
	if !g.FallbackToCapital {
		return amendments.Coordinates{}, false
	}
	p, ok := capitals[uf]
	return p.coords, ok
}

func key(municipality, uf string) string {
	return amendments.Fold(municipality) + "/" + strings.ToUpper(strings.TrimSpace(uf))
}
