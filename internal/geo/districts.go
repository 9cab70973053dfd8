// Package geo holds the Czech city and district catalogue used to
// partition map searches into areas small enough for the ~120 result
// ceiling a single map query returns.
package geo

import (
	_ "embed"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed districts.yaml
var districtsYAML []byte

type catalogue struct {
	Districts map[string][]string `yaml:"districts"`
	Cities    []string            `yaml:"cities"`
}

var catalog catalogue

func init() {
	if err := yaml.Unmarshal(districtsYAML, &catalog); err != nil {
		panic(eris.Wrap(err, "geo: parse districts catalogue"))
	}
}

// SearchAreas returns the areas to scrape for a city. Cities with a
// district breakdown return their districts; everything else is
// searched as one area under the city name. Unknown cities are treated
// like small cities, so callers can scrape places outside the catalogue.
func SearchAreas(city string) []string {
	if areas, ok := catalog.Districts[city]; ok {
		out := make([]string, len(areas))
		copy(out, areas)
		return out
	}
	return []string{city}
}

// Cities returns every city in the catalogue, sorted.
func Cities() []string {
	cities := make([]string, 0, len(catalog.Districts)+len(catalog.Cities))
	for city := range catalog.Districts {
		cities = append(cities, city)
	}
	cities = append(cities, catalog.Cities...)
	sort.Strings(cities)
	return cities
}

// Known reports whether the city is in the catalogue.
func Known(city string) bool {
	if _, ok := catalog.Districts[city]; ok {
		return true
	}
	for _, c := range catalog.Cities {
		if c == city {
			return true
		}
	}
	return false
}

// Estimate describes the expected effort of scraping a city.
type Estimate struct {
	City            string
	TotalAreas      int
	AreasToSearch   int
	ResultsPerArea  int
	EstimatedTotal  int
	EstimatedMinute int
}

// EstimateSearches sizes a scrape of a city against a desired result
// count, assuming roughly 100 results per area and 3 minutes each.
func EstimateSearches(city string, maxResults int) Estimate {
	areas := SearchAreas(city)
	numAreas := len(areas)

	perArea := maxResults
	if numAreas > 0 {
		perArea = maxResults / numAreas
		if perArea > 100 {
			perArea = 100
		}
	}

	needed := maxResults/100 + 1
	if needed > numAreas {
		needed = numAreas
	}

	return Estimate{
		City:            city,
		TotalAreas:      numAreas,
		AreasToSearch:   needed,
		ResultsPerArea:  perArea,
		EstimatedTotal:  needed * perArea,
		EstimatedMinute: needed * 3,
	}
}
