package geo

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchAreas_CityWithDistricts(t *testing.T) {
	areas := SearchAreas("Praha")
	require.Len(t, areas, 15)
	assert.Equal(t, "Praha 1", areas[0])
	assert.Equal(t, "Praha 15", areas[14])
}

func TestSearchAreas_SmallCity(t *testing.T) {
	assert.Equal(t, []string{"Liberec"}, SearchAreas("Liberec"))
}

func TestSearchAreas_UnknownCity(t *testing.T) {
	// Unknown cities fall back to a single area so ad-hoc scrapes work.
	assert.Equal(t, []string{"Kutná Hora"}, SearchAreas("Kutná Hora"))
}

func TestSearchAreas_ReturnsCopy(t *testing.T) {
	areas := SearchAreas("Brno")
	areas[0] = "mutated"
	assert.Equal(t, "Brno-střed", SearchAreas("Brno")[0])
}

func TestCities_SortedAndComplete(t *testing.T) {
	cities := Cities()
	require.Len(t, cities, 14)
	assert.True(t, sort.StringsAreSorted(cities))
	assert.Contains(t, cities, "Praha")
	assert.Contains(t, cities, "Jihlava")
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("Ostrava"))
	assert.True(t, Known("Pardubice"))
	assert.False(t, Known("Wien"))
}

func TestEstimateSearches(t *testing.T) {
	est := EstimateSearches("Praha", 1000)
	assert.Equal(t, 15, est.TotalAreas)
	assert.Equal(t, 11, est.AreasToSearch)
	assert.Equal(t, 66, est.ResultsPerArea)

	single := EstimateSearches("Zlín", 200)
	assert.Equal(t, 1, single.TotalAreas)
	assert.Equal(t, 1, single.AreasToSearch)
	assert.Equal(t, 100, single.ResultsPerArea)
}
