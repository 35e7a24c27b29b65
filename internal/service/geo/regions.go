// internal/service/geo/regions.go

package geo

// RegionKeywords maps a region to words that identify it in free text
type RegionKeywords struct {
	Region   string
	Keywords []string
}

// DefaultRegionKeywords returns the keyword sets for Cameroon's ten regions.
// Compound regions list their "<name> region" forms so they outrank the
// shorter keywords of the region their name contains.
func DefaultRegionKeywords() []RegionKeywords {
	return []RegionKeywords{
		{Region: "Adamawa", Keywords: []string{"adamawa", "adamaoua"}},
		{Region: "Centre", Keywords: []string{"centre region", "center region", "région du centre", "region du centre"}},
		{Region: "East", Keywords: []string{"east region", "eastern region", "région de l'est", "region de l'est"}},
		{Region: "Far North", Keywords: []string{"far north", "far-north", "far north region", "extreme north", "extrême-nord", "extreme-nord"}},
		{Region: "Littoral", Keywords: []string{"littoral"}},
		{Region: "North", Keywords: []string{"north region", "northern region", "région du nord", "region du nord"}},
		{Region: "Northwest", Keywords: []string{"northwest", "north west", "north-west", "northwest region", "north west region", "north-west region", "northwestern region", "nord-ouest"}},
		{Region: "South", Keywords: []string{"south region", "southern region", "région du sud", "region du sud"}},
		{Region: "Southwest", Keywords: []string{"southwest", "south west", "south-west", "southwest region", "south west region", "south-west region", "southwestern region", "sud-ouest"}},
		{Region: "West", Keywords: []string{"west region", "western region", "région de l'ouest", "region de l'ouest"}},
	}
}
