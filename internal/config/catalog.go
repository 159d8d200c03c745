package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/covid-stats-etl/internal/domain"
)

// DefaultFeedURL is the public all-states endpoint.
const DefaultFeedURL = "https://covidtracking.com/api/states"

// Catalog lists the upstream endpoints. It is read from SOURCES_FILE:
//
//	feed_url: https://covidtracking.com/api/states
//	regions:
//	  - region: MN
//	    name: Minnesota
//	    url: https://www.health.state.mn.us/diseases/coronavirus/situation.html
type Catalog struct {
	FeedURL string                `yaml:"feed_url"`
	Regions []domain.RegionSource `yaml:"regions"`
}

func defaultCatalog() Catalog {
	return Catalog{
		FeedURL: DefaultFeedURL,
		Regions: []domain.RegionSource{
			{Code: "MN", Name: "Minnesota", URL: "https://www.health.state.mn.us/diseases/coronavirus/situation.html"},
		},
	}
}

// LoadCatalog reads and validates a YAML catalog. A missing feed_url falls
// back to the public feed.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.FeedURL == "" {
		c.FeedURL = DefaultFeedURL
	}
	if len(c.Regions) == 0 {
		return Catalog{}, errors.New("no regions listed")
	}

	seen := make(map[string]bool, len(c.Regions))
	for i := range c.Regions {
		r := &c.Regions[i]
		r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
		if r.Code == "" || r.URL == "" {
			return Catalog{}, fmt.Errorf("regions[%d]: region and url are required", i)
		}
		if seen[r.Code] {
			return Catalog{}, fmt.Errorf("regions[%d]: duplicate region %s", i, r.Code)
		}
		seen[r.Code] = true
		if r.Name == "" {
			r.Name = r.Code
		}
	}
	return c, nil
}
