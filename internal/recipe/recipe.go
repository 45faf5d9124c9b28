// Package recipe holds the per-platform extraction recipes.
package recipe

import (
	"fmt"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// Recipe is the ordered set of element locators (CSS selectors) describing
// how to find review containers, fields, and the pagination control on one
// platform's pages.
type Recipe struct {
	// Container locates each candidate review element.
	Container string `mapstructure:"container"`
	// Field locators are evaluated relative to a container element.
	Rating           string `mapstructure:"rating"`
	Title            string `mapstructure:"title"`
	Description      string `mapstructure:"description"`
	Reviewer         string `mapstructure:"reviewer"`
	ReviewerLocation string `mapstructure:"reviewer_location"`
	PostedAt         string `mapstructure:"posted_at"`
	// Pagination locates the next-page link; its href drives continuation.
	Pagination string `mapstructure:"pagination"`
	// RenderJS selects the headless renderer over the static fetcher.
	RenderJS bool `mapstructure:"render_js"`
}

// Registry maps platform identifiers to recipes.
type Registry struct {
	recipes map[string]Recipe
}

// NewRegistry builds a registry preloaded with the built-in recipes,
// overlaid with any overrides (typically from configuration).
func NewRegistry(overrides map[string]Recipe) *Registry {
	recipes := map[string]Recipe{
		"amazon": {
			Container:        `div[data-hook="review"]`,
			Rating:           `i[data-hook="review-star-rating"] span.a-icon-alt`,
			Title:            `a[data-hook="review-title"] > span:last-child`,
			Description:      `span[data-hook="review-body"] span`,
			Reviewer:         `span.a-profile-name`,
			ReviewerLocation: `span[data-hook="review-date"]`,
			PostedAt:         `span[data-hook="review-date"]`,
			Pagination:       `li.a-last a`,
			RenderJS:         true,
		},
		"flipkart": {
			Container:        `div.col.EPCmJX`,
			Rating:           `div.XQDdHH`,
			Title:            `p.z9E0IG`,
			Description:      `div.ZmyHeo div div`,
			Reviewer:         `p.AwS1CA`,
			ReviewerLocation: `p.MztJPv span:nth-child(2)`,
			PostedAt:         `p._2NsDsF:last-child`,
			Pagination:       `a._9QVEpD:last-child`,
			RenderJS:         true,
		},
	}
	for platform, r := range overrides {
		recipes[platform] = r
	}
	return &Registry{recipes: recipes}
}

// Lookup resolves the recipe for a platform. Absence is fatal for a job and
// signals ErrRecipeNotFound.
func (g *Registry) Lookup(platform string) (Recipe, error) {
	r, ok := g.recipes[platform]
	if !ok {
		return Recipe{}, fmt.Errorf("platform %q: %w", platform, reviews.ErrRecipeNotFound)
	}
	return r, nil
}

// Platforms lists the registered platform identifiers.
func (g *Registry) Platforms() []string {
	out := make([]string, 0, len(g.recipes))
	for platform := range g.recipes {
		out = append(out, platform)
	}
	return out
}
