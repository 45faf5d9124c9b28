package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tautaras/review-crawler/internal/recipe"
	"github.com/tautaras/review-crawler/internal/reviews"
)

type pageMeta struct {
	productName string
	siteName    string
	tokenID     string
}

// extractReviews evaluates the recipe's field locators against every review
// container in the document. Each field is evaluated independently: a missing
// optional field (reviewer location, posted date) leaves it unset, while a
// missing required identity field (rating, title, description, reviewer)
// drops that single element without aborting its siblings. Returns the batch
// and the number of dropped elements.
func extractReviews(html string, rec recipe.Recipe, meta pageMeta) ([]reviews.RawReview, int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0
	}

	var batch []reviews.RawReview
	skipped := 0
	doc.Find(rec.Container).Each(func(_ int, el *goquery.Selection) {
		rating := fieldText(el, rec.Rating)
		title := fieldText(el, rec.Title)
		description := fieldText(el, rec.Description)
		reviewer := fieldText(el, rec.Reviewer)
		location := fieldText(el, rec.ReviewerLocation)
		postedAt := fieldText(el, rec.PostedAt)

		if rating == "" || title == "" || description == "" || reviewer == "" {
			skipped++
			return
		}

		batch = append(batch, reviews.RawReview{
			TokenID:     meta.tokenID,
			ProductName: meta.productName,
			SiteName:    meta.siteName,
			Rating:      reviews.Rating(rating),
			Title:       title,
			Description: description,
			PostedAt:    postedAt,
			Reviewer:    reviewer,
			ReviewerDetails: reviews.ReviewerDetails{
				Location: location,
			},
		})
	})
	return batch, skipped
}

func fieldText(el *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(el.Find(selector).First().Text())
}

// extractNextPage resolves the pagination locator's href against the current
// page URL. An absent locator or a present-but-empty href both terminate
// pagination by returning "".
func extractNextPage(html, currentURL, selector string) string {
	if selector == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	href, ok := doc.Find(selector).First().Attr("href")
	if !ok {
		return ""
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(currentURL)
	if err != nil {
		return href
	}
	next, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(next).String()
}

// deriveProductName pulls a human-readable product name out of the URL path.
// Amazon and Flipkart product URLs both carry a slugged name as the first
// path segment.
func deriveProductName(rawURL string) string {
	const fallback = "Product name not found"
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return fallback
	}
	slug := segments[0]
	if unescaped, err := url.PathUnescape(slug); err == nil {
		slug = unescaped
	}
	name := titleCase(strings.ReplaceAll(slug, "-", " "))
	if name == "" {
		return fallback
	}
	return name
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
