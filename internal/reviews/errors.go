package reviews

import "errors"

// Validation errors surfaced to API callers as 4xx; never retried.
var (
	// ErrInvalidURL indicates the URL failed structural validation.
	ErrInvalidURL = errors.New("invalid url")
	// ErrUnsafeScheme indicates a scheme other than https.
	ErrUnsafeScheme = errors.New("unsafe url scheme")
	// ErrUnsafeURL indicates the reputation service flagged the URL.
	ErrUnsafeURL = errors.New("url flagged as unsafe")
	// ErrUnsupportedPlatform indicates no platform mapping for the host.
	ErrUnsupportedPlatform = errors.New("unsupported platform url")
)

var (
	// ErrRecipeNotFound is fatal for a job; retrying cannot change the outcome.
	ErrRecipeNotFound = errors.New("extraction recipe not found")
	// ErrPageTimeout indicates the review container did not materialize
	// within the render wait budget.
	ErrPageTimeout = errors.New("page render timed out")
	// ErrNotFound is returned by stores for missing jobs or records.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by DocumentStore.Create on an id conflict.
	ErrAlreadyExists = errors.New("document already exists")
)
