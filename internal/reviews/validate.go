package reviews

import (
	"fmt"
	"regexp"
)

// Filter value policies for the query path. Values are validated before they
// ever reach a store query, guarding against injection and oversized inputs.
var (
	tokenIDPattern  = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
	freeTextPattern = regexp.MustCompile(`^[\w\s\-_]+$`)
)

const maxFreeTextLen = 100

// ValidateTokenID enforces the 64-hex-character token format.
func ValidateTokenID(tokenID string) error {
	if !tokenIDPattern.MatchString(tokenID) {
		return fmt.Errorf("invalid token_id format")
	}
	return nil
}

// ValidateFreeText enforces the length and character-class policy for
// free-text filters such as product_name, site_name, and reviewer.
func ValidateFreeText(field, value string) error {
	if len(value) > maxFreeTextLen {
		return fmt.Errorf("%s too long", field)
	}
	if !freeTextPattern.MatchString(value) {
		return fmt.Errorf("invalid %s format", field)
	}
	return nil
}

// Validate checks every non-empty filter against its policy.
func (f SearchFilters) Validate() error {
	if f.ProductName != "" {
		if err := ValidateFreeText("product_name", f.ProductName); err != nil {
			return err
		}
	}
	if f.SiteName != "" {
		if err := ValidateFreeText("site_name", f.SiteName); err != nil {
			return err
		}
	}
	if f.Reviewer != "" {
		if err := ValidateFreeText("reviewer", f.Reviewer); err != nil {
			return err
		}
	}
	if f.TokenID != "" {
		if err := ValidateTokenID(f.TokenID); err != nil {
			return err
		}
	}
	return nil
}
