package source

import (
	"fmt"
	"strings"
)

var validSorts = []string{"hot", "new", "top", "rising"}
var validTimeFilters = []string{"hour", "day", "week", "month", "year", "all"}

// validateScrapeParams checks sort and timeFilter against the enums both
// provider variants accept before spending a request on them.
func validateScrapeParams(sort, timeFilter string) error {
	if err := validateEnum(sort, validSorts, "sort"); err != nil {
		return err
	}
	if timeFilter == "" {
		return nil
	}
	return validateEnum(timeFilter, validTimeFilters, "time_filter")
}

// validateEnum checks if a value is in a list of valid values
// Returns nil if valid, otherwise returns an error with a descriptive message
func validateEnum(value string, validValues []string, fieldName string) error {
	for _, v := range validValues {
		if value == v {
			return nil
		}
	}

	// Format valid values list for error message
	quotedValues := make([]string, len(validValues))
	for i, v := range validValues {
		quotedValues[i] = fmt.Sprintf("'%s'", v)
	}
	validList := strings.Join(quotedValues, ", ")

	return fmt.Errorf("invalid %s: %s (must be one of: %s)", fieldName, value, validList)
}
