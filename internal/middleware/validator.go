package middleware

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

var (
	amendmentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	ufPattern          = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// ValidateAmendmentID accepts UUIDs and upstream style ids
// (alphanumeric, dash, underscore, max 64 chars).
func ValidateAmendmentID(id string) error {
	if id == "" {
		return fmt.Errorf("amendment ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err == nil {
		return nil
	}
	if !amendmentIDPattern.MatchString(id) {
		return fmt.Errorf("invalid amendment ID format")
	}
	return nil
}

// ValidateUF checks a two-letter state code.
func ValidateUF(uf string) error {
	if uf == "" {
		return nil // Optional field
	}
	if !ufPattern.MatchString(uf) {
		return fmt.Errorf("invalid UF: %s", uf)
	}
	return nil
}

// ValidateCoordinates rejects NaN and out of range pairs.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return fmt.Errorf("coordinates must be numbers")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude out of range: %v", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude out of range: %v", lon)
	}
	return nil
}

// ValidateTolerance clamps the geofence tolerance; zero keeps the default.
func ValidateTolerance(km float64) (float64, error) {
	if math.IsNaN(km) || km < 0 {
		return 0, fmt.Errorf("tolerance must be positive")
	}
	if km > 500 {
		return 0, fmt.Errorf("tolerance above 500 km")
	}
	return km, nil
}

// ValidateURL validates and sanitizes URLs
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (allowed: http, https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage validates the page number
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}
