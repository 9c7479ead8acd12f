// Package validation checks user input arriving through the API.
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	k8svalidation "k8s.io/apimachinery/pkg/util/validation"

	"github.com/OldStager01/generalscaler/pkg/models"
)

var ErrInvalidInput = errors.New("invalid input")

// SanitizeString trims whitespace and drops control characters.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)

	var builder strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// ValidateTarget accepts Kubernetes object names: the namespace must be a
// DNS-1123 label and the name a DNS-1123 subdomain.
func ValidateTarget(namespace, name string) (models.ScalingTarget, error) {
	namespace = SanitizeString(namespace)
	name = SanitizeString(name)

	if msgs := k8svalidation.IsDNS1123Label(namespace); len(msgs) > 0 {
		return models.ScalingTarget{}, fmt.Errorf("%w: namespace %q: %s", ErrInvalidInput, namespace, strings.Join(msgs, "; "))
	}
	if msgs := k8svalidation.IsDNS1123Subdomain(name); len(msgs) > 0 {
		return models.ScalingTarget{}, fmt.Errorf("%w: name %q: %s", ErrInvalidInput, name, strings.Join(msgs, "; "))
	}
	return models.NewTarget(namespace, name), nil
}

// ValidateLimit parses a page size, applying def when raw is empty.
func ValidateLimit(raw string, def, maxLimit int) (int, error) {
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrInvalidInput)
	}
	if limit > maxLimit {
		return maxLimit, nil
	}
	return limit, nil
}
