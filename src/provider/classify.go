package provider

import (
	"fmt"
	"strings"
)

// Category is the retry taxonomy remote failures are mapped into.
type Category string

const (
	CategoryRateLimited      Category = "rate_limited"
	CategoryNotFound         Category = "not_found"
	CategoryPermissionDenied Category = "permission_denied"
	CategoryNetworkError     Category = "network_error"
	CategoryUnknown          Category = "unknown"
)

// Classification is the result of classifying a remote failure.
type Classification struct {
	Category  Category
	Message   string
	Retryable bool

	err error
}

func (c *Classification) Error() string {
	return fmt.Sprintf("%s: %s", c.Category, c.Message)
}

func (c *Classification) Unwrap() error {
	return c.err
}

// Classifier maps an arbitrary failure into a Classification.
// Implementations must be total: every input yields a result.
type Classifier interface {
	Classify(err error) Classification
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(err error) Classification

func (f ClassifierFunc) Classify(err error) Classification {
	return f(err)
}

// keywordRule maps message fragments to a category. Rules are checked in
// order, so more specific categories must come before network_error.
type keywordRule struct {
	category  Category
	retryable bool
	keywords  []string
}

var keywordRules = []keywordRule{
	{CategoryRateLimited, true, []string{"rate limit", "429", "too many requests"}},
	{CategoryNotFound, false, []string{"not found", "404"}},
	{CategoryPermissionDenied, false, []string{"permission", "401", "403", "unauthorized", "forbidden", "authentication"}},
	{CategoryNetworkError, true, []string{
		"econnrefused", "enotfound", "network", "connection refused", "connection reset",
		"no such host", "timeout", "deadline exceeded", "eof",
	}},
}

// KeywordClassifier classifies failures by case-insensitive keyword
// matching on the error message. It never inspects the error's type, so
// it behaves the same for wrapped, proxied and foreign errors.
type KeywordClassifier struct{}

// Classify implements Classifier. Unmatched messages are unknown and retryable.
func (KeywordClassifier) Classify(err error) Classification {
	if err == nil {
		return Classification{Category: CategoryUnknown, Retryable: true}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return Classification{
					Category:  rule.category,
					Message:   msg,
					Retryable: rule.retryable,
					err:       err,
				}
			}
		}
	}

	return Classification{
		Category:  CategoryUnknown,
		Message:   msg,
		Retryable: true,
		err:       err,
	}
}

// DefaultClassifier is used when callers do not supply their own.
var DefaultClassifier Classifier = KeywordClassifier{}

// Classify classifies err with DefaultClassifier.
func Classify(err error) Classification {
	return DefaultClassifier.Classify(err)
}
