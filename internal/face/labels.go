package face

import "strings"

// GenderLabels is indexed by the gender network's output.
var GenderLabels = []string{"Male", "Female"}

// AgeLabels is indexed by the age network's output, youngest bracket first.
var AgeLabels = []string{
	"(0-2)",
	"(4-6)",
	"(8-12)",
	"(15-20)",
	"(25-32)",
	"(38-43)",
	"(48-53)",
	"(60-100)",
}

// Result is the classification of a single face.
type Result struct {
	Gender string
	Age    string
}

// Text is the overlay label, e.g. "Female, (25-32)".
func (r Result) Text() string {
	return r.Gender + ", " + r.Age
}

// AgeRange returns the age bracket without its parentheses, e.g. "25-32".
func (r Result) AgeRange() string {
	return strings.TrimSuffix(strings.TrimPrefix(r.Age, "("), ")")
}
