package generation

import (
	"strings"

	"github.com/redmonkez12/cicero/internal/apperr"
)

var Months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var Durations = []string{"One week", "Two weeks", "Three weeks", "Four weeks"}

var Interests = []string{
	"History, Culture and Arts",
	"Outdoor and Nature",
	"Food and Dining",
	"Shopping",
	"Entertainment and Nightlife",
	"Sports and Adventure",
	"Religious and Spiritual Interests",
	"Family-Friendly Activities",
	"Wellness and Relaxation",
}

// Older clients post numeric duration labels.
var durationAliases = map[string]string{
	"1 week":  "One week",
	"2 weeks": "Two weeks",
	"3 weeks": "Three weeks",
	"4 weeks": "Four weeks",
}

const msgTampered = "do not mess with the code please"

// Params are the caller's choices for one itinerary.
type Params struct {
	Destination string   `json:"destination"`
	Month       string   `json:"month"`
	Duration    string   `json:"duration"`
	Interests   []string `json:"interests"`
}

// Validate checks p against the allowed values and normalises it in place:
// the destination is trimmed, duration aliases are replaced and repeated
// interests are collapsed.
func (p *Params) Validate() error {
	p.Destination = strings.TrimSpace(p.Destination)
	if p.Destination == "" {
		return apperr.New(apperr.KindValidation, "you must input a destination")
	}

	if !contains(Months, p.Month) {
		return apperr.New(apperr.KindValidation, msgTampered)
	}

	if canonical, ok := durationAliases[p.Duration]; ok {
		p.Duration = canonical
	}
	if !contains(Durations, p.Duration) {
		return apperr.New(apperr.KindValidation, msgTampered)
	}

	if len(p.Interests) == 0 {
		return apperr.New(apperr.KindValidation, "you must select at least one interest")
	}
	seen := make(map[string]bool, len(p.Interests))
	unique := p.Interests[:0:0]
	for _, interest := range p.Interests {
		if !contains(Interests, interest) {
			return apperr.New(apperr.KindValidation, msgTampered)
		}
		if seen[interest] {
			continue
		}
		seen[interest] = true
		unique = append(unique, interest)
	}
	p.Interests = unique

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
