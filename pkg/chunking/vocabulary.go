package chunking

import "regexp"

// Vocabulary holds the ordered pattern lists used to classify chunks.
// The lists are configuration data: swapping them changes what counts as
// boilerplate without touching the scoring code.
type Vocabulary struct {
	DisclaimerPatterns []string
	BusinessPatterns   []string

	compiled   bool
	disclaimer []*regexp.Regexp
	business   []*regexp.Regexp
}

// DefaultVocabulary targets financial filings and earnings material.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		DisclaimerPatterns: []string{
			`forward-looking statements?`,
			`safe harbou?r`,
			`no (?:representation|warranty|guarantee)`,
			`past performance`,
			`not (?:an offer|investment advice)`,
			`all rights reserved`,
			`legal disclaimer`,
			`confidential(?:ity)? notice`,
			`subject to risks and uncertainties`,
			`undue reliance`,
		},
		BusinessPatterns: []string{
			`revenue`,
			`ebitda`,
			`gross margin`,
			`operating (?:income|expenses?|margin)`,
			`net income`,
			`cash flow`,
			`earnings`,
			`guidance`,
			`growth`,
			`market share`,
			`capex|capital expenditures?`,
			`profit(?:ability)?`,
		},
	}
}

// compile builds the matchers. NewChunker calls it once up front; a chunker
// is shared across goroutines, so the count methods must never write.
func (v *Vocabulary) compile() {
	if v.compiled {
		return
	}
	for _, p := range v.DisclaimerPatterns {
		if re, err := regexp.Compile(`(?i)` + p); err == nil {
			v.disclaimer = append(v.disclaimer, re)
		}
	}
	for _, p := range v.BusinessPatterns {
		if re, err := regexp.Compile(`(?i)` + p); err == nil {
			v.business = append(v.business, re)
		}
	}
	v.compiled = true
}

// DisclaimerCount returns the total number of disclaimer matches in s.
func (v *Vocabulary) DisclaimerCount(s string) int {
	v.compile()
	total := 0
	for _, re := range v.disclaimer {
		total += len(re.FindAllStringIndex(s, -1))
	}
	return total
}

// BusinessCount returns the total number of business-term matches in s.
func (v *Vocabulary) BusinessCount(s string) int {
	v.compile()
	total := 0
	for _, re := range v.business {
		total += len(re.FindAllStringIndex(s, -1))
	}
	return total
}

// DistinctDisclaimerHits counts how many disclaimer patterns match at least once.
func (v *Vocabulary) DistinctDisclaimerHits(s string) int {
	v.compile()
	n := 0
	for _, re := range v.disclaimer {
		if re.MatchString(s) {
			n++
		}
	}
	return n
}

// DistinctBusinessHits counts how many business patterns match at least once.
func (v *Vocabulary) DistinctBusinessHits(s string) int {
	v.compile()
	n := 0
	for _, re := range v.business {
		if re.MatchString(s) {
			n++
		}
	}
	return n
}
