// Package text prepares chat text for speech synthesis.
//
// Game chat is full of links, digits, repeated punctuation and typographic
// characters that speech engines read badly. The Normalizer rewrites those
// into something that sounds like what the player meant.
package text

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	// NumberBaseTen represents the base for decimal number system.
	NumberBaseTen = 10
	// NumberBaseTwenty represents the boundary for teen numbers.
	NumberBaseTwenty = 20
	// NumberBaseHundred represents the base for hundreds.
	NumberBaseHundred = 100
	// NumberBaseThousand represents the base for thousands.
	NumberBaseThousand = 1000
	// MaxNumberForWords represents the maximum number that can be converted to words.
	MaxNumberForWords = 999999
)

// Regex patterns for chat normalization.
const (
	urlRegexPattern        = `(?i)\b(?:https?://|www\.)\S+`
	numberRegexPattern     = `\d+`
	whitespaceRegexPattern = `\s+`
)

// Spoken replacements.
const (
	spokenLink = "link"
	emDash     = "—"
	enDash     = "–"
	figureDash = "‒"
	ellipsis   = "..."
	ellipsisCh = "…"
)

// Normalizer rewrites chat text for a speech engine.
type Normalizer struct {
	urlPattern        *regexp.Regexp
	numberPattern     *regexp.Regexp
	whitespacePattern *regexp.Regexp
	typography        *strings.Replacer
	numbers           *numberConverter
}

// NewNormalizer creates a normalizer with precompiled patterns.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		urlPattern:        regexp.MustCompile(urlRegexPattern),
		numberPattern:     regexp.MustCompile(numberRegexPattern),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		typography: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisCh, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
		numbers: newNumberConverter(),
	}
}

// Normalize returns the text to speak for a chat message. An empty result
// means there is nothing worth saying.
func (n *Normalizer) Normalize(message string) string {
	if message == "" {
		return ""
	}

	spoken := n.urlPattern.ReplaceAllString(message, spokenLink)
	spoken = n.typography.Replace(spoken)
	spoken = n.numberPattern.ReplaceAllStringFunc(spoken, n.numberToWords)
	spoken = collapsePunctuation(spoken)
	spoken = n.whitespacePattern.ReplaceAllString(spoken, " ")
	spoken = strings.TrimSpace(spoken)

	if !hasSpeakableRune(spoken) {
		return ""
	}

	return spoken
}

func (n *Normalizer) numberToWords(digits string) string {
	number, err := strconv.Atoi(digits)
	if err != nil {
		return digits
	}

	return n.numbers.toWords(number)
}

// collapsePunctuation keeps the first mark of every run, so "!!!" reads as "!".
func collapsePunctuation(message string) string {
	var (
		builder      strings.Builder
		lastWasPunct bool
	)

	builder.Grow(len(message))

	for _, char := range message {
		isPunct := unicode.IsPunct(char)
		if !isPunct || !lastWasPunct {
			builder.WriteRune(char)
		}

		lastWasPunct = isPunct
	}

	return builder.String()
}

func hasSpeakableRune(message string) bool {
	for _, char := range message {
		if unicode.IsLetter(char) || unicode.IsDigit(char) {
			return true
		}
	}

	return false
}

type numberConverter struct {
	ones  []string
	teens []string
	tens  []string
}

func newNumberConverter() *numberConverter {
	return &numberConverter{
		ones: []string{
			"", "one", "two", "three", "four", "five",
			"six", "seven", "eight", "nine",
		},
		teens: []string{
			"ten", "eleven", "twelve", "thirteen", "fourteen",
			"fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
		},
		tens: []string{
			"", "", "twenty", "thirty", "forty", "fifty",
			"sixty", "seventy", "eighty", "ninety",
		},
	}
}

func (nc *numberConverter) underHundred(num int) string {
	switch {
	case num < NumberBaseTen:
		return nc.ones[num]
	case num < NumberBaseTwenty:
		return nc.teens[num-NumberBaseTen]
	}

	result := nc.tens[num/NumberBaseTen]
	if num%NumberBaseTen > 0 {
		result += " " + nc.ones[num%NumberBaseTen]
	}

	return result
}

func (nc *numberConverter) underThousand(num int) string {
	if num < NumberBaseHundred {
		return nc.underHundred(num)
	}

	result := nc.ones[num/NumberBaseHundred] + " hundred"

	if remainder := num % NumberBaseHundred; remainder > 0 {
		result += " " + nc.underHundred(remainder)
	}

	return result
}

// toWords spells out 0..MaxNumberForWords; larger numbers keep their digits.
func (nc *numberConverter) toWords(number int) string {
	if number < 0 || number > MaxNumberForWords {
		return strconv.Itoa(number)
	}

	if number == 0 {
		return "zero"
	}

	var parts []string

	if thousands := number / NumberBaseThousand; thousands > 0 {
		parts = append(parts, nc.underThousand(thousands)+" thousand")
	}

	if remainder := number % NumberBaseThousand; remainder > 0 {
		parts = append(parts, nc.underThousand(remainder))
	}

	return strings.Join(parts, " ")
}
