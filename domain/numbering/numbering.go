// Package numbering implements the sequential document number engine.
//
// A template is a tiny format language: a run wrapped in square brackets is a
// fixed literal, Y/YY/YYYY render the year, M/MM the month, D/DD the day, and
// a run of '#' renders the zero-padded sequence counter. Any other character
// is a one-character literal. The same token stream drives parsing (reading a
// previously issued number back into its components) and formatting (issuing
// the next one).
//
// The engine is pure: no I/O, no state between calls. Persisting the last
// issued value, and doing so atomically under concurrent creation, is the
// caller's contract.
package numbering

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type tokenKind int

const (
	literalToken tokenKind = iota
	yearToken
	monthToken
	dayToken
	numberToken
)

type token struct {
	kind tokenKind
	text string // literal text, empty for field tokens
	// width is the exact number of characters the token occupies in a
	// rendered value.
	width int
}

func tokenize(template string) []token {
	var tokens []token
	runes := []rune(template)
	for i := 0; i < len(runes); {
		switch runes[i] {
		case '[':
			end := i + 1
			for end < len(runes) && runes[end] != ']' {
				end++
			}
			text := string(runes[i+1 : end])
			if text != "" {
				tokens = append(tokens, token{kind: literalToken, text: text, width: len(text)})
			}
			if end < len(runes) {
				end++ // consume ']'
			}
			i = end
		case 'Y':
			run := runLength(runes, i, 'Y')
			width := 2
			if run >= 3 {
				width = 4
			}
			tokens = append(tokens, token{kind: yearToken, width: width})
			i += run
		case 'M':
			run := runLength(runes, i, 'M')
			tokens = append(tokens, token{kind: monthToken, width: 2})
			i += run
		case 'D':
			run := runLength(runes, i, 'D')
			tokens = append(tokens, token{kind: dayToken, width: 2})
			i += run
		case '#':
			run := runLength(runes, i, '#')
			tokens = append(tokens, token{kind: numberToken, width: run})
			i += run
		default:
			text := string(runes[i])
			tokens = append(tokens, token{kind: literalToken, text: text, width: len(text)})
			i++
		}
	}
	return tokens
}

func runLength(runes []rune, start int, c rune) int {
	n := 0
	for start+n < len(runes) && runes[start+n] == c {
		n++
	}
	return n
}

// Parsed holds the components read out of a previously issued number.
type Parsed struct {
	Year     int
	Month    int
	Day      int
	HasYear  bool
	HasMonth bool
	HasDay   bool
	Number   int
}

// Parse reads value against template. It returns nil when value is not a
// number the template could have produced: a fixed literal mismatch, a
// non-numeric field, too few characters, or trailing leftovers. A nil result
// signals "no valid prior number"; the caller restarts the sequence at 1.
func Parse(template, value string) *Parsed {
	tokens := tokenize(template)
	parsed := &Parsed{}
	rest := value
	for _, tok := range tokens {
		if len(rest) < tok.width {
			return nil
		}
		chunk := rest[:tok.width]
		rest = rest[tok.width:]
		switch tok.kind {
		case literalToken:
			if chunk != tok.text {
				return nil
			}
		case yearToken:
			year, err := strconv.Atoi(chunk)
			if err != nil {
				return nil
			}
			if tok.width == 2 {
				year += 2000
			}
			parsed.Year = year
			parsed.HasYear = true
		case monthToken:
			month, err := strconv.Atoi(chunk)
			if err != nil {
				return nil
			}
			parsed.Month = month
			parsed.HasMonth = true
		case dayToken:
			day, err := strconv.Atoi(chunk)
			if err != nil {
				return nil
			}
			parsed.Day = day
			parsed.HasDay = true
		case numberToken:
			number, err := strconv.Atoi(chunk)
			if err != nil {
				return nil
			}
			parsed.Number = number
		}
	}
	if rest != "" {
		return nil
	}
	return parsed
}

// Format renders a number under template. Temporal fields are stamped from
// now; the counter is left-padded with zeros to the token's declared width
// and never truncated when it outgrows it.
func Format(template string, number int, now time.Time) string {
	var b strings.Builder
	for _, tok := range tokenize(template) {
		switch tok.kind {
		case literalToken:
			b.WriteString(tok.text)
		case yearToken:
			year := now.Year()
			if tok.width == 2 {
				year %= 100
			}
			fmt.Fprintf(&b, "%0*d", tok.width, year)
		case monthToken:
			fmt.Fprintf(&b, "%02d", int(now.Month()))
		case dayToken:
			fmt.Fprintf(&b, "%02d", now.Day())
		case numberToken:
			fmt.Fprintf(&b, "%0*d", tok.width, number)
		}
	}
	return b.String()
}

// Next derives the number that follows lastValue.
//
// The display template controls how the number looks; incrementTemplate
// controls how often the counter resets. A reference value rendered under
// incrementTemplate with today's date is compared against the parsed last
// value component by component (year before month before day): when the
// reference is ahead, the increment granularity has rolled over and the
// counter restarts at 1. An unparseable lastValue also restarts at 1.
func Next(template, incrementTemplate, lastValue string, now time.Time) string {
	last := Parse(template, lastValue)
	if last == nil {
		return Format(template, 1, now)
	}
	ref := Parse(incrementTemplate, Format(incrementTemplate, 0, now))
	if ref != nil && rolledOver(ref, last) {
		return Format(template, 1, now)
	}
	return Format(template, last.Number+1, now)
}

func rolledOver(ref, last *Parsed) bool {
	if ref.HasYear && last.HasYear {
		if ref.Year > last.Year {
			return true
		}
		if ref.Year < last.Year {
			return false
		}
	}
	if ref.HasMonth && last.HasMonth {
		if ref.Month > last.Month {
			return true
		}
		if ref.Month < last.Month {
			return false
		}
	}
	if ref.HasDay && last.HasDay {
		if ref.Day > last.Day {
			return true
		}
	}
	return false
}
