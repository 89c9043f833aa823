package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"supportbot/backend/internal/config"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// WordList selects one of the substring sets.
type WordList string

const (
	ListBad       WordList = "bad"
	ListOffensive WordList = "offensive"
	ListException WordList = "exception"
)

var (
	upperRun  = regexp.MustCompile(`\p{Lu}{15,}`)
	punctRun  = regexp.MustCompile(`[!?]{5,}`)
	symbolRun = regexp.MustCompile(`[^\pL\pN_\s]{12,}`)
)

const (
	repeatedRuneLimit = 7
	shortTokenRun     = 20
	shortTokenMaxLen  = 2
)

// normalize lower-cases with Unicode rules and composes combining marks, so
// words from the config and user text compare the same way.
func normalize(s string) string {
	// a Caser keeps state and must not be shared between goroutines
	return norm.NFC.String(cases.Lower(language.Und).String(s))
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = normalize(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func (f *Filter) firstMatch(list WordList, lower string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for w := range f.words[list] {
		if strings.Contains(lower, w) {
			return w, true
		}
	}
	return "", false
}

// matchWords returns up to MaxDetailMatches matched words in sorted order.
func (f *Filter) matchWords(list WordList, lower string) []string {
	f.mu.RLock()
	var found []string
	for w := range f.words[list] {
		if strings.Contains(lower, w) {
			found = append(found, w)
		}
	}
	f.mu.RUnlock()

	sort.Strings(found)
	if len(found) > config.MaxDetailMatches {
		found = found[:config.MaxDetailMatches]
	}
	return found
}

func (f *Filter) matchLinks(text string) []string {
	var found []string
	for _, re := range f.links {
		for _, m := range re.FindAllString(text, config.MaxDetailMatches) {
			found = append(found, m)
			if len(found) == config.MaxDetailMatches {
				return found
			}
		}
	}
	return found
}

func (f *Filter) matchSpam(text string) (string, bool) {
	switch {
	case hasRepeatedRune(text, repeatedRuneLimit):
		return "repeated characters", true
	case upperRun.MatchString(text):
		return "long upper-case run", true
	case punctRun.MatchString(text):
		return "repeated punctuation", true
	case symbolRun.MatchString(text):
		return "run of special characters", true
	case hasShortTokenRun(text, shortTokenRun):
		return "run of short words", true
	}
	for _, re := range f.spam {
		if re.MatchString(text) {
			return fmt.Sprintf("matches %q", re.String()), true
		}
	}
	return "", false
}

// hasRepeatedRune reports whether any rune occurs n or more times in a row.
func hasRepeatedRune(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if run > 0 && r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

// hasShortTokenRun reports whether n or more consecutive whitespace-separated
// tokens each consist of one or two letters.
func hasShortTokenRun(text string, n int) bool {
	run := 0
	for _, tok := range strings.Fields(text) {
		if isShortWord(tok) {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func isShortWord(tok string) bool {
	count := 0
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
		count++
		if count > shortTokenMaxLen {
			return false
		}
	}
	return count > 0
}

// AddWord inserts a word into one of the lists at runtime.
func (f *Filter) AddWord(list WordList, word string) error {
	w := normalize(strings.TrimSpace(word))
	if w == "" {
		return fmt.Errorf("empty word")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.words[list]
	if !ok {
		return fmt.Errorf("unknown word list %q", list)
	}
	set[w] = struct{}{}
	return nil
}

// RemoveWord deletes a word from one of the lists. Removing an absent word is
// not an error.
func (f *Filter) RemoveWord(list WordList, word string) error {
	w := normalize(strings.TrimSpace(word))
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.words[list]
	if !ok {
		return fmt.Errorf("unknown word list %q", list)
	}
	delete(set, w)
	return nil
}
