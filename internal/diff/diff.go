// Package diff compares two snapshots of one asset and decides whether the
// difference is worth a Change.
package diff

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

const (
	maxSampleLines = 20

	// modifiedRatio is the similarity at which a replaced line pair counts
	// as one modified line rather than a removal plus an addition.
	modifiedRatio = 0.75

	// maxMatchCells bounds the product of the two sequence lengths handed
	// to one character or word match. Larger regions fall back to the next
	// coarser unit.
	maxMatchCells = 4_000_000
)

// TextDiff is the line-level comparison of two texts.
type TextDiff struct {
	Added        int      `json:"added_count"`
	Removed      int      `json:"removed_count"`
	Modified     int      `json:"modified_count"`
	AddedLines   []string `json:"added_lines,omitempty"`
	RemovedLines []string `json:"removed_lines,omitempty"`
	LinesBefore  int      `json:"total_lines_before"`
	LinesAfter   int      `json:"total_lines_after"`
}

// LinesChanged returns added plus removed lines.
func (t TextDiff) LinesChanged() int {
	return t.Added + t.Removed
}

// Evidence is the raw change evidence between two snapshots.
type Evidence struct {
	AssetType        store.AssetType
	Before           string
	After            string
	Text             TextDiff
	ChangePercentage float64

	// Structured is nil when either side has no bag, the bags do not
	// differ, or StructuredErr is set.
	Structured Structured

	// StructuredErr records a malformed bag. The evidence is still usable
	// through its text diff.
	StructuredErr error
}

// Compare returns the evidence between two snapshots of an asset of type t,
// or nil when there is nothing to compare: equal content hashes, or a
// snapshot without extracted text.
func Compare(t store.AssetType, before, after store.Snapshot) *Evidence {
	if before.ContentHash == after.ContentHash {
		return nil
	}
	if before.Text == "" || after.Text == "" {
		return nil
	}

	ev := &Evidence{
		AssetType:        t,
		Before:           before.Text,
		After:            after.Text,
		Text:             lineDiff(before.Text, after.Text),
		ChangePercentage: ChangePercentage(before.Text, after.Text),
	}
	if before.Structured != nil && after.Structured != nil {
		ev.Structured, ev.StructuredErr = CompareStructured(t, before.Structured, after.Structured)
	}
	return ev
}

// ChangePercentage is (1 - similarity) * 100 over the full texts, rounded
// to two decimals. Texts small enough are matched per character. Larger
// ones are matched per line first and only the replaced regions are
// compared finely, so the cost follows the size of the edit rather than
// the size of the page.
func ChangePercentage(before, after string) float64 {
	switch {
	case before == "" && after == "":
		return 0
	case before == "" || after == "":
		return 100
	}
	return math.Round((1-ratio(matchedRunes(before, after), before, after))*100*100) / 100
}

func ratio(matched int, a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(matched) / float64(total)
}

// matchedRunes counts the characters of a that the matcher pairs with b.
func matchedRunes(a, b string) int {
	if utf8.RuneCountInString(a)*utf8.RuneCountInString(b) <= maxMatchCells {
		return matchedTokens(splitChars(a), splitChars(b))
	}
	la, lb := splitLines(a), splitLines(b)
	matched := 0
	for _, op := range difflib.NewMatcherWithJunk(la, lb, false, nil).GetOpCodes() {
		switch op.Tag {
		case 'e':
			for _, l := range la[op.I1:op.I2] {
				matched += utf8.RuneCountInString(l)
			}
		case 'r':
			matched += matchedRegion(strings.Join(la[op.I1:op.I2], ""), strings.Join(lb[op.J1:op.J2], ""))
		}
	}
	return matched
}

// matchedRegion is matchedRunes for a region with no line structure to
// lean on. Regions too large for a character match are compared per word.
func matchedRegion(a, b string) int {
	if utf8.RuneCountInString(a)*utf8.RuneCountInString(b) <= maxMatchCells {
		return matchedTokens(splitChars(a), splitChars(b))
	}
	wa, wb := splitWords(a), splitWords(b)
	if len(wa)*len(wb) <= maxMatchCells {
		return matchedTokens(wa, wb)
	}
	return sharedTokens(wa, wb)
}

// matchedTokens sums the character length of the matching blocks, with the
// popular-element heuristic off.
func matchedTokens(a, b []string) int {
	n := 0
	for _, m := range difflib.NewMatcherWithJunk(a, b, false, nil).GetMatchingBlocks() {
		for _, tok := range a[m.A : m.A+m.Size] {
			n += utf8.RuneCountInString(tok)
		}
	}
	return n
}

// sharedTokens is the multiset intersection of a and b weighted by token
// length. It ignores order and bounds the matched size from above.
func sharedTokens(a, b []string) int {
	counts := make(map[string]int, len(b))
	for _, tok := range b {
		counts[tok]++
	}
	n := 0
	for _, tok := range a {
		if counts[tok] > 0 {
			counts[tok]--
			n += utf8.RuneCountInString(tok)
		}
	}
	return n
}

func lineDiff(before, after string) TextDiff {
	a, b := normalizeLines(before), normalizeLines(after)
	td := TextDiff{LinesBefore: len(a), LinesAfter: len(b)}

	for _, op := range difflib.NewMatcherWithJunk(a, b, false, nil).GetOpCodes() {
		switch op.Tag {
		case 'i':
			td.addLines(b[op.J1:op.J2])
		case 'd':
			td.removeLines(a[op.I1:op.I2])
		case 'r':
			td.replace(a[op.I1:op.I2], b[op.J1:op.J2])
		}
	}
	return td
}

// replace pairs lines of a replace block positionally. Similar pairs are
// modifications; the rest are removals and additions.
func (t *TextDiff) replace(removed, added []string) {
	n := min(len(removed), len(added))
	for i := range n {
		if lineSimilarity(removed[i], added[i]) >= modifiedRatio {
			t.Modified++
			continue
		}
		t.removeLines(removed[i : i+1])
		t.addLines(added[i : i+1])
	}
	t.removeLines(removed[n:])
	t.addLines(added[n:])
}

func (t *TextDiff) addLines(lines []string) {
	t.Added += len(lines)
	for _, l := range lines {
		if len(t.AddedLines) < maxSampleLines {
			t.AddedLines = append(t.AddedLines, l)
		}
	}
}

func (t *TextDiff) removeLines(lines []string) {
	t.Removed += len(lines)
	for _, l := range lines {
		if len(t.RemovedLines) < maxSampleLines {
			t.RemovedLines = append(t.RemovedLines, l)
		}
	}
}

func lineSimilarity(a, b string) float64 {
	return ratio(matchedRegion(a, b), a, b)
}

// normalizeLines collapses runs of whitespace and drops blank lines so
// that reflowed or re-indented text does not count as changed.
func normalizeLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if norm := strings.Join(strings.Fields(line), " "); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}

// splitLines keeps each line's newline so the pieces add up to s.
func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitWords cuts s after each run of whitespace, keeping the separators.
func splitWords(s string) []string {
	var out []string
	start, inSpace := 0, false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if inSpace && !space {
			out = append(out, s[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
