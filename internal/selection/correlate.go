// Package selection maps display selections back onto canonical text and
// runs the explain and alternate-translation actions hanging off them.
package selection

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"pecha-studio/internal/document"
	"pecha-studio/internal/domain"
)

// Correlate maps a raw display selection onto the canonical text, or
// returns nil when the selection cannot be anchored. Within one fragment
// the returned span reads back exactly the trimmed selection; selections
// crossing fragments anchor at their start and clamp to the text.
func Correlate(raw domain.RawSelection, doc *document.Document) *domain.SelectionSpan {
	if doc == nil || raw.Collapsed || !raw.InContent || raw.Text == "" {
		return nil
	}
	trimmed := strings.TrimSpace(raw.Text)
	if trimmed == "" {
		return nil
	}

	block := anchoredBlock(raw.BlockChain, doc)
	if block == nil {
		return nil
	}
	if raw.Fragment < 0 || raw.Fragment >= len(block.Fragments) {
		return nil
	}
	frag := block.Fragments[raw.Fragment]
	if raw.Offset < 0 || raw.Offset > utf8.RuneCountInString(frag.Text) {
		return nil
	}

	total := utf8.RuneCountInString(doc.Text)
	start := frag.Start + raw.Offset + leadingWhitespaceRunes(raw.Text)
	if start >= total {
		return nil
	}
	length := utf8.RuneCountInString(trimmed)
	if start+length > total {
		length = total - start
	}
	if length <= 0 {
		return nil
	}

	return &domain.SelectionSpan{Start: start, Length: length}
}

// anchoredBlock returns the first anchored block on the chain, walking
// from the innermost element outward.
func anchoredBlock(chain []string, doc *document.Document) *document.Block {
	for _, id := range chain {
		if b := doc.Lookup(id); b != nil && b.Anchor >= 0 {
			return b
		}
	}
	return nil
}

func leadingWhitespaceRunes(s string) int {
	count := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			break
		}
		count++
	}
	return count
}
