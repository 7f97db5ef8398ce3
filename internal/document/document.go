// Package document turns canonical text into an anchored block tree the
// display layer can render without losing track of source offsets.
package document

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// BlockKind names the display role of a block.
type BlockKind string

const (
	KindHeading   BlockKind = "heading"
	KindParagraph BlockKind = "paragraph"
	KindQuote     BlockKind = "quote"
	KindList      BlockKind = "list"
	KindListItem  BlockKind = "listItem"
)

// Fragment is a run of rendered text that matches the canonical text
// rune-for-rune starting at Start. Markers and prefixes live between
// fragments, never inside them.
type Fragment struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
}

// Block is one display unit. Anchor is the canonical rune offset of the
// block's first fragment; container blocks carry -1 and anchor through
// their children.
type Block struct {
	ID        string     `json:"id"`
	Kind      BlockKind  `json:"kind"`
	Anchor    int        `json:"anchor"`
	Level     int        `json:"level,omitempty"`
	Fragments []Fragment `json:"fragments,omitempty"`
	Children  []*Block   `json:"children,omitempty"`
}

// Document is the block tree of one canonical text.
type Document struct {
	Text   string   `json:"text"`
	Blocks []*Block `json:"blocks"`
}

// line is one source line with the rune offset of its first character.
type line struct {
	text  string
	start int
}

type lineKind int

const (
	lineBlank lineKind = iota
	lineHeading
	lineQuote
	lineItem
	linePlain
)

// Assign parses canonical text into blocks and stamps every block with its
// canonical rune offset. Blank lines separate blocks; "#", ">", and list
// prefixes select the block kind.
func Assign(text string) *Document {
	doc := &Document{Text: text}
	if strings.TrimSpace(text) == "" {
		return doc
	}

	lines := splitLines(text)
	i := 0
	for i < len(lines) {
		kind := classify(lines[i].text)
		if kind == lineBlank {
			i++
			continue
		}

		j := i + 1
		for j < len(lines) && classify(lines[j].text) == kind {
			j++
		}

		switch kind {
		case lineHeading:
			// Each heading stands alone even inside a run.
			for _, ln := range lines[i:j] {
				doc.Blocks = append(doc.Blocks, headingBlock(ln))
			}
		case lineQuote:
			doc.Blocks = append(doc.Blocks, quoteBlock(lines[i:j]))
		case lineItem:
			doc.Blocks = append(doc.Blocks, listBlock(lines[i:j]))
		default:
			doc.Blocks = append(doc.Blocks, paragraphBlock(lines[i:j]))
		}
		i = j
	}

	next := 0
	assignIDs(doc.Blocks, &next)
	return doc
}

// Lookup returns the block with the given ID, searching containers
// depth-first, or nil.
func (d *Document) Lookup(id string) *Block {
	return lookup(d.Blocks, id)
}

func lookup(blocks []*Block, id string) *Block {
	for _, b := range blocks {
		if b.ID == id {
			return b
		}
		if found := lookup(b.Children, id); found != nil {
			return found
		}
	}
	return nil
}

func splitLines(text string) []line {
	raw := strings.Split(text, "\n")
	lines := make([]line, len(raw))
	start := 0
	for i, s := range raw {
		lines[i] = line{text: s, start: start}
		start += utf8.RuneCountInString(s) + 1
	}
	return lines
}

func classify(s string) lineKind {
	switch {
	case strings.TrimSpace(s) == "":
		return lineBlank
	case strings.HasPrefix(s, "#"):
		return lineHeading
	case strings.HasPrefix(s, ">"):
		return lineQuote
	case itemPrefixLen(s) > 0:
		return lineItem
	default:
		return linePlain
	}
}

// itemPrefixLen returns the length of a list-item marker, or 0 when the
// line is not an item. Markers are ASCII, so byte and rune lengths agree.
func itemPrefixLen(s string) int {
	if strings.HasPrefix(s, "- ") || strings.HasPrefix(s, "* ") {
		return 2
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(s) && s[i] == '.' && s[i+1] == ' ' {
		return i + 2
	}
	return 0
}

func headingBlock(ln line) *Block {
	level := 0
	for level < len(ln.text) && ln.text[level] == '#' {
		level++
	}
	content := level
	for content < len(ln.text) && ln.text[content] == ' ' {
		content++
	}
	return &Block{
		Kind:      KindHeading,
		Level:     level,
		Anchor:    ln.start + content,
		Fragments: []Fragment{{Text: ln.text[content:], Start: ln.start + content}},
	}
}

func quoteBlock(lines []line) *Block {
	b := &Block{Kind: KindQuote}
	for _, ln := range lines {
		content := 1
		if content < len(ln.text) && ln.text[content] == ' ' {
			content++
		}
		b.Fragments = append(b.Fragments, Fragment{
			Text:  ln.text[content:],
			Start: ln.start + content,
		})
	}
	b.Anchor = b.Fragments[0].Start
	return b
}

func listBlock(lines []line) *Block {
	list := &Block{Kind: KindList, Anchor: -1}
	for _, ln := range lines {
		p := itemPrefixLen(ln.text)
		list.Children = append(list.Children, &Block{
			Kind:      KindListItem,
			Anchor:    ln.start + p,
			Fragments: []Fragment{{Text: ln.text[p:], Start: ln.start + p}},
		})
	}
	return list
}

func paragraphBlock(lines []line) *Block {
	b := &Block{Kind: KindParagraph}
	for _, ln := range lines {
		b.Fragments = append(b.Fragments, Fragment{Text: ln.text, Start: ln.start})
	}
	b.Anchor = b.Fragments[0].Start
	return b
}

func assignIDs(blocks []*Block, next *int) {
	for _, b := range blocks {
		b.ID = fmt.Sprintf("b%d", *next)
		*next++
		assignIDs(b.Children, next)
	}
}
