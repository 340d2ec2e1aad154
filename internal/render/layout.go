package render

import (
	"math"
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// FitImage scales an image of imgW x imgH to fill boxW and then shrinks it
// to boxH if needed, preserving aspect ratio.
func FitImage(imgW, imgH, boxW, boxH float64) (w, h float64) {
	if imgW <= 0 || imgH <= 0 || boxW <= 0 || boxH <= 0 {
		return 0, 0
	}
	ratio := imgW / imgH
	w = boxW
	h = w / ratio
	if h > boxH {
		h = boxH
		w = h * ratio
	}
	return w, h
}

// TextBlock is the result of flowing text into a fixed-width column
type TextBlock struct {
	Lines      []string
	LineHeight float64
	Truncated  bool
}

// Height is the vertical extent of the retained lines.
func (b TextBlock) Height() float64 {
	return float64(len(b.Lines)) * b.LineHeight
}

// FlowText wraps text to width and truncates it to the whole lines that fit
// in maxHeight, marking the last retained line with an ellipsis.
func FlowText(m Measurer, text string, width, lineHeight, maxHeight float64) TextBlock {
	lines := WrapText(m, text, width)
	block := TextBlock{Lines: lines, LineHeight: lineHeight}
	if lineHeight <= 0 || float64(len(lines))*lineHeight <= maxHeight {
		return block
	}

	block.Truncated = true
	maxLines := int(math.Floor(maxHeight / lineHeight))
	if maxLines <= 0 {
		block.Lines = nil
		return block
	}
	kept := make([]string, maxLines)
	copy(kept, lines[:maxLines])
	kept[maxLines-1] += ellipsis
	block.Lines = kept
	return block
}

// WrapText splits text into lines no wider than width. Explicit newlines
// start new lines and words wider than the column are broken.
func WrapText(m Measurer, text string, width float64) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range words {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if m.GetStringWidth(candidate) <= width {
				current = candidate
				continue
			}
			if current != "" {
				lines = append(lines, current)
			}
			for m.GetStringWidth(word) > width {
				cut := breakPoint(m, word, width)
				if cut >= len(word) {
					break
				}
				lines = append(lines, word[:cut])
				word = word[cut:]
			}
			current = word
		}
		lines = append(lines, current)
	}

	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// breakPoint returns the byte offset of the longest prefix of word that fits
// in width. At least one rune is always kept.
func breakPoint(m Measurer, word string, width float64) int {
	cut := 0
	for i := 0; i < len(word); {
		_, size := utf8.DecodeRuneInString(word[i:])
		if cut > 0 && m.GetStringWidth(word[:i+size]) > width {
			break
		}
		i += size
		cut = i
	}
	return cut
}
