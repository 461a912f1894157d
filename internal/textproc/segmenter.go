package textproc

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/atlas-diligence/riskscan/internal/model"
)

// separators is the split cascade, highest priority first. Each separator is
// kept attached to the piece that precedes it so reassembly is lossless. The
// empty string means a forced character cut.
var separators = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ": ", ", ", " ", ""}

// GroupMargin is the headroom reserved when packing short texts into batches.
// Grouped batches are never re-split with overlap, so this is a conservative
// safety margin against prompt framing overhead.
const GroupMargin = 500

// batchSeparator joins texts packed into one batch.
const batchSeparator = "\n\n"

// Segmenter splits long texts into bounded, overlapping chunks and packs
// short texts into bounded batches.
type Segmenter struct {
	MaxSize int
	Overlap int
}

// NewSegmenter validates the size bounds. MaxSize must be positive and
// strictly greater than Overlap; Overlap must be non-negative.
func NewSegmenter(maxSize, overlap int) (*Segmenter, error) {
	if maxSize <= 0 {
		return nil, eris.Errorf("textproc: max size must be positive, got %d", maxSize)
	}
	if overlap < 0 {
		return nil, eris.Errorf("textproc: overlap must be non-negative, got %d", overlap)
	}
	if maxSize <= overlap {
		return nil, eris.Errorf("textproc: max size %d must exceed overlap %d", maxSize, overlap)
	}
	return &Segmenter{MaxSize: maxSize, Overlap: overlap}, nil
}

// Segment splits text into ordered chunks no longer than MaxSize. Consecutive
// chunks share trailing content from the prior chunk so semantic units that
// straddle a cut survive in at least one chunk. Segmentation always makes
// progress and never fails.
func (s *Segmenter) Segment(source, text string) []model.Chunk {
	if text == "" {
		return nil
	}
	pieces := s.split(text, 0)
	merged := s.merge(pieces)

	chunks := make([]model.Chunk, len(merged))
	for i, m := range merged {
		chunks[i] = model.Chunk{Source: source, Index: i, Text: m}
	}
	return chunks
}

// split recursively applies the separator cascade: split on the current
// separator, then recurse into the next one for any piece still over MaxSize.
func (s *Segmenter) split(text string, sepIdx int) []string {
	if len(text) <= s.MaxSize {
		return []string{text}
	}

	sep := separators[sepIdx]
	if sep == "" {
		return s.forceCut(text)
	}

	parts := splitAfter(text, sep)
	if len(parts) == 1 {
		// Separator absent; try the next one on the whole text.
		return s.split(text, sepIdx+1)
	}

	var out []string
	for _, p := range parts {
		if len(p) <= s.MaxSize {
			out = append(out, p)
		} else {
			out = append(out, s.split(p, sepIdx+1)...)
		}
	}
	return out
}

// forceCut slices an atomic oversize piece into fixed steps of
// MaxSize-Overlap characters. The step is always >= 1 (enforced by
// NewSegmenter), so the cut always advances.
func (s *Segmenter) forceCut(text string) []string {
	step := s.MaxSize - s.Overlap
	var out []string
	for start := 0; start < len(text); start += step {
		end := start + step
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[start:end])
	}
	return out
}

// merge concatenates pieces into running chunks up to MaxSize. When a chunk
// closes, trailing pieces totalling at least Overlap characters are carried
// into the next chunk. Because pieces keep their separators, each chunk is an
// exact substring of the input and reassembly loses no characters.
func (s *Segmenter) merge(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ""))
		}
	}

	for _, p := range pieces {
		if total+len(p) > s.MaxSize && total > 0 {
			flush()
			// Keep the smallest trailing run of pieces covering Overlap;
			// drop more if needed to make room for the incoming piece.
			for len(current) > 0 &&
				(total-len(current[0]) >= s.Overlap || total+len(p) > s.MaxSize) {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += len(p)
	}
	flush()
	return chunks
}

// Group packs texts, in input order, into batches whose combined size stays
// under MaxSize-GroupMargin. A single text larger than the effective ceiling
// is routed through Segment instead, yielding one-element batches. Output
// order mirrors input order.
func (s *Segmenter) Group(texts []string) [][]string {
	effective := s.MaxSize - GroupMargin
	if effective <= 0 {
		effective = s.MaxSize
	}

	var batches [][]string
	var current []string
	total := 0

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
			total = 0
		}
	}

	for _, t := range texts {
		if len(t) > effective {
			flush()
			for _, c := range s.Segment("", t) {
				batches = append(batches, []string{c.Text})
			}
			continue
		}

		joined := len(t)
		if len(current) > 0 {
			joined += len(batchSeparator)
		}
		if total+joined > effective {
			flush()
			joined = len(t)
		}
		current = append(current, t)
		total += joined
	}
	flush()
	return batches
}

// splitAfter splits on sep keeping the separator attached to the preceding
// piece, with any empty trailing piece dropped.
func splitAfter(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}
