package textproc

import "strings"

// TrimProportional shrinks a list of texts to fit a total budget. Each text
// receives a budget proportional to its share of the remaining total,
// recomputed sequentially so early texts cannot starve later ones. Texts
// trimmed to nothing are dropped. The result always satisfies
// sum(len) <= budget; input under budget is returned unchanged.
func TrimProportional(texts []string, budget int) []string {
	if budget <= 0 {
		return nil
	}

	total := 0
	for _, t := range texts {
		total += len(t)
	}
	if total <= budget {
		return texts
	}

	out := make([]string, 0, len(texts))
	remainingBudget := budget
	remainingTotal := total

	for _, t := range texts {
		if remainingBudget <= 0 || remainingTotal <= 0 {
			break
		}
		alloc := len(t) * remainingBudget / remainingTotal
		remainingTotal -= len(t)
		if alloc <= 0 {
			continue
		}

		trimmed := TrimText(t, alloc)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
		remainingBudget -= len(trimmed)
	}
	return out
}

// TrimText cuts text down to at most max characters, preferring the last
// sentence boundary at or before the limit, then the last word boundary, then
// a hard character cut.
func TrimText(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(text) <= max {
		return text
	}

	if s := trimAtSentence(text, max); s != "" {
		return s
	}
	if s := trimAtWord(text, max); s != "" {
		return s
	}
	return text[:max]
}

// trimAtSentence accumulates whole sentences while they fit. Returns "" when
// no complete sentence fits or the result would be under half the budget
// (too aggressive a cut to be useful).
func trimAtSentence(text string, max int) string {
	var b strings.Builder
	start := 0
	for i := 0; i < len(text) && i < max; i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		// Sentence ends at punctuation followed by whitespace or end of text.
		end := i + 1
		for end < len(text) && (text[end] == ' ' || text[end] == '\n' || text[end] == '\t') {
			end++
		}
		if end == i+1 && end < len(text) {
			// Punctuation inside a token ("3.14", "e.g"), not a boundary.
			continue
		}
		if end > max {
			break
		}
		b.WriteString(text[start:end])
		start = end
	}
	result := strings.TrimRight(b.String(), " \n\t")
	if len(result) < max/2 {
		return ""
	}
	return result
}

// trimAtWord cuts at the last whitespace boundary at or before max.
func trimAtWord(text string, max int) string {
	idx := strings.LastIndexAny(text[:max], " \n\t")
	if idx <= 0 {
		return ""
	}
	return strings.TrimRight(text[:idx], " \n\t")
}
