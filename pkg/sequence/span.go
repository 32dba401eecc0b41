package sequence

// Span is a half-open range [Start, Start+Count).
type Span struct {
	Start int
	Count int
}

func (s Span) End() int {
	return s.Start + s.Count
}

func (s Span) Contains(index int) bool {
	return index >= s.Start && index < s.End()
}

// Split partitions total elements into contiguous spans for at most parts workers.
// Every span but the last holds max(ceil(total/parts), minPerPart) elements.
func Split(total, parts, minPerPart int) []Span {
	if total <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	perPart := (total + parts - 1) / parts
	if perPart < minPerPart {
		perPart = minPerPart
	}

	spans := make([]Span, 0, (total+perPart-1)/perPart)
	for start := 0; start < total; start += perPart {
		count := min(perPart, total-start)
		spans = append(spans, Span{Start: start, Count: count})
	}
	return spans
}
