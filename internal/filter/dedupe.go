package filter

// DedupeFilter collapses runs of identical messages. Replay backlogs are
// full of repeated polling noise; collapsing consecutive duplicates keeps
// the output readable without losing information.
type DedupeFilter struct {
	lastText  string
	lastCount int
	primed    bool
}

// NewDedupeFilter creates a new deduplication filter that collapses
// consecutive identical messages.
func NewDedupeFilter() *DedupeFilter {
	return &DedupeFilter{}
}

// DedupeResult holds the result of a dedupe check
type DedupeResult struct {
	ShouldEmit bool // Whether this entry should be emitted
	Count      int  // Number of duplicates so far (1 = first occurrence)
}

// Check determines if an entry should be emitted or suppressed.
func (f *DedupeFilter) Check(text string) DedupeResult {
	if f.primed && text == f.lastText {
		f.lastCount++
		return DedupeResult{ShouldEmit: false, Count: f.lastCount}
	}
	f.primed = true
	f.lastText = text
	f.lastCount = 1
	return DedupeResult{ShouldEmit: true, Count: 1}
}

// Suppressed returns how many copies of the current run were not emitted.
func (f *DedupeFilter) Suppressed() int {
	if f.lastCount > 1 {
		return f.lastCount - 1
	}
	return 0
}
