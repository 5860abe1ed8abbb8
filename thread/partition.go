package thread

// Window is the result of partitioning a message list against a character
// budget. InWindow is the prefix supplied to the model; Overflow is the
// remainder, kept for persistence or summarization.
type Window struct {
	InWindow []Message
	Overflow []Message
}

// Budget returns a pointer to n, for use with Partition.
func Budget(n int) *int { return &n }

// Partition splits msgs oldest-first against budget.
//
// A nil budget or an empty list puts every message in the window. Otherwise
// messages are taken from the oldest while the running length is still under
// budget. The message that crosses the budget is included, and the first
// message is always included so the window is never empty, even when it
// alone exceeds the budget. With a budget exactly equal to the cumulative
// length through message k, the window ends at k.
//
// Partition is pure: the result shares no backing array with msgs.
func Partition(msgs []Message, budget *int) Window {
	if budget == nil || len(msgs) == 0 {
		return Window{InWindow: clone(msgs), Overflow: []Message{}}
	}

	total := 0
	i := 0
	for i < len(msgs) && (i == 0 || total < *budget) {
		total += msgs[i].Length
		i++
	}

	return Window{InWindow: clone(msgs[:i]), Overflow: clone(msgs[i:])}
}

// Length sums the lengths of msgs.
func Length(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		n += m.Length
	}
	return n
}

func clone(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
