// Package prompt assembles ranked memories, goals, and the user's profile
// into a size-bounded context for the language model.
package prompt

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// separator joins fragments in the rendered context.
const separator = "\n\n"

// Config bounds the assembled context.
type Config struct {
	// Budget is the maximum rendered size in characters (runes),
	// separators included.
	Budget int

	// MinFragmentLen drops a truncated fragment that would end up shorter
	// than this, on the theory that a stump helps nobody.
	MinFragmentLen int
}

// DefaultConfig fits a typical system prompt enrichment.
var DefaultConfig = Config{
	Budget:         4000,
	MinFragmentLen: 20,
}

// Fragment is one labeled piece of assembled context.
type Fragment struct {
	Label string // persona, constitution, goal, memory
	Text  string
}

// Context is the assembled, ordered, size-bounded prompt context.
// Ephemeral: never persisted.
type Context struct {
	Fragments []Fragment

	// Clipped reports whether any fragment was truncated or dropped to
	// meet the budget. An observability signal, not an error.
	Clipped bool
}

// String renders the context, fragments in order, separated by blank lines.
func (c *Context) String() string {
	parts := make([]string, len(c.Fragments))
	for i, f := range c.Fragments {
		parts[i] = f.Text
	}
	return strings.Join(parts, separator)
}

// Size is the rendered length in runes. Never exceeds the budget the
// context was assembled under.
func (c *Context) Size() int {
	return utf8.RuneCountInString(c.String())
}

// Assembler builds contexts under a fixed budget. Deterministic: identical
// inputs produce identical contexts.
type Assembler struct {
	cfg Config
}

// NewAssembler creates an assembler. A nil config selects DefaultConfig.
func NewAssembler(cfg *Config) *Assembler {
	if cfg == nil {
		c := DefaultConfig
		cfg = &c
	}
	return &Assembler{cfg: *cfg}
}

// Assemble merges the profile texts with ranked goal and memory fragments,
// most authoritative first: persona, constitution, goals (highest score
// first), memories (highest score first). Fragments are included greedily
// while the rendered size stays within budget; an overflowing fragment is
// truncated at a sentence or word boundary, never mid-word, or dropped when
// truncation would leave it below the minimum useful length.
func (a *Assembler) Assemble(persona, constitution string, goals, memories []string) *Context {
	out := &Context{}

	a.add(out, Fragment{Label: "persona", Text: persona})
	a.add(out, Fragment{Label: "constitution", Text: constitution})
	for _, g := range goals {
		a.add(out, Fragment{Label: "goal", Text: g})
	}
	for _, m := range memories {
		a.add(out, Fragment{Label: "memory", Text: m})
	}

	return out
}

func (a *Assembler) add(ctx *Context, frag Fragment) {
	if frag.Text == "" {
		return
	}

	used := ctx.Size()
	cost := utf8.RuneCountInString(frag.Text)
	sep := 0
	if len(ctx.Fragments) > 0 {
		sep = utf8.RuneCountInString(separator)
	}

	if used+sep+cost <= a.cfg.Budget {
		ctx.Fragments = append(ctx.Fragments, frag)
		return
	}

	available := a.cfg.Budget - used - sep
	if available < a.cfg.MinFragmentLen {
		ctx.Clipped = true
		return
	}

	truncated := truncateAt(frag.Text, available)
	if utf8.RuneCountInString(truncated) < a.cfg.MinFragmentLen {
		ctx.Clipped = true
		return
	}

	frag.Text = truncated
	ctx.Fragments = append(ctx.Fragments, frag)
	ctx.Clipped = true
}

// truncateAt cuts text to at most max runes, preferring the last sentence
// boundary in the window, falling back to the last word boundary. Returns
// "" when no safe boundary exists.
func truncateAt(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	window := runes[:max]

	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			return strings.TrimRightFunc(string(window[:i+1]), unicode.IsSpace)
		}
	}

	for i := len(window) - 1; i >= 0; i-- {
		if unicode.IsSpace(window[i]) {
			return strings.TrimRightFunc(string(window[:i]), unicode.IsSpace)
		}
	}

	return ""
}
