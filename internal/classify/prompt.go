package classify

import (
	"strings"

	"github.com/sells-group/closure-tracker/internal/model"
)

const instructions = `You read comments left on a blog post that lists ways to close bank accounts at each bank.
For the comment you are given, list every bank account closure attempt the commenter describes.

Rules:
- A comment may describe zero closure attempts. Return an empty list in that case.
- A comment may describe several attempts, at the same bank or at different banks. Return one entry per attempt.
- If the outcome is worded neutrally, treat the attempt as successful.
- Prefer a bank name from the list below when the comment refers to one of them. Use the spelling from the list.
  If the bank is not on the list, use the name the commenter used.
- method must describe how the closure was attempted. Prefer one of: ` + "{{methods}}" + `.
  Use "on-platform" for closing through the bank's website or app, "0-balance" when the account was
  closed by draining it to zero, and "unknown" when the comment does not say.

Respond with JSON only, no prose, in exactly this shape:
{"closure_attempts": [{"success": true, "bank_name": "Chase", "method": "phone"}]}`

// BuildSystemPrompt renders the classifier instructions with the method set
// and the vocabulary.
func BuildSystemPrompt(known []string) string {
	var b strings.Builder
	b.WriteString(strings.Replace(instructions, "{{methods}}", strings.Join(model.RecommendedMethods(), ", "), 1))
	b.WriteString("\n\nBanks to prefer (not exhaustive):\n")
	for _, n := range known {
		b.WriteString("- ")
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return b.String()
}

// BuildUserMessage wraps the comment text for the user turn, preceded by any
// bank names seen in earlier comments that are not in the vocabulary.
func BuildUserMessage(text string, learned []string) string {
	var b strings.Builder
	if len(learned) > 0 {
		b.WriteString("Also prefer these banks seen in earlier comments:\n")
		for _, n := range learned {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	b.WriteString("Comment:\n<comment>\n")
	b.WriteString(text)
	b.WriteString("\n</comment>")
	return b.String()
}
