package podcast

import (
	"fmt"
	"strconv"
	"strings"
)

// Prompt renders the user prompt sent to the text generator.
func (p Plan) Prompt() string {
	var b strings.Builder
	p.Format.render(&b, p.Topic, strconv.FormatFloat(p.Minutes, 'f', -1, 64), p.TargetWords)
	return strings.TrimSpace(b.String())
}

func (s Solo) render(b *strings.Builder, topic, minutes string, targetWords int) {
	b.WriteString("Generate a SOLO podcast script.\n\n")
	fmt.Fprintf(b, "Voice role / name: %s\n", s.Name)
	fmt.Fprintf(b, "Topic: %s\n", topic)
	fmt.Fprintf(b, "Length: about %s minutes (~%d words).\n\n", minutes, targetWords)
	b.WriteString("Include:\n")
	b.WriteString("- A 1-sentence intro\n")
	b.WriteString("- Timecodes every 30–60 seconds like [00:45]\n")
	b.WriteString("- A 1-sentence outro\n")
	b.WriteString("- A short line that this is an AI simulation, not the real person.\n\n")
	b.WriteString("Return ONLY the script text.\n")
}

func (d Dialogue) render(b *strings.Builder, topic, minutes string, targetWords int) {
	b.WriteString("Generate a DIALOGUE podcast script.\n\n")
	fmt.Fprintf(b, "Speaker A: %s\n", d.SpeakerA)
	fmt.Fprintf(b, "Speaker B: %s\n", d.SpeakerB)
	fmt.Fprintf(b, "Topic: %s\n", topic)
	fmt.Fprintf(b, "Length: about %s minutes (~%d words).\n\n", minutes, targetWords)
	b.WriteString("Requirements:\n")
	b.WriteString("- Natural back-and-forth conversation\n")
	b.WriteString("- 2–4 sentence turns\n")
	b.WriteString("- Timecodes every 30–60 seconds like [00:45]\n")
	b.WriteString("- Use labels exactly:\n")
	fmt.Fprintf(b, "  %s: …\n", d.SpeakerA)
	fmt.Fprintf(b, "  %s: …\n", d.SpeakerB)
	b.WriteString("- Include a 1-sentence intro & 1-sentence outro\n")
	b.WriteString("- Make it clear this is an AI-generated simulation of the speakers.\n\n")
	b.WriteString("Return ONLY the script text.\n")
}
