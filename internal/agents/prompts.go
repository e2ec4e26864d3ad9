package agents

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/reviewd/internal/workflows"
)

const specialistSchema = `Respond with a single JSON object and nothing else:
{"findings":[{"severity":"critical|major|minor","description":"what is wrong","location":"file:line","recommendation":"what to change"}]}
Return {"findings":[]} if you find nothing in your area.`

const challengerSchema = `Respond with a single JSON object and nothing else:
{"challenges":[{"finding_id":"<id>","verdict":"agree|disagree|partial","challenge":"why, in one or two sentences"}]}
Include every finding you were shown. Leave "challenge" empty when you agree.`

const arbitratorSchema = `Respond with a single JSON object and nothing else:
{"ruling":"upheld|overturned","reasoning":"one short paragraph","stances":{"<source>":"agrees|disagrees|mixed"}}
Give a stance for each challenge source present, describing whether that challenge agrees with the finding.`

const synthesizerSchema = `Respond with a single JSON object and nothing else:
{"summary":"two or three sentences","findings":[{"finding_id":"<id>","severity":"critical|major|minor","description":"final wording","recommendation":"final wording"}]}
List only findings that belong in the final verdict, most severe first.`

func specialistSystem(p Persona) string {
	return fmt.Sprintf("You are the %s on a code review panel. Report only issues in your area.\n\nYour area:\n%s\n\n%s",
		p.Title, strings.TrimSpace(p.Focus), specialistSchema)
}

func specialistPrompt(in workflows.SpecialistInput) string {
	var b strings.Builder
	if c := strings.TrimSpace(in.Context); c != "" {
		fmt.Fprintf(&b, "Author's context: %s\n\n", c)
	}
	fmt.Fprintf(&b, "<diff>\n%s\n</diff>\n", in.Content)
	return b.String()
}

func challengerPrompt(findings []workflows.Finding) string {
	var b strings.Builder
	b.WriteString("Findings under review:\n\n")
	for _, f := range findings {
		writeFinding(&b, f)
	}
	b.WriteString("\n")
	b.WriteString(challengerSchema)
	return b.String()
}

func arbitratorPrompt(in workflows.ArbitrationInput) string {
	var b strings.Builder
	b.WriteString("Disputed finding:\n")
	writeFinding(&b, in.Finding)
	if in.ChallengerText != nil {
		fmt.Fprintf(&b, "\nChallenge from %s:\n%s\n", workflows.SourceChallenger, *in.ChallengerText)
	}
	if in.HumanText != nil {
		fmt.Fprintf(&b, "\nChallenge from %s:\n%s\n", workflows.SourceHuman, *in.HumanText)
	}
	fmt.Fprintf(&b, "\n<diff>\n%s\n</diff>\n\n%s", in.Content, arbitratorSchema)
	return b.String()
}

func synthesizerPrompt(in workflows.SynthesisInput) string {
	var b strings.Builder
	if len(in.Findings) == 0 {
		b.WriteString("The panel raised no findings. Write a short summary saying so.\n\n")
	} else {
		b.WriteString("Findings:\n\n")
		for _, f := range in.Findings {
			writeFinding(&b, f)
		}
	}
	if len(in.Disputes) > 0 {
		b.WriteString("\nDispute rulings:\n")
		for _, d := range in.Disputes {
			fmt.Fprintf(&b, "- %s: %s (%s)", d.FindingID, d.Ruling, strings.Join(d.ChallengeSources, ", "))
			if d.Reasoning != "" {
				fmt.Fprintf(&b, " %s", d.Reasoning)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(synthesizerSchema)
	return b.String()
}

func writeFinding(b *strings.Builder, f workflows.Finding) {
	fmt.Fprintf(b, "[%s] %s, %s", f.ID, f.Specialist, f.Severity)
	if f.Location != "" {
		fmt.Fprintf(b, ", %s", f.Location)
	}
	fmt.Fprintf(b, "\n  %s\n", f.Description)
	if f.Recommendation != "" {
		fmt.Fprintf(b, "  Recommendation: %s\n", f.Recommendation)
	}
}
