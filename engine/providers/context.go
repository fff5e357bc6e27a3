package providers

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

// ContextProvider synthesizes relationship context: goals, notes, account and
// document summaries, plus a personalized draft message keyed off the query.
type ContextProvider struct{}

func NewContextProvider() *ContextProvider { return &ContextProvider{} }

func (p *ContextProvider) Name() contractx.ProviderName { return contractx.ProviderContext }

func (p *ContextProvider) Description(bundle contractx.ContextBundle) string {
	return fmt.Sprintf("Reading %s's profile, knowledge base, documents, and conversation history", bundle.Client.Name)
}

func (p *ContextProvider) Run(ctx context.Context, bundle contractx.ContextBundle, text string) (contractx.Result, error) {
	client := bundle.Client
	first := firstName(client.Name)

	var highlights []string
	if len(client.Goals) > 0 {
		top := client.Goals
		if len(top) > 2 {
			top = top[:2]
		}
		highlights = append(highlights, "goals: "+strings.Join(top, ", "))
	}
	if client.AdvisorNotes != "" {
		highlights = append(highlights, "advisor notes")
	}
	if len(bundle.RecentChat) > 0 {
		highlights = append(highlights, "recent conversations")
	}

	accountSummary := make([]string, 0, len(bundle.Accounts))
	for _, acct := range bundle.Accounts {
		parts := []string{fmt.Sprintf("%s: %s", strings.ToUpper(acct.Type), money(acct.Balance))}
		if acct.ContributionRoom > 0 {
			parts = append(parts, "room: "+money(acct.ContributionRoom))
		}
		accountSummary = append(accountSummary, strings.Join(parts, " | "))
	}

	docSummary := make([]string, 0, len(bundle.Documents))
	for _, doc := range bundle.Documents {
		docSummary = append(docSummary, fmt.Sprintf("%s (%d): %s",
			strings.ToUpper(doc.Type), doc.TaxYear, truncate(doc.ContentText, 200)))
	}

	goalText := ""
	if len(client.Goals) > 0 {
		goalText = fmt.Sprintf(" I know %s's goals include %s", first, strings.ToLower(client.Goals[0]))
		if len(client.Goals) > 1 {
			goalText += " and " + strings.ToLower(client.Goals[1])
		}
		goalText += "."
	}

	summary := fmt.Sprintf("Based on %s's profile and our past conversations, here's the context that's relevant.%s", first, goalText)

	subject, tone := subjectAndTone(strings.ToLower(text))
	body := draftBody(first, client.Goals, text)

	return contractx.ContextResult{
		Summary:    summary,
		Highlights: highlights,
		ClientContext: contractx.ClientContext{
			Goals:     client.Goals,
			Accounts:  accountSummary,
			Documents: docSummary,
		},
		Draft: contractx.DraftMessage{
			To:         client.Name,
			Subject:    subject,
			Body:       body,
			Tone:       tone,
			Highlights: highlights,
		},
	}, nil
}

func subjectAndTone(query string) (string, string) {
	switch {
	case containsAny(query, "rrsp", "contribution"):
		return "Quick thought on your RRSP", "Warm + Informative"
	case containsAny(query, "mortgage", "home", "fhsa"):
		return "Thinking about your home purchase", "Warm + Encouraging"
	case containsAny(query, "portfolio", "review"):
		return "Your portfolio review", "Professional + Reassuring"
	case containsAny(query, "resp", "education"):
		return "Education savings update", "Warm + Encouraging"
	case strings.Contains(query, "tax"):
		return "Tax planning thoughts", "Professional + Informative"
	default:
		return "Following up on our conversation", "Warm + Professional"
	}
}

func draftBody(first string, goals []string, query string) string {
	parts := []string{
		fmt.Sprintf("Hi %s,\n", first),
		fmt.Sprintf("I've been looking into your question about %s.\n", simplifyQuery(query)),
	}
	if len(goals) > 0 {
		parts = append(parts, fmt.Sprintf("Keeping in mind your goal of %s, here's what I'd recommend:\n", strings.ToLower(goals[0])))
	}
	parts = append(parts,
		"[Analysis details will be filled in by the Numbers section]\n",
		"I'd love to walk you through this in more detail. Would you have 15 minutes this week to chat?\n",
		"Best,\nAlex",
	)
	return strings.Join(parts, "\n")
}

// simplifyQuery turns the advisor's query into a client-friendly phrase.
func simplifyQuery(query string) string {
	q := strings.TrimSuffix(strings.TrimSpace(strings.ToLower(query)), ".")
	if len(q) > 80 {
		q = q[:80] + "..."
	}
	for _, prefix := range []string{"what's the best move for", "check", "run a", "compare", "draft a"} {
		if strings.HasPrefix(q, prefix) {
			q = strings.TrimSpace(q[len(prefix):])
			break
		}
	}
	return q
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
