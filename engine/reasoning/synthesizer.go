package reasoning

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

type synthesizerImpl struct {
	summaryRunner compose.Runnable[map[string]any, *schema.Message]
	directRunner  compose.Runnable[map[string]any, *schema.Message]
}

func newSynthesizer(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	summaryPrompt string,
	directPrompt string,
) (*synthesizerImpl, error) {
	summaryRunner, err := compileTextLLMGraph(ctx, chatModel, summaryPrompt, "reasoning.summary_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile summary graph: %v", contractx.ErrModelInvoke, err)
	}
	directRunner, err := compileTextLLMGraph(ctx, chatModel, directPrompt, "reasoning.direct_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile direct graph: %v", contractx.ErrModelInvoke, err)
	}
	return &synthesizerImpl{
		summaryRunner: summaryRunner,
		directRunner:  directRunner,
	}, nil
}

func (s *synthesizerImpl) Summarize(ctx context.Context, req contractx.SummarizeRequest) (string, error) {
	if len(req.Parts) == 0 {
		return "", fmt.Errorf("%w: no findings to summarize", contractx.ErrValidation)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Advisor question about client %s: %s\n\n", req.Client.Name, req.Text)
	b.WriteString("Provider results:\n")
	for _, part := range req.Parts {
		fmt.Fprintf(&b, "- %s\n", part)
	}

	out, err := s.summaryRunner.Invoke(ctx, map[string]any{
		"input": b.String(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: summary invoke: %v", contractx.ErrModelInvoke, err)
	}

	content := strings.TrimSpace(messageContent(out))
	if content == "" {
		return "", fmt.Errorf("%w: empty summary response", contractx.ErrSchemaViolation)
	}
	return content, nil
}

func (s *synthesizerImpl) Answer(ctx context.Context, req contractx.AnswerRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("%w: request text is required", contractx.ErrValidation)
	}

	out, err := s.directRunner.Invoke(ctx, map[string]any{
		"input": renderBundle(req.Bundle, req.Text),
	})
	if err != nil {
		return "", fmt.Errorf("%w: direct answer invoke: %v", contractx.ErrModelInvoke, err)
	}

	content := strings.TrimSpace(messageContent(out))
	if content == "" {
		return "", fmt.Errorf("%w: empty direct answer response", contractx.ErrSchemaViolation)
	}
	return content, nil
}

func messageContent(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	return msg.Content
}

// renderBundle flattens the context bundle into labelled sections so the
// model answers from record data instead of inventing it.
func renderBundle(bundle contractx.ContextBundle, question string) string {
	var b strings.Builder

	client := bundle.Client
	b.WriteString("CLIENT PROFILE\n")
	fmt.Fprintf(&b, "Name: %s\n", client.Name)
	fmt.Fprintf(&b, "Province: %s\n", client.Province)
	fmt.Fprintf(&b, "Date of birth: %s\n", client.DateOfBirth)
	fmt.Fprintf(&b, "Risk profile: %s\n", client.RiskProfile)
	fmt.Fprintf(&b, "Goals: %s\n", strings.Join(client.Goals, ", "))
	fmt.Fprintf(&b, "Dependents: %d\n", client.Dependents)
	fmt.Fprintf(&b, "Employment income: $%.0f\n", client.EmploymentIncome)
	if client.AdvisorNotes != "" {
		fmt.Fprintf(&b, "Advisor notes: %s\n", client.AdvisorNotes)
	}

	b.WriteString("\nACCOUNTS\n")
	if len(bundle.Accounts) == 0 {
		b.WriteString("(none)\n")
	}
	for _, acct := range bundle.Accounts {
		fmt.Fprintf(&b, "- %s: balance $%.2f, contribution room $%.2f\n",
			strings.ToUpper(acct.Type), acct.Balance, acct.ContributionRoom)
	}

	b.WriteString("\nDOCUMENTS\n")
	if len(bundle.Documents) == 0 {
		b.WriteString("(none)\n")
	}
	for _, doc := range bundle.Documents {
		fmt.Fprintf(&b, "- %s (%d): %s\n", strings.ToUpper(doc.Type), doc.TaxYear, doc.ContentText)
	}

	b.WriteString("\nKNOWLEDGE BASE\n")
	if len(bundle.Knowledge) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, entry := range bundle.Knowledge {
		fmt.Fprintf(&b, "- %s\n", entry.Content)
	}

	b.WriteString("\nRECENT CHAT\n")
	if len(bundle.RecentChat) == 0 {
		b.WriteString("(none)\n")
	}
	for _, msg := range bundle.RecentChat {
		fmt.Fprintf(&b, "[%s] %s\n", msg.Role, msg.Content)
	}

	fmt.Fprintf(&b, "\nADVISOR QUESTION: %s\n", question)
	return b.String()
}
