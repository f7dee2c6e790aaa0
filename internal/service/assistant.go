package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuslearn/escalation-platform/internal/assistant"
	"github.com/campuslearn/escalation-platform/internal/model"
	"github.com/campuslearn/escalation-platform/pkg/logger"
	"github.com/campuslearn/escalation-platform/pkg/metrics"
)

// institutionalDomains are the email domains student numbers are extracted
// from; the local part must be all digits.
var institutionalDomains = []string{
	"@student.belgiumcampus.ac.za",
	"@belgiumcampus.ac.za",
}

const historyInstruction = "This is a follow-up message in an ongoing conversation. " +
	"Use the conversation history above for context."

// AssistantGateway builds prompts from user profile and windowed history,
// calls the completion provider, and interprets the reply for escalation
// signals and routing hints. It never escalates on its own and never lets a
// provider failure cross its boundary.
type AssistantGateway struct {
	client assistant.Client
	logger *logger.Logger
}

// NewAssistantGateway creates a new gateway over the given provider.
func NewAssistantGateway(client assistant.Client, log *logger.Logger) *AssistantGateway {
	return &AssistantGateway{
		client: client,
		logger: log,
	}
}

// SendMessage sends one user message with profile and history context and
// returns the interpreted response. Transport or parse failures yield a
// static apology response with escalation disabled.
func (g *AssistantGateway) SendMessage(
	ctx context.Context,
	message string,
	profile *model.UserProfile,
	history []model.Message,
	conversationID string,
) *model.AssistantResponse {
	window := windowHistory(history)
	req := &assistant.Request{
		Question: message,
		Context:  buildContext(profile),
		History:  window,
		Prompt:   buildPrompt(buildContext(profile), window, message),
	}
	if profile != nil {
		req.UserRole = profile.Role
		req.UserModules = profile.Modules
	}
	if req.UserRole == "" {
		req.UserRole = "student"
	}

	start := time.Now()
	reply, err := g.client.Complete(ctx, req)
	metrics.AssistantRequestDuration.WithLabelValues(g.client.Name(), statusLabel(err)).
		Observe(time.Since(start).Seconds())

	if err != nil {
		g.logger.Error("assistant call failed",
			zap.String("conversation_id", conversationID),
			zap.String("provider", g.client.Name()),
			zap.Error(err))

		text, suggestions := assistant.ApologyResponse()
		return &model.AssistantResponse{
			Text:        text,
			Suggestions: suggestions,
			Escalated:   false,
		}
	}

	interp := assistant.Interpret(reply, message)
	return &model.AssistantResponse{
		Text:                        interp.Text,
		Suggestions:                 interp.Suggestions,
		Escalated:                   false, // escalation always waits for confirmation
		NeedsEscalationConfirmation: interp.NeedsEscalationConfirmation,
		TutorModule:                 interp.TutorModule,
		Confidence:                  interp.Confidence,
	}
}

// windowHistory keeps the trailing context window and converts it to
// provider turns.
func windowHistory(history []model.Message) []assistant.Turn {
	if len(history) > model.HistoryWindow {
		history = history[len(history)-model.HistoryWindow:]
	}

	turns := make([]assistant.Turn, len(history))
	for i, msg := range history {
		role := "user"
		if msg.IsFromAssistant {
			role = "assistant"
		}
		turns[i] = assistant.Turn{Role: role, Content: msg.Content}
	}
	return turns
}

// buildContext produces the profile summary the assistant is primed with.
func buildContext(profile *model.UserProfile) string {
	var b strings.Builder
	b.WriteString("You are CampusLearn AI Assistant, helping Belgium Campus students with academic support.\n\n")

	if profile != nil {
		b.WriteString("User Information:\n")
		b.WriteString("- Role: " + profile.Role + "\n")
		b.WriteString("- Name: " + profile.FirstName + " " + profile.LastName + "\n")
		if len(profile.Modules) > 0 {
			b.WriteString("- Modules: " + strings.Join(profile.Modules, ", ") + "\n")
		}
		if profile.Role == "student" {
			if number := extractStudentNumber(profile.Email); number != "" {
				b.WriteString("- Student Number: " + number + "\n")
			}
		}
	}

	b.WriteString("\nCampusLearn Platform Features:\n")
	b.WriteString("- Topics: Students can create topics and get help from tutors\n")
	b.WriteString("- Forum: Public discussion forum for academic questions\n")
	b.WriteString("- Messaging: Private messaging with tutors\n")
	b.WriteString("- Resources: Learning materials, videos, PDFs\n")
	b.WriteString("- Modules: BCom, BIT, Diploma programs\n\n")

	b.WriteString("Your capabilities:\n")
	b.WriteString("- Answer FAQs about campus, modules, and platform\n")
	b.WriteString("- Provide study tips and academic guidance\n")
	b.WriteString("- Help with platform navigation\n")
	b.WriteString("- Escalate complex questions to human tutors\n")
	b.WriteString("- Suggest relevant topics and resources\n\n")

	return b.String()
}

// buildPrompt concatenates context, formatted history and the new message
// for providers that only accept a single prompt string.
func buildPrompt(context string, history []assistant.Turn, message string) string {
	var b strings.Builder
	b.WriteString(context)

	for _, turn := range history {
		if turn.Role == "assistant" {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	if len(history) > 0 {
		b.WriteString(historyInstruction)
		b.WriteString("\n")
	}

	b.WriteString("User: ")
	b.WriteString(message)
	return b.String()
}

// extractStudentNumber pulls a student number from an institutional email;
// the local part must be all digits.
func extractStudentNumber(email string) string {
	for _, domain := range institutionalDomains {
		if !strings.Contains(email, domain) {
			continue
		}
		local := strings.SplitN(email, "@", 2)[0]
		if local == "" {
			return ""
		}
		for _, r := range local {
			if r < '0' || r > '9' {
				return ""
			}
		}
		return local
	}
	return ""
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
