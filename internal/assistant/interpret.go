package assistant

import (
	"fmt"
	"strings"
)

// escalationKeywords are phrases in the student's message that signal a
// request for human help.
var escalationKeywords = []string{
	"specific tutor", "human help", "personal assistance", "contact tutor",
	"assignment help", "project help", "urgent help", "emergency",
	"escalate to tutor", "need human", "speak to tutor",
}

// replyEscalationMarkers are phrases in the assistant's own reply that
// signal it wants to hand off.
var replyEscalationMarkers = []string{"escalate", "contact tutor"}

// moduleRoute maps a module code to the keywords that select it. Routes are
// evaluated in order; the first match wins.
type moduleRoute struct {
	Code     string
	Keywords []string
}

var moduleRoutes = []moduleRoute{
	{"BCS101", []string{"bcs101", "programming fundamentals", "intro to programming"}},
	{"BCS102", []string{"bcs102", "data structures", "algorithms"}},
	{"BCS201", []string{"bcs201", "software engineering", "software development"}},
	{"BCS202", []string{"bcs202", "database", "sql", "database management"}},
	{"DIP101", []string{"dip101", "diploma", "foundation"}},
	{"BCom", []string{"bcom", "business", "commerce", "management"}},
}

// confidenceRule scores a reply; rules are evaluated in order and the first
// match wins.
type confidenceRule struct {
	Match func(reply string) bool
	Score float64
}

var confidenceRules = []confidenceRule{
	{func(r string) bool {
		return strings.Contains(r, "i don't know") || strings.Contains(r, "i'm not sure")
	}, 0.3},
	{func(r string) bool {
		return strings.Contains(r, "escalate") || strings.Contains(r, "tutor")
	}, 0.6},
	{func(r string) bool {
		return len(r) > 100 && !strings.Contains(r, "sorry")
	}, 0.9},
}

const fallbackConfidence = 0.7

// Interpretation is the result of interpreting an assistant reply against
// the message that produced it.
type Interpretation struct {
	Text                        string
	Suggestions                 []string
	NeedsEscalationConfirmation bool
	TutorModule                 *string
	Confidence                  float64
}

// Interpret evaluates a raw reply and the original user message. It never
// escalates on its own: when a hand-off is indicated, the reply is extended
// with a confirmation prompt and the caller decides what to do with the
// student's answer.
func Interpret(reply, originalMessage string) Interpretation {
	text := reply
	needsConfirmation := needsEscalation(reply, originalMessage)

	module := DetectModule(originalMessage)

	if needsConfirmation {
		moduleText := ""
		if module != nil {
			moduleText = " for " + *module
		}
		text = fmt.Sprintf("%s\n\n**Would you like me to connect you with a human tutor%s?**\n\n"+
			"I can escalate your question to a qualified tutor who can provide personalized assistance. "+
			"Please confirm if you'd like me to do this.", text, moduleText)
	}

	return Interpretation{
		Text:                        text,
		Suggestions:                 Suggestions(text, needsConfirmation),
		NeedsEscalationConfirmation: needsConfirmation,
		TutorModule:                 module,
		Confidence:                  ConfidenceScore(reply),
	}
}

func needsEscalation(reply, originalMessage string) bool {
	lowerMessage := strings.ToLower(originalMessage)
	for _, keyword := range escalationKeywords {
		if strings.Contains(lowerMessage, keyword) {
			return true
		}
	}

	lowerReply := strings.ToLower(reply)
	for _, marker := range replyEscalationMarkers {
		if strings.Contains(lowerReply, marker) {
			return true
		}
	}
	return false
}

// DetectModule returns the routing hint for the first module whose keyword
// list matches the message, or nil.
func DetectModule(message string) *string {
	lower := strings.ToLower(message)
	for _, route := range moduleRoutes {
		for _, keyword := range route.Keywords {
			if strings.Contains(lower, keyword) {
				code := route.Code
				return &code
			}
		}
	}
	return nil
}

// ConfidenceScore applies the ordered confidence rules to a reply.
func ConfidenceScore(reply string) float64 {
	lower := strings.ToLower(reply)
	for _, rule := range confidenceRules {
		if rule.Match(lower) {
			return rule.Score
		}
	}
	return fallbackConfidence
}

// Suggestions derives up to three follow-up actions from the reply text.
func Suggestions(text string, escalating bool) []string {
	var suggestions []string

	lower := strings.ToLower(text)
	switch {
	case escalating:
		suggestions = []string{"Find a tutor", "Browse topics", "Post in forum"}
	case strings.Contains(lower, "module"):
		suggestions = []string{"Browse modules", "Find tutors", "View resources"}
	case strings.Contains(lower, "assignment"):
		suggestions = []string{"Find assignment help", "Contact tutor", "Browse topics"}
	case strings.Contains(lower, "study"):
		suggestions = []string{"Study resources", "Find study groups", "Browse topics"}
	default:
		suggestions = []string{"Browse topics", "Find tutors", "Check FAQ"}
	}

	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	return suggestions
}

// ApologyResponse is the static response used when the assistant cannot be
// reached; the gateway never lets a transport failure cross its boundary.
func ApologyResponse() (string, []string) {
	return "I'm sorry, I'm having trouble connecting right now. Please try again later or contact a tutor directly.",
		[]string{"Contact a tutor", "Browse topics", "Check FAQ"}
}
