package assistant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpret_NoEscalation(t *testing.T) {
	reply := "Photosynthesis converts light energy into chemical energy stored in glucose. " +
		"Plants use chlorophyll in their chloroplasts to capture sunlight and combine carbon dioxide with water."

	interp := Interpret(reply, "how does photosynthesis work?")

	assert.Equal(t, reply, interp.Text)
	assert.False(t, interp.NeedsEscalationConfirmation)
	assert.Nil(t, interp.TutorModule)
}

func TestInterpret_KeywordInMessageTriggersConfirmation(t *testing.T) {
	interp := Interpret("Sure, happy to help with that.", "I need human help with this")

	assert.True(t, interp.NeedsEscalationConfirmation)
	assert.Contains(t, interp.Text, "Would you like me to connect you with a human tutor")
	assert.Contains(t, interp.Text, "Sure, happy to help with that.")
}

func TestInterpret_MarkerInReplyTriggersConfirmation(t *testing.T) {
	interp := Interpret("This is complex, I should escalate it.", "explain this proof")

	assert.True(t, interp.NeedsEscalationConfirmation)
}

func TestInterpret_ConfirmationIncludesDetectedModule(t *testing.T) {
	interp := Interpret("Let me escalate this.", "I'm stuck on my database assignment")

	require.NotNil(t, interp.TutorModule)
	assert.Equal(t, "BCS202", *interp.TutorModule)
	assert.Contains(t, interp.Text, "human tutor for BCS202")
}

func TestInterpret_EscalationSuggestions(t *testing.T) {
	interp := Interpret("I'll escalate this.", "urgent help please")

	assert.Equal(t, []string{"Find a tutor", "Browse topics", "Post in forum"}, interp.Suggestions)
}

func TestInterpret_CaseInsensitiveKeywords(t *testing.T) {
	interp := Interpret("Of course.", "I want to SPEAK TO TUTOR now")

	assert.True(t, interp.NeedsEscalationConfirmation)
}

func TestDetectModule_FirstRouteWins(t *testing.T) {
	// "algorithms" routes to BCS102 even though "database" appears later in
	// the routing table.
	module := DetectModule("comparing algorithms for database joins")

	require.NotNil(t, module)
	assert.Equal(t, "BCS102", *module)
}

func TestDetectModule_NoMatch(t *testing.T) {
	assert.Nil(t, DetectModule("what time does the library open?"))
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  float64
	}{
		{"uncertain reply", "I don't know how that works.", 0.3},
		{"not sure reply", "I'm not sure about this one.", 0.3},
		{"escalation marker", "You should contact a tutor about this.", 0.6},
		{"long confident reply", strings.Repeat("The answer is detailed and complete. ", 5), 0.9},
		{"long apologetic reply", "Sorry, " + strings.Repeat("this is a long reply with an apology in it. ", 4), 0.7},
		{"short neutral reply", "Yes.", 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ConfidenceScore(tt.reply), 0.001)
		})
	}
}

func TestConfidenceScore_UncertaintyBeatsLength(t *testing.T) {
	reply := "I don't know, " + strings.Repeat("although here is a lot of surrounding text. ", 5)
	assert.InDelta(t, 0.3, ConfidenceScore(reply), 0.001)
}

func TestSuggestions_CappedAtThree(t *testing.T) {
	for _, text := range []string{
		"about your module",
		"about your assignment",
		"study tips",
		"anything else",
	} {
		s := Suggestions(text, false)
		assert.LessOrEqual(t, len(s), 3)
		assert.NotEmpty(t, s)
	}
}

func TestApologyResponse(t *testing.T) {
	text, suggestions := ApologyResponse()

	assert.Contains(t, text, "trouble connecting")
	assert.Len(t, suggestions, 3)
}
