package intent

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Intent is the routing category assigned to an incoming message.
type Intent string

const (
	Medical     Intent = "MEDICAL"
	GeneralChat Intent = "GENERAL_CHAT"
	Ambiguous   Intent = "AMBIGUOUS"
	Other       Intent = "OTHER"
)

// acknowledgments short-circuit classification to GENERAL_CHAT when the
// whole message is one of these.
var acknowledgments = []string{
	"ok", "okay", "thanks", "thank you", "yes", "no",
	"got it", "sure", "alright", "fine",
}

// followUpPhrases keep a message in the medical lane when the previous
// turn was medical. Multi-word phrases match as substrings.
var followUpPhrases = []string{
	"what to do", "what should i do", "tell me more",
}

// followUpWords are single-token continuations. They must match whole
// words only: "it" as a substring would fire on "with", "and" on
// "understand".
var followUpWords = map[string]bool{
	"same": true, "above": true, "that": true,
	"it": true, "this": true, "more": true, "and": true,
}

const classifyPromptTemplate = `Classify the user's message into exactly one of these categories:

MEDICAL: questions about symptoms, conditions, treatments, medications, or any health topic.
Examples: "What is normal blood pressure?", "I have a headache", "Can I take ibuprofen with food?"

GENERAL_CHAT: greetings, small talk, pleasantries.
Examples: "Hello", "How are you?", "Good morning"

AMBIGUOUS: too vague to tell whether it is medical.
Examples: "I need help", "Can you help me with something?", "I have a question"

OTHER: clearly unrelated to health.
Examples: "What's the weather today?", "Tell me a joke", "Who won the match?"

Reply with only the category name.

Message: %s`

const clarificationPromptTemplate = `The user sent a vague message: %s

Write one short friendly question asking what they need help with. Do not answer the message, only ask for clarification.`

// completer is the LLM surface the classifier needs.
type completer interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Classifier assigns intents with deterministic pre-filters ahead of a
// model call.
type Classifier struct {
	llm completer
}

func NewClassifier(llm completer) *Classifier {
	return &Classifier{llm: llm}
}

// Classify determines the intent of a message. prevIntent is the intent
// recorded for the user's previous turn ("" when there is none). The
// pre-filters run in order: acknowledgment, menu digit after an
// ambiguous turn, follow-up phrase after a medical turn. Only then is
// the model consulted; on model failure the message is treated as
// general chat.
func (c *Classifier) Classify(ctx context.Context, message string, prevIntent Intent) Intent {
	normalized := strings.ToLower(strings.TrimSpace(message))
	trimmed := strings.Trim(normalized, ".!?")

	for _, ack := range acknowledgments {
		if trimmed == ack {
			return GeneralChat
		}
	}

	if prevIntent == Ambiguous {
		switch trimmed {
		case "1":
			return Medical
		case "2", "3":
			return Other
		}
	}

	if prevIntent == Medical && isFollowUp(normalized) {
		return Medical
	}

	reply, err := c.llm.Complete(ctx, fmt.Sprintf(classifyPromptTemplate, message), 0)
	if err != nil {
		log.Printf("classify intent: %v", err)
		return GeneralChat
	}
	return parseIntent(reply)
}

// ClarificationQuestion asks the model to phrase a clarifying question
// for an ambiguous message, with a fixed fallback on failure.
func (c *Classifier) ClarificationQuestion(ctx context.Context, message string) string {
	reply, err := c.llm.Complete(ctx, fmt.Sprintf(clarificationPromptTemplate, message), 0.7)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			log.Printf("generate clarification: %v", err)
		}
		return "Could you clarify what you're asking about?"
	}
	return strings.TrimSpace(reply)
}

func isFollowUp(normalized string) bool {
	for _, phrase := range followUpPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	for _, word := range strings.Fields(normalized) {
		if followUpWords[strings.Trim(word, ".,!?\"'")] {
			return true
		}
	}
	return false
}

func parseIntent(reply string) Intent {
	upper := strings.ToUpper(reply)
	for _, intent := range []Intent{Medical, GeneralChat, Ambiguous, Other} {
		if strings.Contains(upper, string(intent)) {
			return intent
		}
	}
	return GeneralChat
}
