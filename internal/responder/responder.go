package responder

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"medassist/internal/consent"
	"medassist/internal/docstore"
	"medassist/internal/intent"
	"medassist/internal/memory"
	"medassist/internal/models"
	"medassist/internal/storage"
)

const medicalPromptTemplate = `You are a medical information assistant. Answer the question using ONLY the reference documents below. If the documents do not contain the answer, say you do not have that information. Never claim knowledge of the user's identity or medical records beyond what is explicitly provided, and never guess personal facts. End with a reminder to consult a healthcare professional for personal medical advice.%s

%sReference documents:
%s

Question: %s`

const generalKnowledgePromptTemplate = `You are a medical information assistant. No reference documents matched this question. Answer briefly and cautiously from general medical knowledge, never state facts you are not sure of, and recommend consulting a healthcare professional. Never claim knowledge of the user's identity or medical records beyond what is explicitly provided.%s

%sQuestion: %s`

const generalChatPromptTemplate = `Reply to this greeting or small talk in one or two friendly sentences, and mention that you can answer health-related questions.%s

%sMessage: %s`

// completer is the LLM surface the responder needs.
type completer interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}

// searcher is the retrieval surface the responder needs.
type searcher interface {
	Search(ctx context.Context, query string, k int) ([]docstore.Result, error)
}

// Responder runs the full message pipeline: consent gate, intent
// classification, retrieval and response generation, with every turn
// recorded in the chat log.
type Responder struct {
	gate       *consent.Gate
	classifier *intent.Classifier
	memStore   *memory.Store
	docs       searcher
	llm        completer
	turns      *storage.TurnStore

	batchPairs int
	cacheTTL   time.Duration
	topK       int
}

type Config struct {
	BatchPairs int
	CacheTTL   time.Duration
	TopK       int
}

func New(gate *consent.Gate, classifier *intent.Classifier, memStore *memory.Store, docs searcher, llm completer, turns *storage.TurnStore, cfg Config) *Responder {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &Responder{
		gate:       gate,
		classifier: classifier,
		memStore:   memStore,
		docs:       docs,
		llm:        llm,
		turns:      turns,
		batchPairs: cfg.BatchPairs,
		cacheTTL:   cfg.CacheTTL,
		topK:       cfg.TopK,
	}
}

// Respond handles one user message end to end and returns the reply.
// turnID is the request's idempotency token: a replayed request returns
// the recorded response without re-running the pipeline.
func (r *Responder) Respond(ctx context.Context, userID int64, sessionID, turnID, message, language string) (string, error) {
	if prior, err := r.turns.Get(ctx, turnID); err != nil {
		log.Printf("check turn %s: %v", turnID, err)
	} else if prior != nil && prior.UserID == userID {
		return prior.Response, nil
	}

	decision, err := r.gate.Evaluate(ctx, userID, message)
	if err != nil {
		return "", fmt.Errorf("evaluate consent: %w", err)
	}

	switch decision {
	case consent.Prompt:
		reply := translate(language, "consent_prompt")
		r.recordTurn(ctx, turnID, userID, sessionID, message, reply, "")
		return reply, nil
	case consent.Confirmed:
		reply := translate(language, "consent_confirmed")
		r.recordTurn(ctx, turnID, userID, sessionID, message, reply, "")
		return reply, nil
	}

	mem := memory.New(userID, r.memStore, r.llm, r.batchPairs, r.cacheTTL)
	mem.Load(ctx)

	prevIntent, err := r.turns.LastIntent(ctx, userID)
	if err != nil {
		log.Printf("load last intent for user %d: %v", userID, err)
		prevIntent = ""
	}

	msgIntent := r.classifier.Classify(ctx, message, intent.Intent(prevIntent))

	var reply string
	switch msgIntent {
	case intent.Medical:
		reply, err = r.answerMedical(ctx, mem, message, language)
		if err != nil {
			return "", err
		}
	case intent.Ambiguous:
		question := r.classifier.ClarificationQuestion(ctx, message)
		reply = clarificationMenu(language, question)
	case intent.Other:
		reply = translate(language, "not_medical")
	default:
		reply = r.answerGeneralChat(ctx, mem, message, language)
	}

	mem.AddMessage(ctx, message, reply)
	r.recordTurn(ctx, turnID, userID, sessionID, message, reply, string(msgIntent))
	return reply, nil
}

// InitialMessage returns the greeting for a new session. Users without
// consent on record also get the consent prompt.
func (r *Responder) InitialMessage(ctx context.Context, userID int64, language string) (string, error) {
	record, err := r.gate.Lookup(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("look up consent: %w", err)
	}
	welcome := translate(language, "welcome")
	if record == nil || !record.Accepted {
		return welcome + "\n\n" + translate(language, "consent_prompt"), nil
	}
	return welcome, nil
}

// Summary returns the user's current rolling conversation summary.
func (r *Responder) Summary(ctx context.Context, userID int64) string {
	mem := memory.New(userID, r.memStore, r.llm, r.batchPairs, r.cacheTTL)
	mem.Load(ctx)
	return mem.Summary()
}

func (r *Responder) answerMedical(ctx context.Context, mem *memory.Memory, message, language string) (string, error) {
	results, err := r.docs.Search(ctx, message, r.topK)
	if err != nil {
		log.Printf("search documents: %v", err)
		results = nil
	}

	memBlock := ""
	if memCtx := mem.Context(); memCtx != "" {
		memBlock = memCtx + "\n\n"
	}

	var prompt string
	if len(results) == 0 {
		prompt = fmt.Sprintf(generalKnowledgePromptTemplate, languageInstruction(language), memBlock, message)
	} else {
		var docs strings.Builder
		for i, res := range results {
			fmt.Fprintf(&docs, "%d. %s\n", i+1, res.Content)
		}
		prompt = fmt.Sprintf(medicalPromptTemplate, languageInstruction(language), memBlock, strings.TrimRight(docs.String(), "\n"), message)
	}

	reply, err := r.llm.Complete(ctx, prompt, 0.3)
	if err != nil {
		return "", fmt.Errorf("generate medical answer: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func (r *Responder) answerGeneralChat(ctx context.Context, mem *memory.Memory, message, language string) string {
	memBlock := ""
	if memCtx := mem.Context(); memCtx != "" {
		memBlock = memCtx + "\n\n"
	}
	prompt := fmt.Sprintf(generalChatPromptTemplate, languageInstruction(language), memBlock, message)
	reply, err := r.llm.Complete(ctx, prompt, 0.7)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			log.Printf("generate general chat reply: %v", err)
		}
		return translate(language, "general_chat")
	}
	return strings.TrimSpace(reply)
}

func (r *Responder) recordTurn(ctx context.Context, turnID string, userID int64, sessionID, message, reply, intentStr string) {
	if turnID == "" {
		turnID = uuid.NewString()
	}
	turn := &models.ConversationTurn{
		ID:        turnID,
		UserID:    userID,
		SessionID: sessionID,
		Message:   message,
		Response:  reply,
		Intent:    intentStr,
	}
	if err := r.turns.Save(ctx, turn); err != nil {
		log.Printf("record turn for user %d: %v", userID, err)
	}
}

func languageInstruction(language string) string {
	if language == "hi" {
		return " Respond in Hindi."
	}
	return ""
}
