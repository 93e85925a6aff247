package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"medassist/internal/models"
)

const summarizePromptTemplate = `Summarize this medical conversation in 5-10 sentences. Keep only clinically relevant information.

%s`

const mergePromptTemplate = `Merge these two medical conversation summaries into one concise summary (5-10 sentences max).

Earlier summary:
%s

New summary:
%s`

// completer is the LLM surface the memory layer needs for collapsing
// batches.
type completer interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Memory holds one user's conversation state: a rolling summary of
// older turns plus a small batch of verbatim recent messages. When the
// batch reaches its size limit it is summarized and folded into the
// rolling summary.
type Memory struct {
	userID    int64
	store     *Store
	llm       completer
	batchSize int
	cacheTTL  time.Duration

	recent  []models.Message
	summary string
}

// New builds a Memory for one user. batchPairs is the number of
// user/assistant pairs kept verbatim before a collapse; cacheTTL is how
// long a stored summary stays valid.
func New(userID int64, store *Store, llm completer, batchPairs int, cacheTTL time.Duration) *Memory {
	if batchPairs <= 0 {
		batchPairs = 2
	}
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &Memory{
		userID:    userID,
		store:     store,
		llm:       llm,
		batchSize: batchPairs * 2,
		cacheTTL:  cacheTTL,
	}
}

// Load restores the user's state from the store. A summary row older
// than the TTL, or one that never got a timestamp, is treated as
// expired and deleted; the recent batch is restored independently of
// the summary's fate. Store errors leave the state empty rather than
// failing the request.
func (m *Memory) Load(ctx context.Context) {
	m.summary = ""
	m.recent = nil

	summary, updatedAt, found, err := m.store.LoadSummary(ctx, m.userID)
	switch {
	case err != nil:
		log.Printf("load summary for user %d: %v", m.userID, err)
	case !found:
		// nothing stored
	case updatedAt.IsZero() || time.Since(updatedAt) > m.cacheTTL:
		if err := m.store.DeleteSummary(ctx, m.userID); err != nil {
			log.Printf("expire summary for user %d: %v", m.userID, err)
		}
	default:
		m.summary = summary
	}

	batch, err := m.store.LoadBatch(ctx, m.userID)
	if err != nil {
		log.Printf("load batch for user %d: %v", m.userID, err)
		return
	}
	m.recent = batch
}

// AddMessage appends a completed user/assistant exchange and persists
// the state. When the batch reaches its limit it is collapsed into the
// rolling summary.
func (m *Memory) AddMessage(ctx context.Context, userMsg, botResp string) {
	m.recent = append(m.recent,
		models.Message{Role: models.RoleUser, Content: userMsg},
		models.Message{Role: models.RoleAssistant, Content: botResp},
	)

	if len(m.recent) < m.batchSize {
		if err := m.store.SaveBatch(ctx, m.userID, m.recent); err != nil {
			log.Printf("persist batch for user %d: %v", m.userID, err)
		}
		return
	}

	m.collapse(ctx)
}

// collapse summarizes the batch, merges it with any prior summary and
// resets the batch. Model failures degrade to placeholder text so the
// conversation never stalls.
func (m *Memory) collapse(ctx context.Context) {
	batchSummary, err := m.llm.Complete(ctx, fmt.Sprintf(summarizePromptTemplate, transcript(m.recent)), 0.3)
	if err != nil || strings.TrimSpace(batchSummary) == "" {
		if err != nil {
			log.Printf("summarize batch for user %d: %v", m.userID, err)
		}
		batchSummary = fmt.Sprintf("Discussed %d messages", len(m.recent))
	}
	batchSummary = strings.TrimSpace(batchSummary)

	if m.summary != "" {
		merged, err := m.llm.Complete(ctx, fmt.Sprintf(mergePromptTemplate, m.summary, batchSummary), 0.3)
		if err != nil || strings.TrimSpace(merged) == "" {
			if err != nil {
				log.Printf("merge summaries for user %d: %v", m.userID, err)
			}
			merged = m.summary + " " + batchSummary
		}
		m.summary = strings.TrimSpace(merged)
	} else {
		m.summary = batchSummary
	}

	m.recent = nil

	if err := m.store.SaveSummary(ctx, m.userID, m.summary); err != nil {
		log.Printf("persist summary for user %d: %v", m.userID, err)
	}
	if err := m.store.SaveBatch(ctx, m.userID, nil); err != nil {
		log.Printf("clear batch for user %d: %v", m.userID, err)
	}
}

// Context renders the state for inclusion in a prompt. Returns "" when
// there is nothing to include.
func (m *Memory) Context() string {
	var b strings.Builder
	if m.summary != "" {
		b.WriteString("[Summary of earlier conversation]\n")
		b.WriteString(m.summary)
	}
	if len(m.recent) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[Recent conversation]\n")
		b.WriteString(transcript(m.recent))
	}
	return b.String()
}

// Summary exposes the current rolling summary.
func (m *Memory) Summary() string {
	return m.summary
}

func transcript(msgs []models.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		label := "User"
		if msg.Role == models.RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, label+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}
