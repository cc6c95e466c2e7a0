// Package analysis asks a chat model to pick the best commander
// candidates for a deck strategy, on top of the similarity search's
// shortlist.
package analysis

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/deckforge/cardindex/internal/domain"
)

// DefaultModel is used when the configuration does not name one.
const DefaultModel = openai.GPT4oMini

// Response line markers the model is instructed to emit.
const (
	selectedMarker = "SELECTED:"
	searchMarker   = "SEARCH:"
)

// chatCompleter is the slice of the OpenAI client the analyzer uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Analyzer runs commander analyses. Only one analysis is in flight at a
// time: starting a new one cancels the previous, the newest request
// wins.
type Analyzer struct {
	client chatCompleter
	model  string
	logger *zap.Logger

	mu      sync.Mutex
	current *flight
}

// flight identifies one in-progress analysis so a finished call only
// unregisters itself, never a newer flight that replaced it.
type flight struct {
	cancel context.CancelFunc
}

// Result is the parsed model output: either a selection of commander
// names, or a refined search query the caller should run instead.
type Result struct {
	Selected    []string `json:"selected,omitempty"`
	RefineQuery string   `json:"refine_query,omitempty"`
	Raw         string   `json:"raw"`
}

// New creates an analyzer. With an empty API key the analyzer is
// disabled and every call returns domain.ErrAnalysisUnavailable.
func New(apiKey, model string, logger *zap.Logger) *Analyzer {
	var client chatCompleter
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	return newAnalyzer(client, model, logger)
}

func newAnalyzer(client chatCompleter, model string, logger *zap.Logger) *Analyzer {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{client: client, model: model, logger: logger}
}

// Enabled reports whether an API key was configured.
func (a *Analyzer) Enabled() bool { return a.client != nil }

// AnalyzeCommanders asks the model to pick commanders for the strategy
// from the candidate shortlist. A newer call cancels this one; the
// superseded call returns its context error.
func (a *Analyzer) AnalyzeCommanders(ctx context.Context, strategy string, candidates []domain.Card) (Result, error) {
	if a.client == nil {
		return Result{}, domain.ErrAnalysisUnavailable
	}
	if strategy == "" {
		return Result{}, fmt.Errorf("%w: empty strategy", domain.ErrInvalidQuery)
	}

	ctx, cancel := context.WithCancel(ctx)
	f := a.supersede(cancel)
	defer a.release(f)

	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(strategy, candidates)},
		},
		Temperature: 0.2,
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("analysis superseded: %w", ctx.Err())
		}
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("chat completion: empty response")
	}

	result := parseResponse(resp.Choices[0].Message.Content)
	a.logger.Debug("Commander analysis completed",
		zap.Int("selected", len(result.Selected)),
		zap.Bool("refine", result.RefineQuery != ""),
	)
	return result, nil
}

// supersede cancels any in-flight analysis and registers this one.
func (a *Analyzer) supersede(cancel context.CancelFunc) *flight {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		a.current.cancel()
	}
	f := &flight{cancel: cancel}
	a.current = f
	return f
}

// release clears the registration if it still belongs to this call.
func (a *Analyzer) release(f *flight) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f.cancel()
	if a.current == f {
		a.current = nil
	}
}

const systemPrompt = `You are an expert Magic: The Gathering deck builder.
Given a deck strategy and a list of commander candidates, pick the best
commanders for that strategy. Respond with exactly one line:
SELECTED: <name>; <name>; <name>
Or, if none of the candidates fit and a different search would help:
SEARCH: <a better search query>`

func buildPrompt(strategy string, candidates []domain.Card) string {
	var b strings.Builder
	b.WriteString("Deck strategy: ")
	b.WriteString(strategy)
	b.WriteString("\n\nCandidates:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s (%s, %s)\n", c.Name, c.TypeLine, c.ColorKey())
	}
	return b.String()
}

// parseResponse scans the reply for the SELECTED or SEARCH marker.
// SELECTED wins when both appear; a reply with neither is returned raw
// with no selection.
func parseResponse(content string) Result {
	result := Result{Raw: content}
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, selectedMarker):
			rest := strings.TrimSpace(strings.TrimPrefix(line, selectedMarker))
			for _, name := range strings.Split(rest, ";") {
				if name = strings.TrimSpace(name); name != "" {
					result.Selected = append(result.Selected, name)
				}
			}
			return result
		case strings.HasPrefix(line, searchMarker) && result.RefineQuery == "":
			result.RefineQuery = strings.TrimSpace(strings.TrimPrefix(line, searchMarker))
		}
	}
	return result
}
