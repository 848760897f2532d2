// Package ai asks a generative model for follow-up test suggestions and chat replies.
package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/model"
)

// LargeResponseThreshold is the response size above which analysis is skipped.
const LargeResponseThreshold = 100 * 1024

// Generator is the model backend. Suggest must return a JSON array document.
type Generator interface {
	Suggest(ctx context.Context, credential, prompt string) (string, error)
	Chat(ctx context.Context, credential, system, prompt string) (string, error)
}

type ResultKind int

const (
	Failed ResultKind = iota
	Suggestions
	SkippedLarge
)

func (k ResultKind) String() string {
	switch k {
	case Suggestions:
		return "suggestions"
	case SkippedLarge:
		return "skipped-large"
	default:
		return "failed"
	}
}

// Result is the outcome of one analysis. Err is set only for Failed.
type Result struct {
	Kind        ResultKind
	Suggestions []model.Suggestion
	Err         error
}

type Analyzer struct {
	gen       Generator
	threshold int64
}

func NewAnalyzer(gen Generator) *Analyzer {
	return &Analyzer{gen: gen, threshold: LargeResponseThreshold}
}

// Analyze never returns an error; every failure is a Failed result.
func (a *Analyzer) Analyze(
	ctx context.Context,
	req model.Request,
	resp model.Response,
	history []model.Request,
	credential string,
	extra string,
) Result {
	if strings.TrimSpace(credential) == "" {
		return failed(errdef.New(errdef.CodeAI, "ai credential is missing"))
	}
	if resp.Size > a.threshold {
		return Result{Kind: SkippedLarge}
	}
	if a.gen == nil {
		return failed(errdef.New(errdef.CodeAI, "ai generator unavailable"))
	}

	text, err := a.gen.Suggest(ctx, credential, BuildPrompt(req, resp, history, extra))
	if err != nil {
		return failed(errdef.Wrap(errdef.CodeAI, err, "generate suggestions"))
	}
	suggestions, err := ParseSuggestions(text)
	if err != nil {
		return failed(err)
	}
	return Result{Kind: Suggestions, Suggestions: suggestions}
}

func failed(err error) Result {
	return Result{Kind: Failed, Err: err}
}

// ParseSuggestions decodes a model reply. An empty array is a valid result.
func ParseSuggestions(text string) ([]model.Suggestion, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var out []model.Suggestion
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, errdef.Wrap(errdef.CodeAI, err, "decode suggestions")
	}
	if out == nil {
		out = []model.Suggestion{}
	}
	return out, nil
}

// Chat returns the assistant's reply to prompt.
func (a *Analyzer) Chat(ctx context.Context, prompt, credential string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", errdef.New(errdef.CodeAI, "ai credential is missing")
	}
	if a.gen == nil {
		return "", errdef.New(errdef.CodeAI, "ai generator unavailable")
	}
	reply, err := a.gen.Chat(ctx, credential, chatSystemInstruction, prompt)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeAI, err, "chat")
	}
	return reply, nil
}
