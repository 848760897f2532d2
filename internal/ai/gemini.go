package ai

import (
	"context"
	"sync"

	"google.golang.org/genai"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
)

const DefaultModel = "gemini-2.5-flash"

// Gemini generates content through the Gemini API. Clients are created lazily
// per credential.
type Gemini struct {
	model string

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGemini(model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{model: model, clients: make(map[string]*genai.Client)}
}

func (g *Gemini) client(ctx context.Context, credential string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[credential]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeAI, err, "create gemini client")
	}
	g.clients[credential] = c
	return c, nil
}

func (g *Gemini) Suggest(ctx context.Context, credential, prompt string) (string, error) {
	c, err := g.client(ctx, credential)
	if err != nil {
		return "", err
	}
	resp, err := c.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   suggestionSchema(),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (g *Gemini) Chat(ctx context.Context, credential, system, prompt string) (string, error) {
	c, err := g.client(ctx, credential)
	if err != nil {
		return "", err
	}
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := c.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func keyValueSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"id":      {Type: genai.TypeString},
				"key":     {Type: genai.TypeString},
				"value":   {Type: genai.TypeString},
				"enabled": {Type: genai.TypeBoolean},
			},
		},
	}
}

func suggestionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"suggestionText": {
					Type:        genai.TypeString,
					Description: `A short, button-friendly text for the suggestion, e.g., "Test with an invalid ID".`,
				},
				"apiRequest": {
					Type:        genai.TypeObject,
					Description: "A fully configured API request object for the new test.",
					Properties: map[string]*genai.Schema{
						"name":        {Type: genai.TypeString, Description: "A descriptive name for the new test request."},
						"protocol":    {Type: genai.TypeString},
						"url":         {Type: genai.TypeString},
						"method":      {Type: genai.TypeString},
						"headers":     keyValueSchema(),
						"queryParams": keyValueSchema(),
						"body":        {Type: genai.TypeString, Description: "The request body, as a string (e.g., JSON stringified)."},
					},
				},
			},
		},
	}
}
