package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// Gemini implements IdeaGenerator and PromptGenerator on top of the Gemini
// API. Both calls request JSON output and parse it leniently (models
// occasionally wrap JSON in a markdown fence).
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

type GeminiConfig struct {
	APIKey  string
	Model   string        // default: gemini-2.0-flash
	Timeout time.Duration // per-call bound; default 60s
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("genai api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model, timeout: timeout}, nil
}

func (g *Gemini) GenerateIdeas(ctx context.Context, ch ChannelContext, previousIdea string, count int) ([]Idea, error) {
	if count <= 0 {
		count = 5
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are the content planner for %q, a short-form AI-video channel.\n", ch.Name)
	if strings.TrimSpace(ch.Context) != "" {
		fmt.Fprintf(&b, "Channel description: %s\n", strings.TrimSpace(ch.Context))
	}
	if strings.TrimSpace(previousIdea) != "" {
		fmt.Fprintf(&b, "The previous video was about: %s\nDo not repeat it.\n", strings.TrimSpace(previousIdea))
	}
	fmt.Fprintf(&b, "Propose %d distinct video ideas.\n", count)
	b.WriteString(`Answer with a JSON array only: [{"title": "...", "description": "..."}]`)

	raw, err := g.complete(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("idea generation: %w", err)
	}

	var ideas []Idea
	if err := json.Unmarshal(stripFence(raw), &ideas); err != nil {
		return nil, fmt.Errorf("idea generation: parse response: %w", err)
	}
	out := ideas[:0]
	for _, it := range ideas {
		if strings.TrimSpace(it.Title) == "" {
			continue
		}
		out = append(out, it)
	}
	if len(out) == 0 {
		return nil, errors.New("idea generation: provider returned no usable ideas")
	}
	return out, nil
}

func (g *Gemini) GeneratePrompt(ctx context.Context, ch ChannelContext, idea Idea) (PromptResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You write video-generation prompts for %q, a short-form AI-video channel.\n", ch.Name)
	if strings.TrimSpace(ch.Context) != "" {
		fmt.Fprintf(&b, "Channel description: %s\n", strings.TrimSpace(ch.Context))
	}
	fmt.Fprintf(&b, "Idea title: %s\nIdea description: %s\n", idea.Title, idea.Description)
	b.WriteString("Write a detailed, self-contained prompt for a text-to-video model, and a short display title.\n")
	b.WriteString(`Answer with a JSON object only: {"render_prompt": "...", "display_title": "..."}`)

	raw, err := g.complete(ctx, b.String())
	if err != nil {
		return PromptResult{}, fmt.Errorf("prompt generation: %w", err)
	}

	var res PromptResult
	if err := json.Unmarshal(stripFence(raw), &res); err != nil {
		return PromptResult{}, fmt.Errorf("prompt generation: parse response: %w", err)
	}
	if strings.TrimSpace(res.RenderPrompt) == "" {
		return PromptResult{}, errors.New("prompt generation: empty render prompt")
	}
	if strings.TrimSpace(res.DisplayTitle) == "" {
		res.DisplayTitle = idea.Title
	}
	return res, nil
}

func (g *Gemini) complete(ctx context.Context, prompt string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(cctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(s string) []byte {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```json")
		t = strings.TrimPrefix(t, "```")
		t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	}
	return []byte(strings.TrimSpace(t))
}
