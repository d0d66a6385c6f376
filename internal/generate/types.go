package generate

import "context"

// ChannelContext is the slice of channel metadata the generators see.
type ChannelContext struct {
	ID      string
	Name    string
	Context string // operator-written description of the channel's niche/voice
}

// Idea is one candidate video concept.
type Idea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PromptResult is the structured output of prompt generation: the prompt fed
// to the render pipeline plus a human-facing title.
type PromptResult struct {
	RenderPrompt string `json:"render_prompt"`
	DisplayTitle string `json:"display_title"`
}

// IdeaGenerator produces a batch of candidate ideas for a channel.
// previousIdea, when non-empty, is passed so the provider can steer away
// from repeating it.
type IdeaGenerator interface {
	GenerateIdeas(ctx context.Context, ch ChannelContext, previousIdea string, count int) ([]Idea, error)
}

// PromptGenerator expands a selected idea into a render prompt.
type PromptGenerator interface {
	GeneratePrompt(ctx context.Context, ch ChannelContext, idea Idea) (PromptResult, error)
}
