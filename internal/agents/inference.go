package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

// Prompt is a single inference request.
type Prompt struct {
	Role   Role
	System string
	User   string
}

// Text joins the system and user parts into one chat message.
func (p Prompt) Text() string {
	if p.System == "" {
		return p.User
	}
	return p.System + "\n\n" + p.User
}

// Inference is the model handle shared by every consultation.
type Inference interface {
	Infer(ctx context.Context, p Prompt) (string, error)
}

// InferenceFunc adapts an ordinary function to Inference.
type InferenceFunc func(ctx context.Context, p Prompt) (string, error)

func (f InferenceFunc) Infer(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// Backend is the go-agents inference handle. It is built once and never mutated.
type Backend struct {
	agent  agent.Agent
	logger *slog.Logger
}

// NewBackend creates the inference handle from cfg.
func NewBackend(cfg *gaconfig.AgentConfig, logger *slog.Logger) (*Backend, error) {
	a, err := agent.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	model := ""
	if cfg.Model != nil {
		model = cfg.Model.Name
	}

	return &Backend{
		agent:  a,
		logger: logger.With("system", "inference", "model", model),
	}, nil
}

func (b *Backend) Infer(ctx context.Context, p Prompt) (string, error) {
	resp, err := b.agent.Chat(ctx, p.Text())
	if err != nil {
		return "", fmt.Errorf("chat call: %w", err)
	}

	content := strings.TrimSpace(resp.Content())
	if content == "" {
		return "", ErrEmptyReply
	}

	b.logger.DebugContext(ctx, "inference complete", "role", p.Role, "chars", len(content))
	return content, nil
}
