package reasoning

import (
	"context"
	"fmt"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
	llmx "github.com/wshadow/advisor-engine/engine/llm"
	promptx "github.com/wshadow/advisor-engine/engine/prompt"
)

type reasonersImpl struct {
	router      contractx.Router
	matcher     contractx.EntryMatcher
	synthesizer contractx.Synthesizer
}

func (r *reasonersImpl) Router() contractx.Router {
	return r.router
}

func (r *reasonersImpl) Matcher() contractx.EntryMatcher {
	return r.matcher
}

func (r *reasonersImpl) Synthesizer() contractx.Synthesizer {
	return r.synthesizer
}

func NewRegistry(ctx context.Context, cfg llmx.Config) (contractx.Reasoners, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	routerModelCfg := cfg.OpenRouterFor(llmx.RoleRouter)
	routerModel, err := routerModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create router model: %v", contractx.ErrModelInvoke, err)
	}
	matcherModelCfg := cfg.OpenRouterFor(llmx.RoleMatcher)
	matcherModel, err := matcherModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create matcher model: %v", contractx.ErrModelInvoke, err)
	}
	synthModelCfg := cfg.OpenRouterFor(llmx.RoleSynthesizer)
	synthModel, err := synthModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create synthesizer model: %v", contractx.ErrModelInvoke, err)
	}

	router, err := newRouter(ctx, routerModel, prompts.Router)
	if err != nil {
		return nil, err
	}
	matcher, err := newMatcher(ctx, matcherModel, prompts.Matcher)
	if err != nil {
		return nil, err
	}
	synthesizer, err := newSynthesizer(ctx, synthModel, prompts.Synthesizer, prompts.Direct)
	if err != nil {
		return nil, err
	}

	return &reasonersImpl{
		router:      router,
		matcher:     matcher,
		synthesizer: synthesizer,
	}, nil
}
