// Package classifier maps free-text advisor requests to action plans.
// Classification is two-tier: deterministic fast-path patterns first, then a
// reasoning-call fallback with a conservative dispatch-all default.
package classifier

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

// Bounds on the condensed context handed to the reasoning router.
const (
	maxRouterKnowledge = 8
	maxRouterChat      = 6
)

type Classifier struct {
	router contractx.Router
}

func New(router contractx.Router) *Classifier {
	return &Classifier{router: router}
}

// Classify never fails: any router error resolves to the conservative
// maximal-information plan, Dispatch over every known provider.
func (c *Classifier) Classify(ctx context.Context, text string, bundle contractx.ContextBundle) contractx.ActionPlan {
	if isKnowledgeRemove(text) {
		if keywords := extractRemoveKeywords(text); len(keywords) > 0 {
			return contractx.ActionPlan{
				Kind:      contractx.PlanKnowledgeRemove,
				Keywords:  keywords,
				Reasoning: "keyword match: knowledge base removal",
			}
		}
	}

	if isKnowledgeAdd(text) {
		if entries := extractAddEntries(text); len(entries) > 0 {
			return contractx.ActionPlan{
				Kind:      contractx.PlanKnowledgeAdd,
				Entries:   entries,
				Reasoning: "keyword match: knowledge base addition",
			}
		}
	}

	plan, err := c.router.Route(ctx, routeRequest(text, bundle))
	if err != nil {
		log.Warn().Err(err).Msg("router call failed, dispatching all providers")
		return dispatchAll()
	}
	return sanitize(plan)
}

func routeRequest(text string, bundle contractx.ContextBundle) contractx.RouteRequest {
	knowledge := bundle.Knowledge
	if len(knowledge) > maxRouterKnowledge {
		knowledge = knowledge[len(knowledge)-maxRouterKnowledge:]
	}
	chat := bundle.RecentChat
	if len(chat) > maxRouterChat {
		chat = chat[:maxRouterChat]
	}
	return contractx.RouteRequest{
		Text:       text,
		Client:     bundle.Client,
		Knowledge:  knowledge,
		RecentChat: chat,
	}
}

// sanitize enforces the plan contract on router output: unknown provider
// names are dropped (not errors), knowledge plans force an empty provider
// set, and a dispatch plan with nothing left degrades to a direct answer.
func sanitize(plan contractx.ActionPlan) contractx.ActionPlan {
	switch plan.Kind {
	case contractx.PlanKnowledgeAdd:
		if len(plan.Entries) == 0 {
			return dispatchAll()
		}
		plan.Providers = nil
		return plan
	case contractx.PlanKnowledgeRemove:
		if len(plan.Keywords) == 0 {
			return dispatchAll()
		}
		plan.Providers = nil
		return plan
	case contractx.PlanDirectAnswer:
		plan.Providers = nil
		return plan
	case contractx.PlanDispatch:
		known := plan.Providers[:0]
		for _, name := range plan.Providers {
			if contractx.IsKnownProvider(name) {
				known = append(known, name)
			}
		}
		if len(known) == 0 {
			return contractx.ActionPlan{Kind: contractx.PlanDirectAnswer, Reasoning: plan.Reasoning}
		}
		plan.Providers = known
		return plan
	default:
		return dispatchAll()
	}
}

func dispatchAll() contractx.ActionPlan {
	return contractx.ActionPlan{
		Kind:      contractx.PlanDispatch,
		Providers: contractx.KnownProviders(),
		Reasoning: "dispatching all providers",
	}
}
