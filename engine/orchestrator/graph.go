package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

func (e *Engine) compileHandleRequestGraph(
	ctx context.Context,
) (compose.Runnable[GraphInput, GraphOutput], error) {
	graph := compose.NewGraph[GraphInput, GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in GraphInput) (*graphState, error) {
			return e.validateRequest(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("assemble_context",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			return e.assembleContext(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node assemble_context: %w", err)
	}

	if err := graph.AddLambdaNode("classify",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (*graphState, error) {
			return e.classify(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify: %w", err)
	}

	if err := graph.AddLambdaNode("knowledge_remove_path",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (GraphOutput, error) {
			return e.knowledgeRemovePath(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node knowledge_remove_path: %w", err)
	}

	if err := graph.AddLambdaNode("knowledge_add_path",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (GraphOutput, error) {
			return e.knowledgeAddPath(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node knowledge_add_path: %w", err)
	}

	if err := graph.AddLambdaNode("direct_answer_path",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (GraphOutput, error) {
			return e.directAnswerPath(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node direct_answer_path: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_path",
		compose.InvokableLambda(func(ctx context.Context, in *graphState) (GraphOutput, error) {
			return e.dispatchPath(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_path: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *graphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
			}
			switch in.Plan.Kind {
			case contractx.PlanKnowledgeRemove:
				return "knowledge_remove_path", nil
			case contractx.PlanKnowledgeAdd:
				return "knowledge_add_path", nil
			case contractx.PlanDirectAnswer:
				return "direct_answer_path", nil
			default:
				return "dispatch_path", nil
			}
		},
		map[string]bool{
			"knowledge_remove_path": true,
			"knowledge_add_path":    true,
			"direct_answer_path":    true,
			"dispatch_path":         true,
		},
	)

	if err := graph.AddEdge(compose.START, "validate_request"); err != nil {
		return nil, fmt.Errorf("add edge start->validate: %w", err)
	}
	if err := graph.AddEdge("validate_request", "assemble_context"); err != nil {
		return nil, fmt.Errorf("add edge validate->assemble: %w", err)
	}
	if err := graph.AddEdge("assemble_context", "classify"); err != nil {
		return nil, fmt.Errorf("add edge assemble->classify: %w", err)
	}
	if err := graph.AddBranch("classify", branch); err != nil {
		return nil, fmt.Errorf("add plan branch: %w", err)
	}
	for _, node := range []string{"knowledge_remove_path", "knowledge_add_path", "direct_answer_path", "dispatch_path"} {
		if err := graph.AddEdge(node, compose.END); err != nil {
			return nil, fmt.Errorf("add edge %s->end: %w", node, err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("engine.handle_request"))
	if err != nil {
		return nil, fmt.Errorf("compile request graph: %w", err)
	}
	return runner, nil
}
