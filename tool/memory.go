package tool

import (
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/internal/util"
)

const defaultRecallLimit = 5

// NewRememberTool stores a memory snippet under scope.
func NewRememberTool(store core.MemoryStore, scope string) Tool {
	return NewFunctionTool(
		"remember",
		"Store a fact so it can be recalled in later conversations.",
		util.ObjectSchema(
			util.String("content", "The fact to remember", true),
			util.String("topic", "Optional topic tag", false),
		),
		func(tc *Context, args map[string]any) (any, error) {
			content, _ := args["content"].(string)
			if content == "" {
				return nil, NewToolError("remember", "content must not be empty", CodeValidation)
			}

			meta := map[string]any{"agent": tc.Agent()}
			if topic, ok := args["topic"].(string); ok && topic != "" {
				meta["topic"] = topic
			}

			id, err := store.Store(scope, content, meta)
			if err != nil {
				return nil, err
			}

			return map[string]any{"id": id}, nil
		},
	)
}

// NewRecallTool searches memory snippets under scope.
func NewRecallTool(store core.MemoryStore, scope string) Tool {
	return NewFunctionTool(
		"recall",
		"Search previously remembered facts.",
		util.ObjectSchema(
			util.String("query", "Search terms", true),
			util.Integer("limit", "Maximum number of results", false),
		),
		func(_ *Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)

			limit := defaultRecallLimit
			if l, ok := args["limit"].(float64); ok && l > 0 {
				limit = int(l)
			}
			if l, ok := args["limit"].(int); ok && l > 0 {
				limit = l
			}

			results, err := store.Search(scope, query, limit)
			if err != nil {
				return nil, err
			}

			out := make([]map[string]any, 0, len(results))
			for _, r := range results {
				out = append(out, map[string]any{"id": r.ID, "content": r.Content, "score": r.Score})
			}

			return map[string]any{"results": out}, nil
		},
	)
}
