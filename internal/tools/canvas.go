package tools

import (
	"context"

	"promptcanvas/internal/scene"
)

type canvasTool struct {
	kind        Kind
	category    ToolCategory
	description string
	schema      func() ToolSchema
}

var canvasTools = []canvasTool{
	{
		kind:        KindChangeBackground,
		category:    CategoryScene,
		description: "Changes the website's background color using RGB values.",
		schema:      SchemaFor[BackgroundArgs],
	},
	{
		kind:        KindSpawnText,
		category:    CategoryScene,
		description: "Spawns a new text element onto the website background.",
		schema:      SchemaFor[SpawnTextArgs],
	},
	{
		kind:        KindEditText,
		category:    CategoryScene,
		description: "Edits the existing text element with the corresponding id. Only provided fields will be updated.",
		schema:      SchemaFor[EditTextArgs],
	},
	{
		kind:     KindSpawnImage,
		category: CategoryImage,
		description: "Spawns a new image onto the website background. Either a 'url' XOR a 'query' MUST be provided: " +
			"use the url if a direct link already exists, otherwise provide a query describing the image.",
		schema: SchemaFor[SpawnImageArgs],
	},
	{
		kind:     KindEditImage,
		category: CategoryImage,
		description: "Edits the existing image element with the corresponding id. Only provided fields will be updated. " +
			"Do not provide BOTH a url AND a query.",
		schema: SchemaFor[EditImageArgs],
	},
	{
		kind:        KindDeleteElements,
		category:    CategoryScene,
		description: "Deletes specific elements from the screen by their IDs.",
		schema:      SchemaFor[DeleteArgs],
	},
	{
		kind:        KindUnsupportedRequest,
		category:    CategoryProtocol,
		description: "Handles ALL requests that do not match any of the other tools.",
		schema:      SchemaFor[UnsupportedArgs],
	},
}

// CanvasTools returns one Tool per Kind, all executing through v.
func CanvasTools(v *Validator) []*Tool {
	out := make([]*Tool, 0, len(canvasTools))
	for _, ct := range canvasTools {
		kind := ct.kind
		out = append(out, &Tool{
			Name:        kind.String(),
			Kind:        kind,
			Description: ct.description,
			Category:    ct.category,
			Schema:      ct.schema(),
			Execute: func(ctx context.Context, args map[string]any) (scene.Envelope, error) {
				return v.Run(ctx, kind, args)
			},
		})
	}
	return out
}

// NewCanvasRegistry creates a registry holding every canvas tool.
func NewCanvasRegistry(v *Validator) *Registry {
	r := NewRegistry()
	for _, t := range CanvasTools(v) {
		r.MustRegister(t)
	}
	return r
}
