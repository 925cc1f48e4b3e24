package openapi

import "maps"

// errorBody mirrors the structured error written by every failing handler.
var errorBody = &Schema{
	Type:     "object",
	Required: []string{"status", "detail"},
	Properties: map[string]*Schema{
		"status": {Type: "string", Enum: []any{"error"}},
		"detail": {Type: "string", Description: "Error message"},
	},
}

// NewComponents creates Components with shared schemas and error responses.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"Error": errorBody,
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: -CreatedAt"},
				},
			},
		},
		Responses: map[string]*Response{
			"BadRequest":         errorResponse("Invalid request"),
			"NotFound":           errorResponse("Resource not found"),
			"Conflict":           errorResponse("Request conflicts with the resource state"),
			"PayloadTooLarge":    errorResponse("Upload exceeds the configured size limit"),
			"InternalError":      errorResponse("Processing failed"),
			"ServiceUnavailable": errorResponse("Required backend is not configured"),
		},
	}
}

func errorResponse(description string) *Response {
	return ResponseJSON(description, "Error")
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges the given responses into the component responses.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}
