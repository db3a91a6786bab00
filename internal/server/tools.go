package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The decoded image is cached for later keypoint calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "keypoints_detect",
			Description: "Detect scale-space extrema in an image and compute a BRIEF descriptor for each. Returns keypoint positions, DoG levels and stage timings.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of keypoints listed in the result (default 100, 0 lists none). The count is always exact.",
						"default":     100,
					},
					"overlay_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional output path for a copy of the image with keypoints marked",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "keypoints_match",
			Description: "Detect keypoints in two images and match their descriptors by Hamming distance. Every keypoint of the first image is paired with its nearest keypoint in the second.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path1": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the query image",
					},
					"path2": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the train image",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of matches listed in the result, closest first (default 50)",
						"default":     50,
					},
					"render_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional output path for a side-by-side image with match lines",
					},
					"histogram_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional output path for a bar chart of match distances (.png, .svg or .pdf)",
					},
				},
				"required": []string{"path1", "path2"},
			},
		},
		{
			Name:        "pattern_info",
			Description: "Describe the BRIEF test pattern and pipeline settings in use.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
