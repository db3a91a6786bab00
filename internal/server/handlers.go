package server

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/ironsheep/keypoint-match/internal/detection"
	"github.com/ironsheep/keypoint-match/internal/imaging"
	"github.com/ironsheep/keypoint-match/internal/pipeline"
	"github.com/ironsheep/keypoint-match/internal/render"
)

// Default list lengths for tool results.
const (
	defaultKeypointLimit = 100
	defaultMatchLimit    = 50
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "keypoints_match").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	s.logger.Debug("tool done", "tool", params.Name, "elapsed", time.Since(start))

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "keypoints_detect":
		return s.handleKeypointsDetect(args)
	case "keypoints_match":
		return s.handleKeypointsMatch(args)
	case "pattern_info":
		return s.handlePatternInfo()
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// limitOr returns *p, or def when the argument was omitted.
func limitOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return max(*p, 0)
}

// millis converts a duration to fractional milliseconds for JSON output.
func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// StageTimings is the JSON form of pipeline.Timings.
type StageTimings struct {
	GaussianMS float64 `json:"gaussian_ms"`
	DoGMS      float64 `json:"dog_ms"`
	DetectMS   float64 `json:"detect_ms"`
	DescribeMS float64 `json:"describe_ms"`
	TotalMS    float64 `json:"total_ms"`
}

func stageTimings(t pipeline.Timings) StageTimings {
	return StageTimings{
		GaussianMS: millis(t.Gaussian),
		DoGMS:      millis(t.DoG),
		DetectMS:   millis(t.Detect),
		DescribeMS: millis(t.Describe),
		TotalMS:    millis(t.Total()),
	}
}

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type keypointsDetectArgs struct {
	Path        string `json:"path"`
	Limit       *int   `json:"limit"`
	OverlayPath string `json:"overlay_path"`
}

// DetectResult is the output of the keypoints_detect tool.
type DetectResult struct {
	Path          string               `json:"path"`
	Width         int                  `json:"width"`
	Height        int                  `json:"height"`
	KeypointCount int                  `json:"keypoint_count"`
	Keypoints     []detection.Keypoint `json:"keypoints"`
	Timings       StageTimings         `json:"timings"`
	OverlayPath   string               `json:"overlay_path,omitempty"`
}

func (s *Server) handleKeypointsDetect(args json.RawMessage) (interface{}, error) {
	var a keypointsDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	buf, err := imaging.LoadGray(s.cache, a.Path, s.pipe.Config().StretchContrast)
	if err != nil {
		return nil, err
	}
	f, err := s.pipe.Extract(buf)
	if err != nil {
		return nil, err
	}

	limit := min(limitOr(a.Limit, defaultKeypointLimit), len(f.Keypoints))
	res := &DetectResult{
		Path:          a.Path,
		Width:         f.Width,
		Height:        f.Height,
		KeypointCount: f.Len(),
		Keypoints:     f.Keypoints[:limit],
		Timings:       stageTimings(f.Timings),
	}

	if a.OverlayPath != "" {
		img, err := s.cache.Load(a.Path)
		if err != nil {
			return nil, err
		}
		if err := render.Save(render.KeypointOverlay(img, f.Keypoints), a.OverlayPath); err != nil {
			return nil, err
		}
		res.OverlayPath = a.OverlayPath
	}
	return res, nil
}

type keypointsMatchArgs struct {
	Path1         string `json:"path1"`
	Path2         string `json:"path2"`
	Limit         *int   `json:"limit"`
	RenderPath    string `json:"render_path"`
	HistogramPath string `json:"histogram_path"`
}

// MatchPair is one matched keypoint pair in image coordinates.
type MatchPair struct {
	Index1   int `json:"index1"`
	Index2   int `json:"index2"`
	X1       int `json:"x1"`
	Y1       int `json:"y1"`
	X2       int `json:"x2"`
	Y2       int `json:"y2"`
	Distance int `json:"distance"`
}

// MatchToolResult is the output of the keypoints_match tool.
type MatchToolResult struct {
	Keypoints1    int          `json:"keypoints1"`
	Keypoints2    int          `json:"keypoints2"`
	MatchCount    int          `json:"match_count"`
	MeanDistance  float64      `json:"mean_distance"`
	Matches       []MatchPair  `json:"matches"`
	Timings1      StageTimings `json:"timings1"`
	Timings2      StageTimings `json:"timings2"`
	MatchMS       float64      `json:"match_ms"`
	RenderPath    string       `json:"render_path,omitempty"`
	HistogramPath string       `json:"histogram_path,omitempty"`
}

func (s *Server) handleKeypointsMatch(args json.RawMessage) (interface{}, error) {
	var a keypointsMatchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path1 == "" || a.Path2 == "" {
		return nil, fmt.Errorf("path1 and path2 are required")
	}

	features, err := s.pipe.ExtractFiles(context.Background(), s.cache, []string{a.Path1, a.Path2}, false)
	if err != nil {
		return nil, err
	}
	f1, f2 := features[0], features[1]
	rep, err := s.pipe.Match(f1, f2)
	if err != nil {
		return nil, err
	}

	pairs := make([]MatchPair, rep.Len())
	total := 0
	for i := range pairs {
		i1, i2, d := rep.Indices1[i], rep.Indices2[i], rep.Distances[i]
		k1, k2 := f1.Keypoints[i1], f2.Keypoints[i2]
		pairs[i] = MatchPair{Index1: i1, Index2: i2, X1: k1.X, Y1: k1.Y, X2: k2.X, Y2: k2.Y, Distance: d}
		total += d
	}
	slices.SortStableFunc(pairs, func(x, y MatchPair) int {
		return cmp.Compare(x.Distance, y.Distance)
	})

	res := &MatchToolResult{
		Keypoints1: f1.Len(),
		Keypoints2: f2.Len(),
		MatchCount: len(pairs),
		Matches:    pairs[:min(limitOr(a.Limit, defaultMatchLimit), len(pairs))],
		Timings1:   stageTimings(f1.Timings),
		Timings2:   stageTimings(f2.Timings),
		MatchMS:    millis(rep.Elapsed),
	}
	if len(pairs) > 0 {
		res.MeanDistance = float64(total) / float64(len(pairs))
	}

	if a.RenderPath != "" {
		if err := s.renderMatches(a.Path1, a.Path2, a.RenderPath, f1, f2, rep); err != nil {
			return nil, err
		}
		res.RenderPath = a.RenderPath
	}
	if a.HistogramPath != "" {
		if err := render.DistanceHistogram(rep.Result, f1.Bits, a.HistogramPath); err != nil {
			return nil, err
		}
		res.HistogramPath = a.HistogramPath
	}
	return res, nil
}

func (s *Server) renderMatches(path1, path2, outPath string, f1, f2 *pipeline.Features, rep *pipeline.MatchReport) error {
	img1, err := s.cache.Load(path1)
	if err != nil {
		return err
	}
	img2, err := s.cache.Load(path2)
	if err != nil {
		return err
	}
	out, err := render.MatchComposite(img1, img2, f1.Keypoints, f2.Keypoints, rep.Result)
	if err != nil {
		return err
	}
	return render.Save(out, outPath)
}

// PatternInfo is the output of the pattern_info tool.
type PatternInfo struct {
	Pairs             int     `json:"pairs"`
	Radius            int     `json:"radius"`
	Source            string  `json:"source"`
	Seed              int64   `json:"seed,omitempty"`
	Sigma0            float64 `json:"sigma0"`
	K                 float64 `json:"k"`
	Levels            []int   `json:"levels"`
	ContrastThreshold float64 `json:"contrast_threshold"`
	EdgeThreshold     float64 `json:"edge_threshold"`
	MaxDistance       *int    `json:"max_distance,omitempty"`
	CrossCheck        bool    `json:"cross_check"`
}

func (s *Server) handlePatternInfo() (interface{}, error) {
	cfg := s.pipe.Config()
	p := s.pipe.Pattern()
	info := &PatternInfo{
		Pairs:             p.Len(),
		Radius:            p.Radius(),
		Source:            cfg.PatternPath,
		Sigma0:            cfg.Sigma0,
		K:                 cfg.K,
		Levels:            cfg.Levels,
		ContrastThreshold: cfg.ContrastThreshold,
		EdgeThreshold:     cfg.EdgeThreshold,
		MaxDistance:       cfg.MaxDistance,
		CrossCheck:        cfg.CrossCheck,
	}
	if info.Source == "" {
		info.Source = "generated"
		info.Seed = cfg.PatternSeed
	}
	return info, nil
}
