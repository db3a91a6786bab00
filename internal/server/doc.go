// Package server implements an MCP (Model Context Protocol) server for
// keypoint detection and matching.
//
// The server speaks JSON-RPC 2.0 over stdio:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load an image and report its metadata
//   - keypoints_detect: Detect keypoints and compute their descriptors,
//     optionally writing a keypoint overlay
//   - keypoints_match: Match the keypoints of two images, optionally
//     writing a match composite and a distance histogram
//   - pattern_info: Report the test pattern and pipeline settings
//
// Every tool call runs through one shared pipeline.Pipeline, so all
// descriptors the server produces come from the same test pattern and are
// comparable across calls.
//
// # Image Caching
//
// Decoded images are cached by path for the lifetime of the server. A
// keypoints_match call after keypoints_detect on the same file does not
// decode it again.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(pipe, version, logger)
//	if err := srv.Serve(os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
package server
