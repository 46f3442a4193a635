package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// JSON-RPC structures
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCP structures
type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MCP Server
type MCPServer struct {
	apiURL      string
	apiUsername string
	apiPassword string
	client      *http.Client
}

func NewMCPServer() *MCPServer {
	apiURL := os.Getenv("AGENDA_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	return &MCPServer{
		apiURL:      strings.TrimRight(apiURL, "/"),
		apiUsername: os.Getenv("AGENDA_API_USERNAME"),
		apiPassword: os.Getenv("AGENDA_API_PASSWORD"),
		client:      &http.Client{Timeout: 2 * time.Minute},
	}
}

// Run serves newline-delimited JSON-RPC requests from r until EOF
func (s *MCPServer) Run(r io.Reader, w io.Writer) {
	reader := bufio.NewReader(r)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "Error reading: %v\n", err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing JSON: %v\n", err)
			continue
		}

		// notifications carry no id and get no reply
		if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
			continue
		}

		response := s.handleRequest(req)
		responseBytes, _ := json.Marshal(response)
		fmt.Fprintln(w, string(responseBytes))
	}
}

func (s *MCPServer) handleRequest(req JSONRPCRequest) JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: nil}
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	default:
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *MCPServer) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	result := InitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
	result.ServerInfo.Name = "agendasync-mcp"
	result.ServerInfo.Version = "1.0.0"

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

var (
	userIDProp   = Property{Type: "string", Description: "User ID (number)"}
	sourceIDProp = Property{Type: "string", Description: "Source ID (number)"}
)

func (s *MCPServer) handleToolsList(req JSONRPCRequest) JSONRPCResponse {
	tools := []Tool{
		{
			Name:        "agenda_my",
			Description: "Merged agenda of a user: own events plus events of accepted friends.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"user_id": userIDProp},
				Required:   []string{"user_id"},
			},
		},
		{
			Name:        "agenda_friend",
			Description: "Agenda of a friend as seen by a user. Fails unless the friendship is accepted.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"user_id":   userIDProp,
					"friend_id": {Type: "string", Description: "Friend user ID (number)"},
				},
				Required: []string{"user_id", "friend_id"},
			},
		},
		{
			Name:        "agenda_sync_user",
			Description: "Sync every calendar source of a user. Returns counts only.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"user_id": userIDProp},
				Required:   []string{"user_id"},
			},
		},
		{
			Name:        "agenda_sync_source",
			Description: "Sync one calendar source and report the number of processed events.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"user_id": userIDProp, "source_id": sourceIDProp},
				Required:   []string{"user_id", "source_id"},
			},
		},
		{
			Name:        "agenda_add_source",
			Description: "Register a calendar feed (http, https, webcal, caldav, caldavs) and run its first sync.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"user_id": userIDProp,
					"url":     {Type: "string", Description: "Feed URL"},
					"label":   {Type: "string", Description: "Display label (optional)"},
				},
				Required: []string{"user_id", "url"},
			},
		},
		{
			Name:        "agenda_delete_source",
			Description: "Delete a calendar source and all of its events.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]Property{"user_id": userIDProp, "source_id": sourceIDProp},
				Required:   []string{"user_id", "source_id"},
			},
		},
	}

	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: tools}}
}

func (s *MCPServer) handleToolsCall(req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32602, Message: "Invalid params"},
		}
	}

	arg := func(name string) string {
		v, ok := params.Arguments[name]
		if !ok || v == nil {
			return ""
		}
		switch n := v.(type) {
		case float64:
			return fmt.Sprintf("%d", int64(n))
		default:
			return fmt.Sprintf("%v", n)
		}
	}
	// ids end up in the request path, so only positive integers pass
	ids := make(map[string]string)
	for _, name := range toolIDArgs[params.Name] {
		n, err := strconv.ParseInt(arg(name), 10, 64)
		if err != nil || n <= 0 {
			return toolResult(req.ID, fmt.Sprintf("Invalid %s: expected a positive integer, got %q", name, arg(name)), true)
		}
		ids[name] = strconv.FormatInt(n, 10)
	}
	user := "/api/users/" + ids["user_id"]

	var result string
	var isError bool

	switch params.Name {
	case "agenda_my":
		result, isError = s.apiGet(user + "/agenda")
	case "agenda_friend":
		result, isError = s.apiGet(user + "/friends/" + ids["friend_id"] + "/agenda")
	case "agenda_sync_user":
		result, isError = s.apiPost(user+"/sync", nil)
	case "agenda_sync_source":
		result, isError = s.apiPost(user+"/sources/"+ids["source_id"]+"/sync", nil)
	case "agenda_add_source":
		result, isError = s.apiPost(user+"/sources", map[string]string{
			"url":   arg("url"),
			"label": arg("label"),
		})
	case "agenda_delete_source":
		result, isError = s.apiDelete(user + "/sources/" + ids["source_id"])
	default:
		result = "Unknown tool: " + params.Name
		isError = true
	}

	return toolResult(req.ID, result, isError)
}

// toolIDArgs lists the numeric arguments each tool puts into the API path
var toolIDArgs = map[string][]string{
	"agenda_my":            {"user_id"},
	"agenda_friend":        {"user_id", "friend_id"},
	"agenda_sync_user":     {"user_id"},
	"agenda_sync_source":   {"user_id", "source_id"},
	"agenda_add_source":    {"user_id"},
	"agenda_delete_source": {"user_id", "source_id"},
}

func toolResult(id interface{}, text string, isError bool) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: text}},
			IsError: isError,
		},
	}
}

func (s *MCPServer) apiGet(path string) (string, bool) {
	return s.apiRequest("GET", path, nil)
}

func (s *MCPServer) apiPost(path string, body interface{}) (string, bool) {
	return s.apiRequest("POST", path, body)
}

func (s *MCPServer) apiDelete(path string) (string, bool) {
	return s.apiRequest("DELETE", path, nil)
}

func (s *MCPServer) apiRequest(method, path string, body interface{}) (string, bool) {
	url := s.apiURL + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return fmt.Sprintf("Error creating request: %v", err), true
	}

	req.SetBasicAuth(s.apiUsername, s.apiPassword)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error making request: %v", err), true
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), true
	}

	var apiResp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}

	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return strings.TrimSpace(string(respBody)), resp.StatusCode >= 400
	}

	if !apiResp.Success {
		return fmt.Sprintf("API Error (%d): %s", resp.StatusCode, apiResp.Error), true
	}

	var prettyData bytes.Buffer
	if err := json.Indent(&prettyData, apiResp.Data, "", "  "); err != nil {
		return string(apiResp.Data), false
	}

	return prettyData.String(), false
}

func main() {
	server := NewMCPServer()
	server.Run(os.Stdin, os.Stdout)
}
