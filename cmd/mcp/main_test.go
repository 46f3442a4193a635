package main

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestToolsCallMapsToAPI(t *testing.T) {
	var gotMethod, gotPath, gotUser, gotBody string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)

		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "/friends/") {
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"success":false,"error":"not friends"}`)
			return
		}
		io.WriteString(w, `{"success":true,"data":{"processed":1}}`)
	}))
	defer api.Close()

	s := &MCPServer{apiURL: api.URL, apiUsername: "ops", apiPassword: "secret", client: api.Client()}

	tests := []struct {
		name       string
		params     string
		wantMethod string
		wantPath   string
		wantError  bool
	}{
		{"sync source", `{"name":"agenda_sync_source","arguments":{"user_id":3,"source_id":"9"}}`, "POST", "/api/users/3/sources/9/sync", false},
		{"my agenda", `{"name":"agenda_my","arguments":{"user_id":"3"}}`, "GET", "/api/users/3/agenda", false},
		{"friend agenda", `{"name":"agenda_friend","arguments":{"user_id":3,"friend_id":4}}`, "GET", "/api/users/3/friends/4/agenda", true},
		{"delete", `{"name":"agenda_delete_source","arguments":{"user_id":3,"source_id":9}}`, "DELETE", "/api/users/3/sources/9", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.handleRequest(JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(tt.params)})
			result, ok := resp.Result.(ToolCallResult)
			if !ok {
				t.Fatalf("result = %#v", resp.Result)
			}
			if gotMethod != tt.wantMethod || gotPath != tt.wantPath {
				t.Errorf("request = %s %s, want %s %s", gotMethod, gotPath, tt.wantMethod, tt.wantPath)
			}
			if gotUser != "ops" {
				t.Errorf("basic auth user = %q", gotUser)
			}
			if result.IsError != tt.wantError {
				t.Errorf("isError = %v: %s", result.IsError, result.Content[0].Text)
			}
		})
	}

	s.handleRequest(JSONRPCRequest{JSONRPC: "2.0", ID: 2, Method: "tools/call",
		Params: json.RawMessage(`{"name":"agenda_add_source","arguments":{"user_id":3,"url":"https://x/cal.ics"}}`)})
	var body map[string]string
	if err := json.Unmarshal([]byte(gotBody), &body); err != nil || body["url"] != "https://x/cal.ics" {
		t.Errorf("add source body = %q", gotBody)
	}
}

func TestToolsCallRejectsNonNumericIDs(t *testing.T) {
	calls := 0
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"data":{}}`)
	}))
	defer api.Close()

	s := &MCPServer{apiURL: api.URL, client: api.Client()}

	for _, params := range []string{
		`{"name":"agenda_my","arguments":{"user_id":"1/../.."}}`,
		`{"name":"agenda_sync_source","arguments":{"user_id":1,"source_id":"9/../../2"}}`,
		`{"name":"agenda_friend","arguments":{"user_id":1}}`,
		`{"name":"agenda_delete_source","arguments":{"user_id":-1,"source_id":2}}`,
	} {
		resp := s.handleRequest(JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(params)})
		result, ok := resp.Result.(ToolCallResult)
		if !ok || !result.IsError {
			t.Errorf("%s: result = %#v, want tool error", params, resp.Result)
		}
	}
	if calls != 0 {
		t.Errorf("API called %d times", calls)
	}
}

func TestRunProtocol(t *testing.T) {
	s := &MCPServer{apiURL: "http://127.0.0.1:0", client: http.DefaultClient}

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"nope"}`,
	}, "\n")
	var out strings.Builder
	s.Run(strings.NewReader(in), &out)

	var responses []JSONRPCResponse
	sc := bufio.NewScanner(strings.NewReader(out.String()))
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		var r JSONRPCResponse
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		responses = append(responses, r)
	}
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}
	if responses[2].Error == nil || responses[2].Error.Code != -32601 {
		t.Errorf("unknown method response = %+v", responses[2])
	}

	tools := responses[1].Result.(map[string]interface{})["tools"].([]interface{})
	if len(tools) != 6 {
		t.Errorf("tools = %d, want 6", len(tools))
	}
}
