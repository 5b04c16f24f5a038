package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"jaybrain/internal/tools"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:        "echo",
		Description: "Echo the input back",
		Schema: tools.Schema{
			Required:   []string{"text"},
			Properties: map[string]tools.Property{"text": {Type: "string"}},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			if in.Text == "boom" {
				return nil, fmt.Errorf("exploded")
			}
			return map[string]string{"echo": in.Text}, nil
		},
	})
	return NewServer("jaybrain-test", "0.0.0", reg)
}

// run feeds line-delimited requests and returns decoded responses.
func run(t *testing.T, s *Server, lines ...string) []response {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var resps []response
	for _, raw := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if raw == "" {
			continue
		}
		var r response
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			t.Fatalf("bad response line %q: %v", raw, err)
		}
		resps = append(resps, r)
	}
	return resps
}

func TestInitializeHandshake(t *testing.T) {
	resps := run(t, testServer(t),
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
	)

	if len(resps) != 1 {
		t.Fatalf("expected 1 response (notification is silent), got %d", len(resps))
	}
	result, _ := json.Marshal(resps[0].Result)
	var init initializeResult
	if err := json.Unmarshal(result, &init); err != nil {
		t.Fatalf("bad initialize result: %v", err)
	}
	if init.ProtocolVersion != ProtocolVersion {
		t.Errorf("protocolVersion = %q, want %q", init.ProtocolVersion, ProtocolVersion)
	}
	if init.ServerInfo.Name != "jaybrain-test" {
		t.Errorf("serverInfo.name = %q", init.ServerInfo.Name)
	}
}

func TestToolsList(t *testing.T) {
	resps := run(t, testServer(t), `{"jsonrpc":"2.0","id":5,"method":"tools/list"}`)
	if len(resps) != 1 {
		t.Fatalf("got %d responses", len(resps))
	}

	raw, _ := json.Marshal(resps[0].Result)
	var got struct {
		Tools []toolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Tools) != 1 || got.Tools[0].Name != "echo" {
		t.Fatalf("tools = %+v", got.Tools)
	}
	if !bytes.Contains(got.Tools[0].InputSchema, []byte(`"required"`)) {
		t.Errorf("inputSchema missing required: %s", got.Tools[0].InputSchema)
	}
}

func TestToolsCall(t *testing.T) {
	resps := run(t, testServer(t),
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`,
	)

	raw, _ := json.Marshal(resps[0].Result)
	var res callResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected isError: %+v", res)
	}
	if len(res.Content) != 1 || !strings.Contains(res.Content[0].Text, `"echo": "hi"`) {
		t.Errorf("content = %+v", res.Content)
	}
}

func TestToolErrorIsInBand(t *testing.T) {
	resps := run(t, testServer(t),
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"boom"}}}`,
	)

	if resps[0].Error != nil {
		t.Fatalf("tool failure must not be a protocol error: %+v", resps[0].Error)
	}
	raw, _ := json.Marshal(resps[0].Result)
	var res callResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(res.Content[0].Text, "exploded") {
		t.Errorf("result = %+v", res)
	}
}

func TestUnknownMethodAndParseError(t *testing.T) {
	resps := run(t, testServer(t),
		`{"jsonrpc":"2.0","id":9,"method":"resources/list"}`,
		`{not json`,
	)

	if len(resps) != 2 {
		t.Fatalf("got %d responses", len(resps))
	}
	if resps[0].Error == nil || resps[0].Error.Code != codeMethodNotFound {
		t.Errorf("unknown method error = %+v", resps[0].Error)
	}
	if resps[1].Error == nil || resps[1].Error.Code != codeParseError {
		t.Errorf("parse error = %+v", resps[1].Error)
	}
}
