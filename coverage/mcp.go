// CLAUDE:SUMMARY Registers coverage MCP tools (check, save, history, latest, browse) through kit endpoints with logging.
package coverage

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/covgate/kit"
	"github.com/hazyhaar/covgate/metrics"
)

// RegisterMCP registers the coverage tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCheckTool(srv)
	s.registerSaveTool(srv)
	s.registerHistoryTool(srv)
	s.registerLatestTool(srv)
	s.registerBrowseTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

func keyProperties() map[string]any {
	return map[string]any{
		"projectName": map[string]any{"type": "string", "description": "Project name"},
		"branch":      map[string]any{"type": "string", "description": "Branch the measurement belongs to"},
		"testName":    map[string]any{"type": "string", "description": "Test suite name (e.g. unit, e2e)"},
	}
}

func submissionProperties(withRef bool) map[string]any {
	p := keyProperties()
	p["baseBranch"] = map[string]any{"type": "string", "description": "Branch to compare against when this branch has no history"}
	for _, f := range []string{"statements", "conditionals", "methods", "coveredStatements", "coveredConditionals", "coveredMethods"} {
		p[f] = map[string]any{"type": "integer", "minimum": 0}
	}
	if withRef {
		p["ref"] = map[string]any{"type": "string", "description": "Optional revision identifier, e.g. a commit hash"}
	}
	return p
}

func (s *Service) endpoint(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.logger, name))(e)
}

// decodeArgs decodes tool arguments keeping numbers verbatim.
func decodeArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	args := map[string]any{}
	if len(req.Params.Arguments) == 0 {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params.Arguments))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, err
	}
	return args, nil
}

func keyFromArgs(args map[string]any) Key {
	l := mapLookup(args)
	p, _ := l("projectName")
	b, _ := l("branch")
	t, _ := l("testName")
	return Key{ProjectName: p, Branch: b, TestName: t}
}

func (s *Service) submissionDecoder(outcomes *metrics.CounterVec, withRef bool) kit.ToolDecoder {
	return func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args, err := decodeArgs(req)
		if err != nil {
			return nil, err
		}
		sub, err := s.parse(outcomes, keyFromArgs(args), mapLookup(args), withRef)
		if err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: sub}, nil
	}
}

func keyDecoder(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	args, err := decodeArgs(req)
	if err != nil {
		return nil, err
	}
	key := keyFromArgs(args)
	return &kit.MCPDecodeResult{Request: &key}, nil
}

// --- coverage_check ---

func (s *Service) registerCheckTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "coverage_check",
		Description: "Dry-run a coverage gate: compare new counts against the latest snapshot of the branch (or its base branch). Nothing is stored.",
		InputSchema: inputSchema(submissionProperties(false), append([]string{"projectName", "branch", "testName"}, RequiredFields...)),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.Check(ctx, req.(*Submission))
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("coverage_check", endpoint), s.submissionDecoder(s.checks, false))
}

// --- coverage_save ---

func (s *Service) registerSaveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "coverage_save",
		Description: "Record a coverage snapshot. Snapshots are append-only; the latest one per project/branch/test is the baseline for later checks.",
		InputSchema: inputSchema(submissionProperties(true), append([]string{"projectName", "branch", "testName"}, RequiredFields...)),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.Save(ctx, req.(*Submission))
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("coverage_save", endpoint), s.submissionDecoder(s.saves, true))
}

// --- coverage_history ---

func (s *Service) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "coverage_history",
		Description: "List every coverage snapshot of a project/branch/test, oldest first.",
		InputSchema: inputSchema(keyProperties(), []string{"projectName", "branch", "testName"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.History(ctx, *req.(*Key))
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("coverage_history", endpoint), keyDecoder)
}

// --- coverage_latest ---

func (s *Service) registerLatestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "coverage_latest",
		Description: "Return the most recent coverage snapshot of a project/branch/test with its coverage percent.",
		InputSchema: inputSchema(keyProperties(), []string{"projectName", "branch", "testName"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.Latest(ctx, *req.(*Key))
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("coverage_latest", endpoint), keyDecoder)
}

// --- coverage_browse ---

type browseResponse struct {
	Projects []string `json:"projects,omitempty"`
	Branches []string `json:"branches,omitempty"`
	Tests    []string `json:"tests,omitempty"`
}

func (s *Service) registerBrowseTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "coverage_browse",
		Description: "Discover recorded data: no argument lists projects, projectName lists its branches, projectName+branch lists its tests.",
		InputSchema: inputSchema(map[string]any{
			"projectName": map[string]any{"type": "string"},
			"branch":      map[string]any{"type": "string"},
		}, nil),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		k := req.(*Key)
		var (
			resp browseResponse
			err  error
		)
		switch {
		case k.ProjectName == "":
			resp.Projects, err = s.Projects(ctx)
		case k.Branch == "":
			resp.Branches, err = s.Branches(ctx, k.ProjectName)
		default:
			resp.Tests, err = s.Tests(ctx, k.ProjectName, k.Branch)
		}
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	kit.RegisterMCPTool(srv, tool, s.endpoint("coverage_browse", endpoint), keyDecoder)
}
