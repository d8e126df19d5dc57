package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/cogmap/internal/fcm"
	"github.com/nvandessel/cogmap/internal/mapfile"
	"github.com/nvandessel/cogmap/internal/pathutil"
	"github.com/nvandessel/cogmap/internal/ratelimit"
	"github.com/nvandessel/cogmap/internal/sanitize"
	"github.com/nvandessel/cogmap/internal/simulation"
	"github.com/nvandessel/cogmap/internal/store"
	"github.com/nvandessel/cogmap/internal/visualization"
)

const (
	defaultRunEpochs    = 10
	defaultHistoryLimit = 20
	runResourcePrefix   = "cogmap://runs/"
)

// errHistoryDisabled is returned by history operations when the server has
// no store.
var errHistoryDisabled = errors.New("run history is disabled")

// registerTools registers all cogmap MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cogmap_run",
		Description: "Execute a fixed number of epochs of a fuzzy cognitive map and report the concept outputs",
	}, s.handleCogmapRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cogmap_converge",
		Description: "Execute epochs of a fuzzy cognitive map until the average squared output change falls below a threshold or the epoch budget runs out",
	}, s.handleCogmapConverge)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cogmap_graph",
		Description: "Render a fuzzy cognitive map in DOT (Graphviz) or JSON format",
	}, s.handleCogmapGraph)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cogmap_validate",
		Description: "Check that a map document parses and that every map in it builds",
	}, s.handleCogmapValidate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cogmap_history",
		Description: "List, show or delete recorded simulation runs",
	}, s.handleCogmapHistory)
}

// registerResources exposes recorded runs as markdown resources.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: runResourcePrefix + "{id}",
		Name:        "cogmap-run",
		Description: "A recorded simulation run with its final concept outputs.",
		MIMEType:    "text/markdown",
	}, s.handleRunResource)
}

// handleRunResource renders one recorded run. URI format: cogmap://runs/{id}
func (s *Server) handleRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, runResourcePrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, runResourcePrefix)
	if id == "" {
		return nil, fmt.Errorf("run ID is required")
	}
	if s.store == nil {
		return nil, errHistoryDisabled
	}

	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "text/markdown",
				Text:     formatRunMarkdown(run),
			},
		},
	}, nil
}

func formatRunMarkdown(run *store.Run) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", run.ID)
	fmt.Fprintf(&sb, "**Map:** %s\n", run.Map)
	fmt.Fprintf(&sb, "**Mode:** %s\n", run.Mode)
	fmt.Fprintf(&sb, "**Epochs:** %d of %d\n", run.Epochs, run.MaxEpochs)
	if run.MaxDelta != nil {
		fmt.Fprintf(&sb, "**Max delta:** %g\n", *run.MaxDelta)
		fmt.Fprintf(&sb, "**Converged:** %t\n", run.Converged)
	}
	fmt.Fprintf(&sb, "**Final delta:** %s\n", run.FinalDelta)
	fmt.Fprintf(&sb, "**Started:** %s\n", run.StartedAt.Format(time.RFC3339))

	if len(run.Outputs) > 0 {
		last := run.Outputs[len(run.Outputs)-1]
		sb.WriteString("\n## Final outputs\n\n")
		sb.WriteString("| Concept | Output |\n|---|---|\n")
		for i, name := range run.Concepts {
			fmt.Fprintf(&sb, "| %s | %s |\n", name, last[i])
		}
	}
	return sb.String()
}

// handleCogmapRun implements the cogmap_run tool.
func (s *Server) handleCogmapRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ SimulationOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("cogmap_run", start, retErr, sanitizeToolParams(map[string]any{
			"file":   args.File,
			"map":    args.Map,
			"epochs": args.Epochs,
			"set":    args.Set,
			"fix":    args.Fix,
			"trace":  args.Trace,
			"record": args.Record,
		}), scopeLocal)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cogmap_run"); err != nil {
		return nil, SimulationOutput{}, err
	}
	if args.Record && s.store == nil {
		return nil, SimulationOutput{}, errHistoryDisabled
	}

	epochs := args.Epochs
	if epochs == 0 {
		epochs = defaultRunEpochs
	}
	if epochs < 0 {
		return nil, SimulationOutput{}, fmt.Errorf("%w: %d", simulation.ErrInvalidEpochs, epochs)
	}
	if err := ratelimit.CheckEpochs(s.epochBudget, epochs); err != nil {
		return nil, SimulationOutput{}, err
	}

	loaded, err := s.loadMap(args.File, args.Map)
	if err != nil {
		return nil, SimulationOutput{}, err
	}
	if err := applyOverrides(loaded.m, args.Set, args.Fix); err != nil {
		return nil, SimulationOutput{}, err
	}

	res, err := s.controller(loaded.m).Run(epochs)
	if err != nil {
		return nil, SimulationOutput{}, err
	}
	return s.finishSimulation(ctx, res, loaded.document, args.Trace, args.Record)
}

// handleCogmapConverge implements the cogmap_converge tool.
func (s *Server) handleCogmapConverge(ctx context.Context, req *sdk.CallToolRequest, args ConvergeInput) (_ *sdk.CallToolResult, _ SimulationOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("cogmap_converge", start, retErr, sanitizeToolParams(map[string]any{
			"file":       args.File,
			"map":        args.Map,
			"max_delta":  args.MaxDelta,
			"max_epochs": args.MaxEpochs,
			"set":        args.Set,
			"fix":        args.Fix,
			"trace":      args.Trace,
			"record":     args.Record,
		}), scopeLocal)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cogmap_converge"); err != nil {
		return nil, SimulationOutput{}, err
	}
	if args.Record && s.store == nil {
		return nil, SimulationOutput{}, errHistoryDisabled
	}

	maxDelta := s.simulation.MaxDelta
	if args.MaxDelta != nil {
		maxDelta = *args.MaxDelta
	}
	maxEpochs := s.simulation.MaxEpochs
	if args.MaxEpochs != nil {
		maxEpochs = *args.MaxEpochs
	}
	if maxEpochs < 0 {
		return nil, SimulationOutput{}, fmt.Errorf("%w: %d", simulation.ErrInvalidEpochs, maxEpochs)
	}
	// The whole budget is charged up front; an early convergence does not
	// refund it.
	if err := ratelimit.CheckEpochs(s.epochBudget, maxEpochs); err != nil {
		return nil, SimulationOutput{}, err
	}

	loaded, err := s.loadMap(args.File, args.Map)
	if err != nil {
		return nil, SimulationOutput{}, err
	}
	if err := applyOverrides(loaded.m, args.Set, args.Fix); err != nil {
		return nil, SimulationOutput{}, err
	}

	res, err := s.controller(loaded.m).Converge(maxDelta, maxEpochs)
	if err != nil {
		return nil, SimulationOutput{}, err
	}
	return s.finishSimulation(ctx, res, loaded.document, args.Trace, args.Record)
}

// handleCogmapGraph implements the cogmap_graph tool.
func (s *Server) handleCogmapGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("cogmap_graph", start, retErr, sanitizeToolParams(map[string]any{
			"file":   args.File,
			"map":    args.Map,
			"format": args.Format,
		}), scopeLocal)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cogmap_graph"); err != nil {
		return nil, GraphOutput{}, err
	}

	format := args.Format
	if format == "" {
		format = string(visualization.FormatJSON)
	}
	f, err := visualization.ParseFormat(format)
	if err != nil {
		return nil, GraphOutput{}, err
	}

	loaded, err := s.loadMap(args.File, args.Map)
	if err != nil {
		return nil, GraphOutput{}, err
	}
	m := loaded.m

	out := GraphOutput{
		Format:    string(f),
		NodeCount: m.ConceptCount(),
		EdgeCount: m.ConnectionCount(),
	}
	switch f {
	case visualization.FormatDOT:
		out.DOT = visualization.RenderDOT(m)
	case visualization.FormatJSON:
		out.Graph = sanitizeGraph(visualization.RenderJSON(m))
	}
	return nil, out, nil
}

// sanitizeGraph cleans the free-text descriptions of g, which come straight
// from the map document.
func sanitizeGraph(g *visualization.Graph) *visualization.Graph {
	g.Description = sanitize.Description(g.Description)
	for i := range g.Nodes {
		g.Nodes[i].Description = sanitize.Description(g.Nodes[i].Description)
	}
	return g
}

// handleCogmapValidate implements the cogmap_validate tool. An invalid
// document is a successful call with Valid false; an unreadable or
// out-of-root file is a tool error.
func (s *Server) handleCogmapValidate(ctx context.Context, req *sdk.CallToolRequest, args ValidateInput) (_ *sdk.CallToolResult, _ ValidateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("cogmap_validate", start, retErr, sanitizeToolParams(map[string]any{
			"file": args.File,
		}), scopeLocal)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cogmap_validate"); err != nil {
		return nil, ValidateOutput{}, err
	}

	path, err := s.resolveFile(args.File)
	if err != nil {
		return nil, ValidateOutput{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ValidateOutput{}, fmt.Errorf("read map document: %w", err)
	}
	doc, err := mapfile.Parse(data)
	if err != nil {
		return nil, ValidateOutput{
			Valid:   false,
			Errors:  []string{err.Error()},
			Message: "Map document is invalid",
		}, nil
	}

	var problems []string
	for i := range doc.Maps {
		if _, err := doc.Maps[i].Build(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	out := ValidateOutput{
		Valid:  len(problems) == 0,
		Maps:   doc.Names(),
		Errors: problems,
	}
	if out.Valid {
		out.Message = fmt.Sprintf("Map document is valid - %d map(s): %s", len(out.Maps), strings.Join(out.Maps, ", "))
	} else {
		out.Message = fmt.Sprintf("Found %d issue(s)", len(problems))
	}
	return nil, out, nil
}

// handleCogmapHistory implements the cogmap_history tool.
func (s *Server) handleCogmapHistory(ctx context.Context, req *sdk.CallToolRequest, args HistoryInput) (_ *sdk.CallToolResult, _ HistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("cogmap_history", start, retErr, sanitizeToolParams(map[string]any{
			"action": args.Action,
			"id":     args.ID,
			"map":    args.Map,
			"limit":  args.Limit,
		}), scopeGlobal)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "cogmap_history"); err != nil {
		return nil, HistoryOutput{}, err
	}
	if s.store == nil {
		return nil, HistoryOutput{}, errHistoryDisabled
	}

	switch action := args.Action; action {
	case "", "list":
		limit := args.Limit
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		runs, err := s.store.ListRuns(ctx, store.RunFilter{Map: args.Map, Limit: limit})
		if err != nil {
			return nil, HistoryOutput{}, fmt.Errorf("list runs: %w", err)
		}
		out := HistoryOutput{Runs: make([]RunSummary, len(runs)), Count: len(runs)}
		for i := range runs {
			out.Runs[i] = summarizeRun(&runs[i])
		}
		out.Message = fmt.Sprintf("%d recorded run(s)", len(runs))
		return nil, out, nil

	case "show":
		run, err := s.store.GetRun(ctx, args.ID)
		if err != nil {
			return nil, HistoryOutput{}, err
		}
		detail := detailRun(run)
		return nil, HistoryOutput{
			Run:     &detail,
			Count:   1,
			Message: fmt.Sprintf("Run %s of map %s", run.ID, run.Map),
		}, nil

	case "delete":
		run, err := s.store.GetRun(ctx, args.ID)
		if err != nil {
			return nil, HistoryOutput{}, err
		}
		if err := s.store.DeleteRun(ctx, run.ID); err != nil {
			return nil, HistoryOutput{}, err
		}
		return nil, HistoryOutput{
			Count:   1,
			Message: fmt.Sprintf("Deleted run %s", run.ID),
		}, nil

	default:
		return nil, HistoryOutput{}, fmt.Errorf("unsupported action %q (use 'list', 'show', or 'delete')", action)
	}
}

// loadedMap is a freshly built map and the YAML document it came from.
type loadedMap struct {
	m        *fcm.Map
	document string
}

// resolveFile maps a tool's file argument to a path inside the root.
func (s *Server) resolveFile(file string) (string, error) {
	if strings.TrimSpace(file) == "" {
		return "", fmt.Errorf("file is required")
	}
	path, err := pathutil.ResolveInRoot(s.root, file)
	if err != nil {
		return "", fmt.Errorf("invalid file: %w", err)
	}
	return path, nil
}

// loadMap builds the named map from a document under the root. Every call
// builds a new map so no state is shared between requests.
func (s *Server) loadMap(file, name string) (*loadedMap, error) {
	path, err := s.resolveFile(file)
	if err != nil {
		return nil, err
	}
	doc, err := mapfile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load map: %w", err)
	}
	spec, err := doc.Find(name)
	if err != nil {
		return nil, err
	}
	m, err := spec.Build()
	if err != nil {
		return nil, fmt.Errorf("build map %q: %w", spec.Name, err)
	}

	data, err := mapfile.Marshal(&mapfile.Document{Maps: []mapfile.MapSpec{*spec}})
	if err != nil {
		return nil, err
	}
	return &loadedMap{m: m, document: string(data)}, nil
}

// applyOverrides sets initial outputs, then fixed outputs.
func applyOverrides(m *fcm.Map, set, fix map[string]float64) error {
	if err := m.SetOutputs(set, false); err != nil {
		return err
	}
	return m.SetOutputs(fix, true)
}

// controller always traces: the final outputs and any recorded run come
// from the trace.
func (s *Server) controller(m *fcm.Map) *simulation.Controller {
	cfg := simulation.Config{Trace: true, Logger: s.logger}
	if s.metrics != nil {
		cfg.Observers = append(cfg.Observers, s.metrics)
	}
	return simulation.NewController(m, cfg)
}

// finishSimulation records the run if asked and builds the tool output.
func (s *Server) finishSimulation(ctx context.Context, res *simulation.Result, document string, trace, record bool) (*sdk.CallToolResult, SimulationOutput, error) {
	out := SimulationOutput{
		Map:       res.Map,
		Mode:      string(res.Mode),
		Epochs:    res.Epochs,
		Converged: res.Converged,
		Delta:     res.Delta.String(),
		Outputs:   make(map[string]string),
	}

	last := res.Trace.Last()
	for i, name := range res.Trace.Concepts {
		out.Outputs[name] = last.Outputs[i].String()
	}
	if trace {
		out.Concepts = res.Trace.Concepts
		for _, snap := range res.Trace.Epochs {
			out.Trace = append(out.Trace, valueStrings(snap.Outputs))
		}
	}

	if record {
		run := store.NewRun(res, document)
		if err := s.store.SaveRun(ctx, run); err != nil {
			return nil, SimulationOutput{}, fmt.Errorf("record run: %w", err)
		}
		out.RunID = run.ID
	}

	switch {
	case res.Mode == simulation.ModeRun:
		out.Message = fmt.Sprintf("Ran %d epoch(s) of %s, delta %s", res.Epochs, res.Map, out.Delta)
	case res.Converged:
		out.Message = fmt.Sprintf("%s converged after %d epoch(s), delta %s", res.Map, res.Epochs, out.Delta)
	default:
		out.Message = fmt.Sprintf("%s did not converge within %d epoch(s), delta %s", res.Map, res.MaxEpochs, out.Delta)
	}
	return nil, out, nil
}

func summarizeRun(run *store.Run) RunSummary {
	return RunSummary{
		ID:         run.ID,
		Map:        run.Map,
		Mode:       run.Mode,
		Epochs:     run.Epochs,
		Converged:  run.Converged,
		FinalDelta: run.FinalDelta.String(),
		StartedAt:  run.StartedAt,
		DurationMs: run.Duration.Milliseconds(),
	}
}

func detailRun(run *store.Run) RunDetail {
	d := RunDetail{
		RunSummary: summarizeRun(run),
		MaxDelta:   run.MaxDelta,
		MaxEpochs:  run.MaxEpochs,
		Document:   run.Document,
		Concepts:   run.Concepts,
	}
	for _, row := range run.Outputs {
		d.Trace = append(d.Trace, valueStrings(row))
	}
	return d
}

func valueStrings(vs []fcm.Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
