// Package mcp provides an MCP (Model Context Protocol) server for cogmap.
package mcp

import (
	"time"

	"github.com/nvandessel/cogmap/internal/visualization"
)

// Concept outputs are reported as strings ("0.5", "NaN", "+Inf",
// "undefined") since JSON numbers cannot carry NaN or infinities.

// RunInput defines the input for the cogmap_run tool.
type RunInput struct {
	File   string             `json:"file" jsonschema:"Map document path, relative to the project root"`
	Map    string             `json:"map,omitempty" jsonschema:"Map name within the document (default: first map)"`
	Epochs int                `json:"epochs,omitempty" jsonschema:"Number of epochs to execute (default: 10)"`
	Set    map[string]float64 `json:"set,omitempty" jsonschema:"Initial outputs by concept name"`
	Fix    map[string]float64 `json:"fix,omitempty" jsonschema:"Fixed outputs by concept name; fixed concepts never update"`
	Trace  bool               `json:"trace,omitempty" jsonschema:"Include every epoch's outputs in the result"`
	Record bool               `json:"record,omitempty" jsonschema:"Save the run to history"`
}

// ConvergeInput defines the input for the cogmap_converge tool.
type ConvergeInput struct {
	File      string             `json:"file" jsonschema:"Map document path, relative to the project root"`
	Map       string             `json:"map,omitempty" jsonschema:"Map name within the document (default: first map)"`
	MaxDelta  *float64           `json:"max_delta,omitempty" jsonschema:"Convergence threshold on the average squared output change (default from config)"`
	MaxEpochs *int               `json:"max_epochs,omitempty" jsonschema:"Epoch budget (default from config)"`
	Set       map[string]float64 `json:"set,omitempty" jsonschema:"Initial outputs by concept name"`
	Fix       map[string]float64 `json:"fix,omitempty" jsonschema:"Fixed outputs by concept name; fixed concepts never update"`
	Trace     bool               `json:"trace,omitempty" jsonschema:"Include every epoch's outputs in the result"`
	Record    bool               `json:"record,omitempty" jsonschema:"Save the run to history"`
}

// SimulationOutput is returned by cogmap_run and cogmap_converge.
type SimulationOutput struct {
	RunID     string            `json:"run_id,omitempty" jsonschema:"History ID when the run was recorded"`
	Map       string            `json:"map" jsonschema:"Name of the simulated map"`
	Mode      string            `json:"mode" jsonschema:"run or converge"`
	Epochs    int               `json:"epochs" jsonschema:"Epochs executed"`
	Converged bool              `json:"converged" jsonschema:"Whether the convergence threshold was reached (converge only)"`
	Delta     string            `json:"delta" jsonschema:"Average squared output change of the last epoch"`
	Outputs   map[string]string `json:"outputs" jsonschema:"Final output of every concept"`
	Concepts  []string          `json:"concepts,omitempty" jsonschema:"Column order of trace rows"`
	Trace     [][]string        `json:"trace,omitempty" jsonschema:"Outputs per epoch, starting with the initial state"`
	Message   string            `json:"message" jsonschema:"Human-readable summary"`
}

// GraphInput defines the input for the cogmap_graph tool.
type GraphInput struct {
	File   string `json:"file" jsonschema:"Map document path, relative to the project root"`
	Map    string `json:"map,omitempty" jsonschema:"Map name within the document (default: first map)"`
	Format string `json:"format,omitempty" jsonschema:"Output format: 'dot' or 'json' (default: json)"`
}

// GraphOutput defines the output for the cogmap_graph tool.
type GraphOutput struct {
	Format    string               `json:"format" jsonschema:"Format of the rendered graph"`
	DOT       string               `json:"dot,omitempty" jsonschema:"Graphviz source (dot format)"`
	Graph     *visualization.Graph `json:"graph,omitempty" jsonschema:"Nodes and edges (json format)"`
	NodeCount int                  `json:"node_count" jsonschema:"Number of concepts"`
	EdgeCount int                  `json:"edge_count" jsonschema:"Number of connections"`
}

// ValidateInput defines the input for the cogmap_validate tool.
type ValidateInput struct {
	File string `json:"file" jsonschema:"Map document path, relative to the project root"`
}

// ValidateOutput defines the output for the cogmap_validate tool.
type ValidateOutput struct {
	Valid   bool     `json:"valid" jsonschema:"Whether every map in the document parses and builds"`
	Maps    []string `json:"maps,omitempty" jsonschema:"Map names in document order"`
	Errors  []string `json:"errors,omitempty" jsonschema:"Problems found"`
	Message string   `json:"message" jsonschema:"Human-readable summary"`
}

// HistoryInput defines the input for the cogmap_history tool.
type HistoryInput struct {
	Action string `json:"action,omitempty" jsonschema:"'list' (default), 'show' or 'delete'"`
	ID     string `json:"id,omitempty" jsonschema:"Run ID or unique prefix (show, delete)"`
	Map    string `json:"map,omitempty" jsonschema:"Only list runs of this map"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum runs to list (default: 20)"`
}

// HistoryOutput defines the output for the cogmap_history tool.
type HistoryOutput struct {
	Runs    []RunSummary `json:"runs,omitempty" jsonschema:"Recorded runs, newest first"`
	Run     *RunDetail   `json:"run,omitempty" jsonschema:"The requested run (show)"`
	Count   int          `json:"count" jsonschema:"Number of runs returned or deleted"`
	Message string       `json:"message" jsonschema:"Human-readable summary"`
}

// RunSummary is a list view of a recorded run.
type RunSummary struct {
	ID         string    `json:"id"`
	Map        string    `json:"map"`
	Mode       string    `json:"mode"`
	Epochs     int       `json:"epochs"`
	Converged  bool      `json:"converged"`
	FinalDelta string    `json:"final_delta"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// RunDetail is a recorded run with its trace.
type RunDetail struct {
	RunSummary
	MaxDelta  *float64   `json:"max_delta,omitempty"`
	MaxEpochs int        `json:"max_epochs"`
	Document  string     `json:"document,omitempty"`
	Concepts  []string   `json:"concepts,omitempty"`
	Trace     [][]string `json:"trace,omitempty"`
}
