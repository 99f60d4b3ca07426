package models

// CallGraphNode is a function/method/closure in the cross-file call graph.
type CallGraphNode struct {
	ID             string   `json:"id"` // qualified_name, unique within language/namespace scope
	QualifiedName  string   `json:"qualified_name"`
	File           string   `json:"file"`
	Line           int      `json:"line"`
	Language       string   `json:"language"`
	IsEntryPoint   bool     `json:"is_entry_point"`
	IsDataAccessor bool     `json:"is_data_accessor"`
	Kind           NodeKind `json:"kind"`
}

// CallGraphEdge is a (possibly unresolved) call-site edge.
type CallGraphEdge struct {
	CallerID           string `json:"caller_id"`
	CalleeNameUnresolved string `json:"callee_name_unresolved"`
	CalleeID           string `json:"callee_id,omitempty"`
	CallSiteFile       string `json:"call_site_file"`
	CallSiteLine       int    `json:"call_site_line"`
	Resolved           bool   `json:"resolved"`
	ResolutionTier     string `json:"resolution_tier,omitempty"`
}

// Validate enforces the resolved <=> callee_id contract from spec §3/§8.
func (e CallGraphEdge) Validate() bool {
	return e.Resolved == (e.CalleeID != "")
}

// GraphBuildResult is C7's build() return shape.
type GraphBuildResult struct {
	FilesProcessed  int      `json:"files_processed"`
	TotalFunctions  int      `json:"total_functions"`
	TotalCalls      int      `json:"total_calls"`
	ResolvedCalls   int      `json:"resolved_calls"`
	ResolutionRate  float64  `json:"resolution_rate"`
	EntryPoints     []string `json:"entry_points"`
	DataAccessors   []string `json:"data_accessors"`
	DurationMS      int64    `json:"duration_ms"`
	Errors          []string `json:"errors"`
}

// Path is an ordered sequence of node ids returned by a reachability query.
type Path struct {
	Nodes      []string `json:"nodes"`
	Confidence float64  `json:"confidence"`
}

// ImpactResult is C8's impact_of_changes() return shape.
type ImpactResult struct {
	AffectedFiles       []string `json:"affected_files"`
	AffectedFunctions   []string `json:"affected_functions"`
	EntryPointsTouched  []string `json:"entry_points_touched"`
	DataAccessTouched   []string `json:"data_access_touched"`
	RiskScore           int      `json:"risk_score"`
	HistoricalBonus     float64  `json:"historical_bonus,omitempty"`
	// Centrality maps affected-function id to its PageRank over the whole
	// call graph (§4.8 optional signal, populated behind --centrality).
	Centrality map[string]float64 `json:"centrality,omitempty"`
}
