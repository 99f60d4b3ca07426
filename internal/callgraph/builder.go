package callgraph

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/semantic"
	"github.com/driftscan/driftscan/pkg/ast"
	"github.com/driftscan/driftscan/pkg/models"
)

// refExtractor is implemented by ast.Provider backends (pkg/ast/treesitter)
// that can additionally surface indirect function references — callbacks,
// decorators, dynamic dispatch — which a plain Functions()/Calls() walk
// misses. Providers that don't implement it (e.g. the fixture provider in
// tests) simply skip this enrichment.
type refExtractor interface {
	ExtractRefs(path string) ([]semantic.Ref, error)
}

// DefaultBatchSize is the default cross-file resolution batch of §4.7 step 2.
const DefaultBatchSize = 50

// frameworkEntryRe matches file-path conventions that mark a node as an
// entry point independent of route-pattern location (§4.7 step 3).
var frameworkEntryRe = regexp.MustCompile(`(?i)(^|/)(routes?|controllers?)/|/route\.[a-z]+$`)

// fileExtraction is the per-file intermediate of §4.7 step 1.
type fileExtraction struct {
	Path         string             `json:"path"`
	Hash         string             `json:"hash"`
	Functions    []ast.FunctionDecl `json:"functions"`
	Calls        []ast.CallInfo     `json:"calls"`
	Imports      []ast.Import       `json:"imports"`
	IndirectRefs []semantic.Ref     `json:"indirect_refs,omitempty"`
}

// Builder implements build(patterns[], pre_scanned_access_points?).
type Builder struct {
	provider  ast.Provider
	store     *Store
	batchSize int
	log       *zap.Logger
}

func New(provider ast.Provider, store *Store) *Builder {
	return &Builder{provider: provider, store: store, batchSize: DefaultBatchSize, log: zap.NewNop()}
}

func (b *Builder) WithBatchSize(n int) *Builder {
	if n > 0 {
		b.batchSize = n
	}
	return b
}

// WithLogger attaches structured logging for the build's per-stage
// progress and resolution outcome. A nil logger is ignored, leaving the
// no-op default in place.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	if l != nil {
		b.log = l
	}
	return b
}

// Build runs the five-step algorithm of §4.7 over files, tagging entry points
// from routePatterns (locations of the api/route-structure pattern) and data
// accessors from accessPoints (§4.6's BoundaryResult.AccessPoints).
func (b *Builder) Build(ctx context.Context, files []string, routePatterns []models.Pattern, accessPoints []models.AccessPoint) (models.GraphBuildResult, error) {
	start := time.Now()
	result := models.GraphBuildResult{}
	b.log.Info("call graph build starting", zap.Int("files", len(files)), zap.Int("batch_size", b.batchSize))

	extractions := make([]fileExtraction, 0, len(files))
	for _, path := range files {
		select {
		case <-ctx.Done():
			b.log.Warn("call graph build cancelled", zap.Int("files_processed", result.FilesProcessed))
			return result, errkind.Transient("callgraph", "", ctx.Err())
		default:
		}
		fe, err := b.extractFile(path)
		if err != nil {
			b.log.Warn("extraction failed", zap.String("path", path), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		if err := b.store.PutExtraction(fe.Hash, fe); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		extractions = append(extractions, fe)
		result.FilesProcessed++
		result.TotalFunctions += len(fe.Functions)
		result.TotalCalls += len(fe.Calls) + len(fe.IndirectRefs)
	}

	nodesByQName, nodes := buildNodes(extractions)
	for _, n := range nodes {
		if err := b.store.PutNode(n); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	edges := resolveInBatches(extractions, nodesByQName, b.batchSize)
	seq := 0
	for _, e := range edges {
		if err := b.store.PutEdge(seq, e); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		seq++
		if e.Resolved {
			result.ResolvedCalls++
		}
	}
	if result.TotalCalls > 0 {
		result.ResolutionRate = float64(result.ResolvedCalls) / float64(result.TotalCalls)
	}

	tagEntryPoints(nodes, routePatterns)
	tagDataAccessors(nodes, edges, accessPoints)
	for _, n := range nodes {
		if n.IsEntryPoint {
			result.EntryPoints = append(result.EntryPoints, n.ID)
		}
		if n.IsDataAccessor {
			result.DataAccessors = append(result.DataAccessors, n.ID)
		}
		if n.IsEntryPoint || n.IsDataAccessor {
			if err := b.store.PutNode(n); err != nil {
				result.Errors = append(result.Errors, err.Error())
			}
		}
	}

	result.DurationMS = time.Since(start).Milliseconds()
	b.log.Info("call graph build finished",
		zap.Int("files_processed", result.FilesProcessed),
		zap.Int("total_calls", result.TotalCalls),
		zap.Int("resolved_calls", result.ResolvedCalls),
		zap.Float64("resolution_rate", result.ResolutionRate),
		zap.Int64("duration_ms", result.DurationMS),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (b *Builder) extractFile(path string) (fileExtraction, error) {
	f, err := b.provider.Parse(path)
	if err != nil {
		return fileExtraction{}, err
	}
	fns := f.Functions()
	calls := f.Calls()
	imports := f.Imports()

	var refs []semantic.Ref
	if re, ok := b.provider.(refExtractor); ok {
		refs, _ = re.ExtractRefs(path) // best-effort: indirect refs enrich, never block extraction
	}

	return fileExtraction{
		Path:         path,
		Hash:         hashDecls(path, fns, calls),
		Functions:    fns,
		Calls:        calls,
		Imports:      imports,
		IndirectRefs: refs,
	}, nil
}

func hashDecls(path string, fns []ast.FunctionDecl, calls []ast.CallInfo) string {
	h := xxhash.New()
	h.Write([]byte(path))
	for _, fn := range fns {
		h.Write([]byte(fn.Name))
		h.Write([]byte(strconv.Itoa(fn.Pos.Line)))
	}
	h.Write([]byte(strconv.Itoa(len(calls))))
	return strconv.FormatUint(h.Sum64(), 16)
}

// qualifiedName derives a stable node id: "<package-dir>.<Receiver>.<Name>"
// for methods, "<package-dir>.<Name>" for functions — the package directory
// stands in for the import path, since extraction is file-local.
func qualifiedName(path string, fn ast.FunctionDecl) string {
	pkg := packageOf(path)
	if fn.Receiver != "" {
		recv := strings.TrimPrefix(fn.Receiver, "*")
		return pkg + "." + recv + "." + fn.Name
	}
	return pkg + "." + fn.Name
}

func packageOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

func buildNodes(extractions []fileExtraction) (map[string][]models.CallGraphNode, []models.CallGraphNode) {
	byQName := map[string][]models.CallGraphNode{}
	var all []models.CallGraphNode
	for _, fe := range extractions {
		for _, fn := range fe.Functions {
			kind := models.NodeFunction
			if fn.Receiver != "" {
				kind = models.NodeMethod
			}
			qn := qualifiedName(fe.Path, fn)
			n := models.CallGraphNode{
				ID:            qn,
				QualifiedName: qn,
				File:          fe.Path,
				Line:          fn.Pos.Line,
				Language:      string(languageOf(fe.Path)),
				Kind:          kind,
			}
			byQName[qn] = append(byQName[qn], n)
			all = append(all, n)
		}
	}
	return byQName, all
}

func languageOf(path string) ast.Language {
	switch {
	case strings.HasSuffix(path, ".go"):
		return ast.LangGo
	case strings.HasSuffix(path, ".rb"):
		return ast.LangRuby
	case strings.HasSuffix(path, ".ts"), strings.HasSuffix(path, ".tsx"):
		return ast.LangTypeScript
	case strings.HasSuffix(path, ".js"):
		return ast.LangJavaScript
	default:
		return ast.LangUnknown
	}
}

// resolveInBatches implements §4.7 step 2: walk extractions batchSize files
// at a time, binding each call site by exact qualified-name match, then
// import-aware local-name match, then heuristic method-name match.
func resolveInBatches(extractions []fileExtraction, byQName map[string][]models.CallGraphNode, batchSize int) []models.CallGraphEdge {
	byLocalName := map[string][]string{} // bare function/method name -> qualified ids
	for qn, nodes := range byQName {
		for _, n := range nodes {
			local := n.QualifiedName
			if i := strings.LastIndex(local, "."); i >= 0 {
				local = local[i+1:]
			}
			byLocalName[local] = append(byLocalName[local], qn)
		}
	}

	var edges []models.CallGraphEdge
	for start := 0; start < len(extractions); start += batchSize {
		end := start + batchSize
		if end > len(extractions) {
			end = len(extractions)
		}
		for _, fe := range extractions[start:end] {
			callerID := callerFor(fe)
			for _, call := range fe.Calls {
				edges = append(edges, resolveCall(callerID, fe, call, byQName, byLocalName))
			}
			for _, ref := range fe.IndirectRefs {
				edges = append(edges, resolveIndirectRef(callerID, fe, ref, byLocalName))
			}
		}
	}
	return edges
}

// callerFor returns the default caller id for a file's calls: the file's
// first declared function, or its synthetic top-level id when it declares
// none. resolveCall replaces it with the enclosing function of the call's
// line when one is found.
func callerFor(fe fileExtraction) string {
	if len(fe.Functions) == 0 {
		return packageOf(fe.Path) + ".<file>"
	}
	return qualifiedName(fe.Path, fe.Functions[0])
}

func resolveCall(callerID string, fe fileExtraction, call ast.CallInfo, byQName map[string][]models.CallGraphNode, byLocalName map[string][]string) models.CallGraphEdge {
	caller := enclosingFunction(fe, call.Pos.Line)
	if caller != "" {
		callerID = caller
	}
	edge := models.CallGraphEdge{
		CallerID:             callerID,
		CalleeNameUnresolved: call.Callee,
		CallSiteFile:         fe.Path,
		CallSiteLine:         call.Pos.Line,
	}

	pkg := packageOf(fe.Path)
	if exact := pkg + "." + call.Callee; len(byQName[exact]) == 1 {
		edge.CalleeID = exact
		edge.Resolved = true
		edge.ResolutionTier = "exact-qualified-name"
		return edge
	}
	if call.Receiver != "" {
		if qn := pkg + "." + call.Receiver + "." + call.Callee; len(byQName[qn]) == 1 {
			edge.CalleeID = qn
			edge.Resolved = true
			edge.ResolutionTier = "import-aware-local-name"
			return edge
		}
	}
	for _, imp := range fe.Imports {
		alias := imp.Alias
		if alias == "" {
			alias = lastSegment(imp.Path)
		}
		if strings.HasPrefix(call.Callee, alias+".") {
			local := strings.TrimPrefix(call.Callee, alias+".")
			if candidates, ok := byLocalName[local]; ok && len(candidates) == 1 {
				edge.CalleeID = candidates[0]
				edge.Resolved = true
				edge.ResolutionTier = "import-aware-local-name"
				return edge
			}
		}
	}
	if candidates, ok := byLocalName[call.Callee]; ok && len(candidates) == 1 {
		edge.CalleeID = candidates[0]
		edge.Resolved = true
		edge.ResolutionTier = "heuristic-method-name"
		return edge
	}
	// Ambiguous (0 or >1 candidates): leave unresolved per §4.7 step 2.
	return edge
}

// resolveIndirectRef turns a semantic.Ref (a callback, decorator, or
// dynamic-dispatch target named but not called outright) into a call edge
// from the file's caller, resolved by bare name the way an unqualified
// call would be. These never carry call-site line info, since the
// reference itself — not a call expression — is the evidence.
func resolveIndirectRef(callerID string, fe fileExtraction, ref semantic.Ref, byLocalName map[string][]string) models.CallGraphEdge {
	edge := models.CallGraphEdge{
		CallerID:             callerID,
		CalleeNameUnresolved: ref.Name,
		CallSiteFile:         fe.Path,
	}
	if candidates, ok := byLocalName[ref.Name]; ok && len(candidates) == 1 {
		edge.CalleeID = candidates[0]
		edge.Resolved = true
		edge.ResolutionTier = "indirect-" + ref.Kind.String()
	}
	return edge
}

func enclosingFunction(fe fileExtraction, line int) string {
	var best ast.FunctionDecl
	found := false
	for _, fn := range fe.Functions {
		end := fn.EndLine
		if end == 0 {
			end = fn.Pos.Line
		}
		if fn.Pos.Line <= line && line <= end {
			if !found || fn.Pos.Line > best.Pos.Line {
				best = fn
				found = true
			}
		}
	}
	if !found {
		return ""
	}
	return qualifiedName(fe.Path, best)
}

func lastSegment(importPath string) string {
	idx := strings.LastIndex(importPath, "/")
	if idx < 0 {
		return importPath
	}
	return importPath[idx+1:]
}

// tagEntryPoints implements §4.7 step 3.
func tagEntryPoints(nodes []models.CallGraphNode, routePatterns []models.Pattern) {
	routeLines := map[string]map[int]bool{}
	for _, p := range routePatterns {
		for _, loc := range p.Locations {
			if routeLines[loc.File] == nil {
				routeLines[loc.File] = map[int]bool{}
			}
			routeLines[loc.File][loc.Line] = true
		}
	}
	for i := range nodes {
		n := &nodes[i]
		if frameworkEntryRe.MatchString(n.File) {
			n.IsEntryPoint = true
			continue
		}
		if strings.HasSuffix(n.QualifiedName, ".main") && strings.Contains(n.File, "cmd/") {
			n.IsEntryPoint = true
			continue
		}
		if lines, ok := routeLines[n.File]; ok {
			for line := range lines {
				if line >= n.Line && line <= n.Line+200 {
					n.IsEntryPoint = true
					break
				}
			}
		}
	}
}

// tagDataAccessors implements §4.7 step 4.
func tagDataAccessors(nodes []models.CallGraphNode, edges []models.CallGraphEdge, accessPoints []models.AccessPoint) {
	apLines := map[string]map[int]bool{}
	for _, ap := range accessPoints {
		if apLines[ap.File] == nil {
			apLines[ap.File] = map[int]bool{}
		}
		apLines[ap.File][ap.Line] = true
	}
	byID := map[string]*models.CallGraphNode{}
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}
	for i := range nodes {
		n := &nodes[i]
		if lines, ok := apLines[n.File]; ok {
			end := n.Line + 200
			for line := range lines {
				if line >= n.Line && line <= end {
					n.IsDataAccessor = true
					break
				}
			}
		}
	}
	for _, e := range edges {
		if !e.Resolved {
			continue
		}
		if lines, ok := apLines[e.CallSiteFile]; ok && lines[e.CallSiteLine] {
			if n, ok := byID[e.CalleeID]; ok {
				n.IsDataAccessor = true
			}
		}
	}
}
