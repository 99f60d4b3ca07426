package workspace_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftscan/driftscan/internal/workspace"
	"github.com/driftscan/driftscan/pkg/analyzer/deadcode"
)

func TestTopDeadFunctionsSortsAndTruncates(t *testing.T) {
	wc := workspace.WorkspaceContext{
		DeadCode: &deadcode.Analysis{
			DeadFunctions: []deadcode.Function{
				{Name: "Zeta"}, {Name: "Alpha"}, {Name: "Mid"},
			},
		},
	}
	require.Equal(t, []string{"Alpha", "Mid"}, wc.TopDeadFunctions(2))
}

func TestTopDeadFunctionsNilDeadCodeIsEmpty(t *testing.T) {
	var wc workspace.WorkspaceContext
	require.Nil(t, wc.TopDeadFunctions(5))
}
