package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftscan/driftscan/internal/detectors"
	"github.com/driftscan/driftscan/pkg/models"
)

type fakeDetector struct{ id string }

func (f fakeDetector) Detect(detectors.Context) (detectors.Result, error) {
	return detectors.Result{}, nil
}

func TestRegisterRejectsMalformedID(t *testing.T) {
	reg := New(Hooks{})
	err := reg.Register("nosubcategory", fakeDetector{}, Info{}, false)
	require.Error(t, err)
}

func TestRegisterRejectsDuplicateUnlessOverride(t *testing.T) {
	reg := New(Hooks{})
	require.NoError(t, reg.Register("api/routes", fakeDetector{id: "a"}, Info{}, false))
	require.Error(t, reg.Register("api/routes", fakeDetector{id: "b"}, Info{}, false))
	require.NoError(t, reg.Register("api/routes", fakeDetector{id: "c"}, Info{}, true))
}

func TestGetLazilyConstructsOnce(t *testing.T) {
	reg := New(Hooks{})
	calls := 0
	require.NoError(t, reg.RegisterFactory("api/routes", func() detectors.Detector {
		calls++
		return fakeDetector{}
	}, Info{}, false))

	_, err := reg.Get("api/routes")
	require.NoError(t, err)
	_, err = reg.Get("api/routes")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestGetUnknownIDNotFound(t *testing.T) {
	reg := New(Hooks{})
	_, err := reg.Get("api/missing")
	require.Error(t, err)
}

func TestQueryFiltersAndOrdersByPriorityThenID(t *testing.T) {
	reg := New(Hooks{})
	require.NoError(t, reg.Register("api/routes", fakeDetector{}, Info{
		Category: models.CategoryAPI, Enabled: true, Priority: 1,
	}, false))
	require.NoError(t, reg.Register("api/envelope", fakeDetector{}, Info{
		Category: models.CategoryAPI, Enabled: true, Priority: 5,
	}, false))
	require.NoError(t, reg.Register("auth/middleware", fakeDetector{}, Info{
		Category: models.CategoryAuth, Enabled: false, Priority: 1,
	}, false))

	results := reg.Query(Query{Category: models.CategoryAPI, EnabledOnly: true})
	require.Len(t, results, 2)
	require.Equal(t, "api/envelope", results[0].ID) // higher priority first
	require.Equal(t, "api/routes", results[1].ID)

	require.Len(t, reg.Query(Query{EnabledOnly: true}), 2)
	require.Len(t, reg.Query(Query{}), 3)
}

func TestQueryFiltersByLanguage(t *testing.T) {
	reg := New(Hooks{})
	require.NoError(t, reg.Register("api/routes", fakeDetector{}, Info{
		Languages: []string{"go"},
	}, false))
	require.NoError(t, reg.Register("api/envelope", fakeDetector{}, Info{
		Languages: nil, // matches all languages
	}, false))

	require.Len(t, reg.Query(Query{Language: "go"}), 2)
	require.Len(t, reg.Query(Query{Language: "python"}), 1)
}

func TestSetEnabledUnknownID(t *testing.T) {
	reg := New(Hooks{})
	require.Error(t, reg.SetEnabled("api/missing", true))
}

func TestUnloadInvokesHookAndRemovesEntry(t *testing.T) {
	var unloaded string
	reg := New(Hooks{OnUnload: func(id string) { unloaded = id }})
	require.NoError(t, reg.Register("api/routes", fakeDetector{}, Info{}, false))

	reg.Unload("api/routes")
	require.Equal(t, "api/routes", unloaded)
	_, err := reg.Get("api/routes")
	require.Error(t, err)
}

func TestNotifyFileChangeIgnoresHookPanic(t *testing.T) {
	reg := New(Hooks{OnFileChange: func(id, file string) { panic("boom") }})
	require.NoError(t, reg.Register("api/routes", fakeDetector{}, Info{}, false))

	require.NotPanics(t, func() { reg.NotifyFileChange("main.go") })
}

func TestSize(t *testing.T) {
	reg := New(Hooks{})
	require.Equal(t, 0, reg.Size())
	require.NoError(t, reg.Register("api/routes", fakeDetector{}, Info{}, false))
	require.Equal(t, 1, reg.Size())
}
