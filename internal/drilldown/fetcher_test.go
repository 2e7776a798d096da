package drilldown

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
)

func TestExpand(t *testing.T) {
	scope := Scope{ClientID: "C 1", AccountID: "ACC", Pan: "All", ScopeID: "S/1"}

	assert.Equal(t, "/filter/assetclass/S%2F1/Real%20Estate%2FREIT",
		Expand("/filter/assetclass/{scope}/{p0}", model.DrillPath{"Real Estate/REIT"}, scope))
	assert.Equal(t, "/pan-summary/C%201/All", Expand("/pan-summary/{client}/{pan}", nil, scope))
	assert.Equal(t, "/subassets/a/b/c", Expand("/subassets/{p0}/{p1}/{p2}", model.DrillPath{"a", "b", "c"}, scope))

	scope.ScopeID = ""
	assert.Equal(t, "/asset-classes/ACC", Expand("/asset-classes/{scope}", nil, scope))
}

func TestBuildRequest(t *testing.T) {
	scope := Scope{AccountID: "ACC", Cookie: "sid=1", Currency: model.CurrencyUSD}

	req := BuildRequest("/assetclass1", "", true, nil, scope)
	assert.Equal(t, "/assetclass1", req.Path)
	assert.Equal(t, "USD", req.Query.Get("currency"))
	assert.Equal(t, "sid=1", req.Cookie)

	req = BuildRequest("/subassets/{p0}", "$.subassets", false, model.DrillPath{"x"}, scope)
	assert.Nil(t, req.Query)
	assert.Equal(t, "$.subassets", req.Envelope)
}

func TestLevelFetcher_FetchLevel(t *testing.T) {
	tbl := testTable(t, "allocation")
	src := allocationSource()
	f := NewLevelFetcher(src, tbl, zerolog.Nop())
	scope := testScope()
	scope.ScopeID = "S1"

	t.Run("success", func(t *testing.T) {
		res := f.FetchLevel(context.Background(), nil, tbl.Defaults, scope)
		require.True(t, res.OK())
		assert.Len(t, res.Rows, 2)
	})

	// WHY: callers must be able to tell a failure from an empty level.
	t.Run("failure is tagged", func(t *testing.T) {
		src.fail("/filter/accounts/S1", apperrors.ErrUpstreamStatus)
		res := f.FetchLevel(context.Background(), model.DrillPath{"Equity"}, tbl.Defaults, scope)
		assert.False(t, res.OK())
		assert.Empty(t, res.Rows)
		assert.ErrorIs(t, res.Err, apperrors.ErrUpstreamStatus)
	})

	t.Run("empty is ok", func(t *testing.T) {
		src.set("/filter/accounts/S1")
		res := f.FetchLevel(context.Background(), model.DrillPath{"Equity"}, tbl.Defaults, scope)
		assert.True(t, res.OK())
		assert.Empty(t, res.Rows)
	})

	t.Run("leaf has no fetch", func(t *testing.T) {
		dims := schema.Dimensions{Allocation: "Member", Distribution: "Member"}
		res := f.FetchLevel(context.Background(), model.DrillPath{"P"}, dims, scope)
		assert.ErrorIs(t, res.Err, apperrors.ErrNoDeeperLevel)
	})
}

func TestLevelFetcher_GroupedLevel(t *testing.T) {
	tbl := testTable(t, "equity")
	src := equitySource()
	f := NewLevelFetcher(src, tbl, zerolog.Nop())
	dims := schema.Dimensions{Allocation: "Currency", Distribution: "Custodian"}

	res := f.FetchLevel(context.Background(), nil, dims, testScope())
	require.True(t, res.OK())
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Equity", res.Rows[0].Name)
	assert.Equal(t, "Debt", res.Rows[1].Name)
	require.Len(t, res.Members["Equity"], 2)
	assert.Equal(t, "TCS", res.Members["Equity"][1].Name)

	q := src.query("/data")
	assert.Equal(t, "Currency", q.Get("allocationBy"))
	assert.Equal(t, "Custodian", q.Get("distributionBy"))
	assert.Empty(t, q.Get("currency"))
}

func TestExpansionState(t *testing.T) {
	s := NewExpansionState()
	a := model.DrillPath{"A"}
	ab := model.DrillPath{"A", "B"}

	s.Store(a, nil)
	rows, ok := s.Cached(a)
	assert.True(t, ok)
	assert.Empty(t, rows)

	s.SetExpanded(ab)
	s.SetExpanded(a)
	assert.Equal(t, []model.DrillPath{a, ab}, s.Expanded())

	s.SetCollapsed(a)
	assert.False(t, s.IsExpanded(a))
	assert.True(t, s.IsExpanded(ab))
	_, ok = s.Cached(a)
	assert.True(t, ok)

	s.Reset()
	assert.Empty(t, s.Expanded())
	assert.Equal(t, 0, s.CacheLen())
}
