package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ndewijer/portfolio-dashboard/internal/errors"
	"github.com/ndewijer/portfolio-dashboard/internal/model"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
	"github.com/ndewijer/portfolio-dashboard/internal/service"
	"github.com/ndewijer/portfolio-dashboard/internal/testutil"
	"github.com/ndewijer/portfolio-dashboard/internal/validation"
)

// allocationBackend answers every request the allocation table makes under its default
// dimensions.
func allocationBackend(t *testing.T) *testutil.MockUpstream {
	t.Helper()
	return testutil.NewMockUpstream(t).
		Respond("/filter/accounts/ACC1", []map[string]any{{"account_id": "SCOPE1", "account_name": "Main"}}).
		Respond("/asset-classes/SCOPE1", []map[string]any{
			{"asset_class": "Equity", "today_total": 12500000, "yesterday_total": 12400000, "daily_return_pct": 0.81},
			{"asset_class": "Debt", "today_total": 850, "yesterday_total": 900, "daily_return_pct": -0.5},
		}).
		Respond("/filter/accounts/SCOPE1", []map[string]any{{"account_name": "Main", "today_total": 1000000}}).
		Respond("/pan-summary1/C1", []map[string]any{{"today_total": 20000000}})
}

func newSession(t *testing.T, svc *service.SessionService) model.Session {
	t.Helper()
	sess, err := svc.CreateSession(service.CreateSessionParams{ClientID: "C1", AccountID: "ACC1", Cookie: "sid=abc"})
	require.NoError(t, err)
	return sess
}

// TestSessionService_CreateSession tests session creation.
//
// WHY: Every other endpoint is addressed through a session, so its defaults decide what the
// dashboard shows before the user touches anything.
func TestSessionService_CreateSession(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSessionService(t, db, testutil.NewMockUpstream(t))

		sess := newSession(t, svc)

		assert.NoError(t, validation.ValidateUUID(sess.ID))
		assert.Equal(t, model.PanAll, sess.Pan)
		assert.Equal(t, model.CurrencyINR, sess.Currency)
		assert.Equal(t, 1, testutil.CountRows(t, db, "session"))
		assert.Equal(t, 1, testutil.CountRows(t, db, "session_credential"))
	})

	t.Run("requires client and account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSessionService(t, db, testutil.NewMockUpstream(t))

		_, err := svc.CreateSession(service.CreateSessionParams{ClientID: "C1"})
		assert.ErrorIs(t, err, apperrors.ErrMissingRequiredField)
	})

	t.Run("unknown session", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSessionService(t, db, testutil.NewMockUpstream(t))

		_, err := svc.GetSession(testutil.MakeID())
		assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})
}

func TestSessionService_Restore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	up := allocationBackend(t)
	first := testutil.NewTestSessionService(t, db, up)
	sess := newSession(t, first)
	tables := testutil.NewTestTableService(t, first)

	_, err := first.SetCurrency(context.Background(), sess.ID, model.CurrencyUSD)
	require.NoError(t, err)
	_, err = tables.SetDimensions(context.Background(), sess.ID, "allocation", schema.Dimensions{Allocation: "Member", Distribution: "Account"})
	require.NoError(t, err)

	// WHY: a new service instance simulates a restart; only what was persisted survives.
	second := testutil.NewTestSessionService(t, db, up)
	restored, err := second.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CurrencyUSD, restored.Currency)

	c, err := second.Controller(sess.ID, "allocation")
	require.NoError(t, err)
	assert.Equal(t, schema.Dimensions{Allocation: "Member", Distribution: "Account"}, c.Dimensions())
	assert.Equal(t, model.CurrencyUSD, c.Currency())
}

func TestSessionService_SetCurrency(t *testing.T) {
	db := testutil.SetupTestDB(t)
	up := testutil.NewMockUpstream(t).
		Respond("/assetclass1", []map[string]any{
			{"asset_class": "Alternative Investments", "today_total": 5000000},
			{"asset_class": "Equity", "today_total": 1},
		})
	svc := testutil.NewTestSessionService(t, db, up)
	tables := testutil.NewTestTableService(t, svc)
	sess := newSession(t, svc)

	view, err := tables.View(context.Background(), sess.ID, "alternatives")
	require.NoError(t, err)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "₹50.00L", view.Rows[0].Cells[0])
	assert.Equal(t, "INR", up.LastQuery("/assetclass1", "currency"))

	updated, err := svc.SetCurrency(context.Background(), sess.ID, model.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, model.CurrencyUSD, updated.Currency)

	// WHY: figures are converted by the backend, so a currency switch must refetch, not reformat.
	assert.Equal(t, 2, up.Calls("/assetclass1"))
	assert.Equal(t, "USD", up.LastQuery("/assetclass1", "currency"))

	view, err = tables.View(context.Background(), sess.ID, "alternatives")
	require.NoError(t, err)
	assert.Equal(t, model.CurrencyUSD, view.Currency)
	assert.Equal(t, "$5.00M", view.Rows[0].Cells[0])
}

func TestSessionService_SetCredentials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	up := allocationBackend(t)
	svc := testutil.NewTestSessionService(t, db, up)
	tables := testutil.NewTestTableService(t, svc)
	sess := newSession(t, svc)

	_, err := tables.View(context.Background(), sess.ID, "allocation")
	require.NoError(t, err)
	assert.Equal(t, "sid=abc", up.LastCookie())

	require.NoError(t, svc.SetCredentials(sess.ID, "sid=new"))
	_, err = tables.Refresh(context.Background(), sess.ID, "allocation")
	require.NoError(t, err)
	assert.Equal(t, "sid=new", up.LastCookie())
}

func TestSessionService_Pans(t *testing.T) {
	db := testutil.SetupTestDB(t)
	up := testutil.NewMockUpstream(t).
		Respond("/pan-list/C1", []map[string]any{
			{"pan_no": "ABCDE1234F", "account_name": "Alice"},
			{"pan_no": "ZYXWV9876K"},
			{"account_name": "no pan"},
		})
	svc := testutil.NewTestSessionService(t, db, up)
	sess := newSession(t, svc)

	pans, err := svc.Pans(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []service.PanOption{
		{Value: "All", Label: "All"},
		{Value: "ABCDE1234F", Label: "Alice"},
		{Value: "ZYXWV9876K", Label: "ZYXWV9876K"},
	}, pans)

	t.Run("backend failure", func(t *testing.T) {
		up.RespondStatus("/pan-list/C1", http.StatusInternalServerError)
		_, err := svc.Pans(context.Background(), sess.ID)
		assert.ErrorIs(t, err, apperrors.ErrFailedToRetrieve)
	})
}

func TestSessionService_Sweep(t *testing.T) {
	t.Run("closes idle workspaces and restores them on use", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSessionService(t, db, allocationBackend(t))
		sess := newSession(t, svc)

		before, err := svc.Controller(sess.ID, "allocation")
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		res, err := svc.Sweep(time.Millisecond, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Closed)
		assert.Equal(t, int64(0), res.Deleted)

		// WHY: a swept workspace must cancel its fetches; later requests get a fresh one.
		assert.ErrorIs(t, before.Load(context.Background()), apperrors.ErrControllerClosed)

		after, err := svc.Controller(sess.ID, "allocation")
		require.NoError(t, err)
		assert.NotSame(t, before, after)
	})

	t.Run("deletes sessions past retention", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSessionService(t, db, testutil.NewMockUpstream(t))
		old := testutil.NewSession().LastSeen(time.Now().Add(-48 * time.Hour)).Build(t, db)

		res, err := svc.Sweep(30*time.Minute, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Deleted)

		_, err = svc.GetSession(old.ID)
		assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})
}

func TestSessionService_DeleteSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestSessionService(t, db, testutil.NewMockUpstream(t))
	sess := newSession(t, svc)

	require.NoError(t, svc.DeleteSession(sess.ID))
	_, err := svc.GetSession(sess.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(sess.ID), apperrors.ErrSessionNotFound)
}
