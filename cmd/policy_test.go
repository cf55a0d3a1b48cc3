package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genericsim/tribectl/internal/config"
	"github.com/genericsim/tribectl/internal/devserver"
	"github.com/genericsim/tribectl/internal/journal"
	"github.com/genericsim/tribectl/internal/model"
	"github.com/genericsim/tribectl/internal/policysync"
	"github.com/genericsim/tribectl/pkg/tribeapi"
)

func newDevBackend(t *testing.T) (tribeapi.Client, *devserver.Store) {
	t.Helper()
	store, err := devserver.LoadSeed("")
	require.NoError(t, err)
	ts := httptest.NewServer(devserver.New(store).Handler())
	t.Cleanup(ts.Close)
	return tribeapi.NewClient(ts.URL + "/api"), store
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"foodTaxRate=20", "STORAGEDECAYRATE=0.5", "sharingPriority=child"})
	require.NoError(t, err)
	assert.Equal(t, []assignment{
		{Field: model.FieldFoodTaxRate, Value: "20"},
		{Field: model.FieldStorageDecayRate, Value: "0.5"},
		{Field: model.FieldSharingPriority, Value: "child"},
	}, got)
}

func TestParseAssignments_Errors(t *testing.T) {
	_, err := parseAssignments([]string{"foodTaxRate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected field=value")

	_, err = parseAssignments([]string{"=5"})
	require.Error(t, err)

	_, err = parseAssignments([]string{"taxes=5"})
	require.Error(t, err)
	assert.ErrorIs(t, err, policysync.ErrUnknownField)
}

func TestDefaultAssignments(t *testing.T) {
	edits := defaultAssignments()
	require.Len(t, edits, len(model.PolicyFields))

	p := model.Policy{}
	for _, e := range edits {
		var err error
		p, err = p.WithField(e.Field, e.Value)
		require.NoError(t, err)
	}
	assert.Equal(t, model.DefaultPolicy(), p)
}

func TestFormatPolicy(t *testing.T) {
	var buf bytes.Buffer
	formatPolicy(&buf, model.DefaultPolicy())

	output := buf.String()
	assert.Contains(t, output, "FIELD")
	assert.Contains(t, output, "Food Tax Rate (%)")
	assert.Contains(t, output, "Elder - Prioritize oldest members")
	assert.Contains(t, output, "0.1")
	assert.Contains(t, output, "10 (inactive)")
}

func TestFormatChanges(t *testing.T) {
	base := model.DefaultPolicy()
	draft := base
	draft.StorageDecayRate = 0.5
	draft.SharingPriority = model.SharingChild

	var buf bytes.Buffer
	formatChanges(&buf, base, draft, draft.ChangedFields(base))

	output := buf.String()
	assert.Contains(t, output, "storageDecayRate")
	assert.Contains(t, output, "0.5")
	assert.Contains(t, output, "Child - Prioritize youngest members")
	assert.NotContains(t, output, "foodTaxRate")
}

func TestApplyEdits_Submits(t *testing.T) {
	client, store := newDevBackend(t)
	ctrl, err := newController(&config.Config{Policy: config.PolicyConfig{UpdateMode: "diff"}}, client, nil, "")
	require.NoError(t, err)

	var out bytes.Buffer
	err = applyEdits(context.Background(), &out, ctrl, 1, []assignment{{Field: model.FieldStorageDecayRate, Value: "0.5"}}, false)
	require.NoError(t, err)

	assert.Contains(t, out.String(), policysync.MsgPolicyUpdated)
	st, err := store.Get(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, st.Policy.StorageDecayRate, 1e-9)
}

func TestApplyEdits_ValidationFailure(t *testing.T) {
	client, store := newDevBackend(t)
	ctrl, err := newController(&config.Config{}, client, nil, "full")
	require.NoError(t, err)

	var out bytes.Buffer
	err = applyEdits(context.Background(), &out, ctrl, 1, []assignment{{Field: model.FieldFoodTaxRate, Value: "150"}}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, policysync.ErrValidationFailed)
	assert.Contains(t, out.String(), "Food tax rate must be between 0 and 100")

	st, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 10, st.Policy.FoodTaxRate)
}

func TestApplyEdits_DryRun(t *testing.T) {
	client, store := newDevBackend(t)
	ctrl, err := newController(&config.Config{}, client, nil, "")
	require.NoError(t, err)

	var out bytes.Buffer
	err = applyEdits(context.Background(), &out, ctrl, 2, []assignment{{Field: model.FieldWaterTaxRate, Value: "45"}}, true)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Dry run")

	st, err := store.Get(2)
	require.NoError(t, err)
	assert.Equal(t, 20, st.Policy.WaterTaxRate)
}

func TestApplyEdits_NoChanges(t *testing.T) {
	client, _ := newDevBackend(t)
	ctrl, err := newController(&config.Config{}, client, nil, "")
	require.NoError(t, err)

	var out bytes.Buffer
	err = applyEdits(context.Background(), &out, ctrl, 1, []assignment{{Field: model.FieldFoodTaxRate, Value: "10"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "No changes.\n", out.String())
}

func TestApplyEdits_UnknownTribe(t *testing.T) {
	client, _ := newDevBackend(t)
	ctrl, err := newController(&config.Config{}, client, nil, "")
	require.NoError(t, err)

	err = applyEdits(context.Background(), &bytes.Buffer{}, ctrl, 99, nil, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, policysync.ErrTribePolicyLoadFailed)
}

func TestApplyEdits_Journaled(t *testing.T) {
	client, _ := newDevBackend(t)
	st, err := journal.NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	ctrl, err := newController(&config.Config{}, client, st, "diff")
	require.NoError(t, err)

	err = applyEdits(context.Background(), &bytes.Buffer{}, ctrl, 1, []assignment{{Field: model.FieldHuntingIncentive, Value: "30"}}, false)
	require.NoError(t, err)

	entries, err := st.List(context.Background(), journal.Filter{TribeID: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.OutcomeUpdated, entries[0].Outcome)
	assert.Equal(t, "diff", entries[0].Mode)
	assert.Equal(t, []string{model.FieldHuntingIncentive}, entries[0].Changed)
}

func TestNewController_BadMode(t *testing.T) {
	_, err := newController(&config.Config{}, nil, nil, "patch")
	assert.Error(t, err)
}
