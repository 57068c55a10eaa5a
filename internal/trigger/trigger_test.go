package trigger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davrell/fluentdml/internal/dml"
)

func TestBeforeAfter(t *testing.T) {
	assert.Equal(t, BeforeAdd, Before(PhaseAdd))
	assert.Equal(t, AfterAdd, After(PhaseAdd))
	assert.Equal(t, BeforeUpdate, Before(PhaseUpdate))
	assert.Equal(t, AfterDelete, After(PhaseDelete))
}

func TestRegistry_FiltersToOneTable(t *testing.T) {
	descs := []Descriptor{
		{Type: BeforeAdd, Database: "app", Table: "users"},
		{Type: AfterAdd, Database: "app", Table: "orders"},
		{Type: BeforeDelete, Database: "other", Table: "users"},
	}

	reg := NewRegistry(descs, "app", "users")

	require.Equal(t, 1, reg.Len())
	got := reg.Get(BeforeAdd)
	require.NotNil(t, got)
	assert.Equal(t, "users", got.Table)
	assert.Nil(t, reg.Get(AfterAdd))
	assert.Nil(t, reg.Get(BeforeDelete))
}

func TestRegistry_NilSafe(t *testing.T) {
	var reg *Registry
	assert.Nil(t, reg.Get(BeforeAdd))
	assert.Equal(t, 0, reg.Len())
}

func TestRunner_Execute_NoHandler(t *testing.T) {
	r := NewRunner(t.TempDir())

	icept, err := r.Execute(context.Background(), nil, "app", "users", BeforeAdd, dml.Row{"id": 1})
	require.NoError(t, err)
	assert.Nil(t, icept)
}

func TestRunner_Execute_CommitWritesLog(t *testing.T) {
	logDir := t.TempDir()
	r := NewRunner(logDir)
	r.Register("app", "users", BeforeAdd, func(ctx context.Context, call Call) error {
		call.Log.Info("inserting user", "name", call.NewData["name"])
		return nil
	})

	icept, err := r.Execute(context.Background(), nil, "app", "users", BeforeAdd, dml.Row{"name": "Ada"})
	require.NoError(t, err)
	require.NotNil(t, icept)

	logPath := filepath.Join(logDir, "app", "users", "beforeAdd.log")
	_, statErr := os.Stat(logPath)
	assert.True(t, os.IsNotExist(statErr), "nothing is written before Commit")

	require.NoError(t, icept.Commit())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "inserting user")
	assert.Contains(t, string(data), "name=Ada")
}

func TestRunner_Execute_CommitAppends(t *testing.T) {
	logDir := t.TempDir()
	r := NewRunner(logDir)
	r.Register("app", "users", AfterUpdate, func(ctx context.Context, call Call) error {
		call.Log.Info("updated")
		return nil
	})

	for i := 0; i < 2; i++ {
		icept, err := r.Execute(context.Background(), nil, "app", "users", AfterUpdate, dml.Row{})
		require.NoError(t, err)
		require.NoError(t, icept.Commit())
	}

	data, err := os.ReadFile(filepath.Join(logDir, "app", "users", "afterUpdate.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, countLines(data))
}

func TestRunner_Execute_DiscardDropsOutput(t *testing.T) {
	logDir := t.TempDir()
	r := NewRunner(logDir)
	r.Register("app", "users", BeforeDelete, func(ctx context.Context, call Call) error {
		call.Log.Warn("about to delete")
		return nil
	})

	icept, err := r.Execute(context.Background(), nil, "app", "users", BeforeDelete, dml.Row{"id": 7})
	require.NoError(t, err)

	icept.Discard()
	require.NoError(t, icept.Commit(), "Commit after Discard is a no-op")

	_, statErr := os.Stat(filepath.Join(logDir, "app", "users", "beforeDelete.log"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunner_Execute_CommitIdempotent(t *testing.T) {
	logDir := t.TempDir()
	r := NewRunner(logDir)
	r.Register("app", "users", BeforeAdd, func(ctx context.Context, call Call) error {
		call.Log.Info("once")
		return nil
	})

	icept, err := r.Execute(context.Background(), nil, "app", "users", BeforeAdd, dml.Row{})
	require.NoError(t, err)
	require.NoError(t, icept.Commit())
	require.NoError(t, icept.Commit())

	data, err := os.ReadFile(filepath.Join(logDir, "app", "users", "beforeAdd.log"))
	require.NoError(t, err)
	assert.Equal(t, 1, countLines(data))
}

func TestRunner_Execute_HandlerError(t *testing.T) {
	logDir := t.TempDir()
	r := NewRunner(logDir)
	handlerErr := errors.New("row rejected")
	r.Register("app", "users", BeforeAdd, func(ctx context.Context, call Call) error {
		call.Log.Info("should never surface")
		return handlerErr
	})

	icept, err := r.Execute(context.Background(), nil, "app", "users", BeforeAdd, dml.Row{"id": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, handlerErr)
	assert.Contains(t, err.Error(), "beforeAdd")
	assert.Nil(t, icept)
}

// stubCollaborator serves canned rows and records the descriptors queried
// through the handler's engine handle.
type stubCollaborator struct {
	queried []dml.Descriptor
	rows    []dml.Row
}

func (s *stubCollaborator) Query(ctx context.Context, d dml.Descriptor) ([]dml.Row, error) {
	s.queried = append(s.queried, d)
	return s.rows, nil
}

func TestRunner_Execute_HandlerQueriesThroughEngine(t *testing.T) {
	r := NewRunner(t.TempDir())
	stub := &stubCollaborator{rows: []dml.Row{{"id": int64(7), "status": "active"}}}

	var got []dml.Row
	r.Register("app", "users", BeforeUpdate, func(ctx context.Context, call Call) error {
		require.NotNil(t, call.Engine)
		d := dml.NewDescriptor("app", "users")
		d.Where = []dml.Condition{dml.Leaf("id", dml.OpEq, call.NewData["id"], dml.ConnectiveAnd)}
		rows, err := call.Engine.Query(ctx, d)
		if err != nil {
			return err
		}
		got = rows
		return nil
	})

	_, err := r.Execute(context.Background(), stub, "app", "users", BeforeUpdate, dml.Row{"id": int64(7)})
	require.NoError(t, err)

	require.Len(t, stub.queried, 1)
	assert.Equal(t, "users", stub.queried[0].Table)
	require.Len(t, got, 1)
	assert.Equal(t, "active", got[0]["status"])
}

func TestRunner_Execute_HandlerSeesRowCopy(t *testing.T) {
	r := NewRunner(t.TempDir())
	r.Register("app", "users", BeforeAdd, func(ctx context.Context, call Call) error {
		call.NewData["name"] = "mutated"
		return nil
	})

	row := dml.Row{"name": "Ada"}
	_, err := r.Execute(context.Background(), nil, "app", "users", BeforeAdd, row)
	require.NoError(t, err)
	assert.Equal(t, "Ada", row["name"])
}

func TestInterceptor_NilSafe(t *testing.T) {
	var icept *Interceptor
	assert.NoError(t, icept.Commit())
	icept.Discard()
}

func countLines(data []byte) int {
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}
