package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davrell/fluentdml/internal/compute"
	"github.com/davrell/fluentdml/internal/dml"
	"github.com/davrell/fluentdml/internal/engine"
	"github.com/davrell/fluentdml/internal/store"
	"github.com/davrell/fluentdml/internal/trigger"
)

func openSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Disconnect() })

	_, err = st.DB().Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		age INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'active'
	)`)
	require.NoError(t, err)

	return NewSession("app", st, opts...)
}

func seedUsers(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.Table("users").Insert(context.Background(), []dml.Row{
		{"first_name": "Ada", "last_name": "Lovelace", "age": 36},
		{"first_name": "Grace", "last_name": "Hopper", "age": 45},
		{"first_name": "Linus", "last_name": "Torvalds", "age": 12},
	}))
}

func TestIntegration_InsertAndGet(t *testing.T) {
	s := openSession(t)
	seedUsers(t, s)

	rows, err := s.Table("users").
		Select("first_name", "age").
		Where("age", ">", 18).
		OrderBy("age", "desc").
		Get(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Grace", rows[0]["first_name"])
	assert.Equal(t, "Ada", rows[1]["first_name"])
}

func TestIntegration_FirstAndFind(t *testing.T) {
	s := openSession(t)
	seedUsers(t, s)
	ctx := context.Background()

	first, err := s.Table("users").OrderBy("age").First(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "Linus", first["first_name"])

	missing, err := s.Table("users").Where("age", ">", 200).First(ctx)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byID, err := s.Table("users").Find(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Grace", byID["first_name"])
}

func TestIntegration_WhereGroup(t *testing.T) {
	s := openSession(t)
	seedUsers(t, s)

	rows, err := s.Table("users").
		WhereGroup(func(q *Table) *Table {
			return q.Where("age", ">", 40).OrWhere("first_name", "=", "Linus")
		}).
		Where("status", "=", "active").
		Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestIntegration_Aggregates(t *testing.T) {
	s := openSession(t)
	seedUsers(t, s)
	ctx := context.Background()

	count, err := s.Table("users").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = s.Table("users").Where("age", ">", 100).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "empty result set counts as zero")

	sum, err := s.Table("users").Sum(ctx, "age")
	require.NoError(t, err)
	assert.Equal(t, float64(93), sum)

	max, err := s.Table("users").Max(ctx, "age")
	require.NoError(t, err)
	assert.Equal(t, float64(45), max)
}

func TestIntegration_UpdateAndDelete(t *testing.T) {
	s := openSession(t)
	seedUsers(t, s)
	ctx := context.Background()

	err := s.Table("users").
		Where("first_name", "=", "Ada").
		Update(ctx, dml.Row{"status": "retired"})
	require.NoError(t, err)

	row, err := s.Table("users").Where("first_name", "=", "Ada").First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "retired", row["status"])

	err = s.Table("users").Where("age", "<", 18).Delete(ctx)
	require.NoError(t, err)

	count, err := s.Table("users").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestIntegration_UpdateMatchingNothing_WarningError(t *testing.T) {
	s := openSession(t)

	err := s.Table("users").
		Where("id", "=", 404).
		Update(context.Background(), dml.Row{"status": "x"})
	require.Error(t, err)

	var engErr *engine.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.True(t, engErr.Warning())
}

func TestIntegration_ComputedField(t *testing.T) {
	computes := compute.NewProcessor([]compute.Field{
		{Column: "full_name", Instruction: "first_name + ' ' + last_name"},
	})
	s := openSession(t, WithComputes(computes))
	seedUsers(t, s)

	rows, err := s.Table("users").
		Select("id", "full_name").
		Where("first_name", "=", "Ada").
		Get(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "Ada Lovelace", rows[0]["full_name"])
	assert.Equal(t, int64(1), rows[0]["id"])
	// Dependency columns the caller never asked for are stripped.
	assert.NotContains(t, rows[0], "first_name")
	assert.NotContains(t, rows[0], "last_name")
}

func TestIntegration_BeforeAddTrigger(t *testing.T) {
	logDir := t.TempDir()
	runner := trigger.NewRunner(logDir)
	runner.Register("app", "users", trigger.BeforeAdd, func(ctx context.Context, call trigger.Call) error {
		call.Log.Info("adding user", "first_name", call.NewData["first_name"])
		return nil
	})
	descs := []trigger.Descriptor{
		{Type: trigger.BeforeAdd, Database: "app", Table: "users"},
	}
	s := openSession(t, WithTriggers(descs, runner))

	err := s.Table("users").Insert(context.Background(), []dml.Row{
		{"first_name": "Ada", "last_name": "Lovelace", "age": 36},
		{"first_name": "Grace", "last_name": "Hopper", "age": 45},
	})
	require.NoError(t, err)

	// One committed log line per inserted row.
	data, err := os.ReadFile(filepath.Join(logDir, "app", "users", "beforeAdd.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "first_name=Ada")
	assert.Contains(t, string(data), "first_name=Grace")

	count, err := s.Table("users").Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestIntegration_TriggerHandlerErrorAbortsInsert(t *testing.T) {
	runner := trigger.NewRunner(t.TempDir())
	runner.Register("app", "users", trigger.BeforeAdd, func(ctx context.Context, call trigger.Call) error {
		if call.NewData["first_name"] == "Grace" {
			return assert.AnError
		}
		return nil
	})
	descs := []trigger.Descriptor{
		{Type: trigger.BeforeAdd, Database: "app", Table: "users"},
	}
	s := openSession(t, WithTriggers(descs, runner))

	err := s.Table("users").Insert(context.Background(), []dml.Row{
		{"first_name": "Ada", "last_name": "Lovelace", "age": 36},
		{"first_name": "Grace", "last_name": "Hopper", "age": 45},
		{"first_name": "Linus", "last_name": "Torvalds", "age": 12},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)

	// Rows before the failing one stay written; later rows never ran.
	count, cerr := s.Table("users").Count(context.Background())
	require.NoError(t, cerr)
	assert.Equal(t, int64(1), count)
}
