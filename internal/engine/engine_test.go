package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapupsert/internal/testutil"
	mysqladapter "github.com/leapstack-labs/leapupsert/pkg/adapters/mysql"
	"github.com/leapstack-labs/leapupsert/pkg/batch"
	"github.com/leapstack-labs/leapupsert/pkg/catalog"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	"github.com/leapstack-labs/leapupsert/pkg/dialects/mysql"
)

// fakeTarget serves fixed metadata and executes on a sqlmock database.
type fakeTarget struct {
	db        *sql.DB
	columns   []core.Column
	pk        []string
	uniques   []core.UniqueKey
	lookupErr error
	loads     int
}

func (f *fakeTarget) Columns(_ context.Context, _ core.TableRef) ([]core.Column, error) {
	f.loads++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.columns, nil
}

func (f *fakeTarget) PrimaryKey(context.Context, core.TableRef) ([]string, error) {
	return f.pk, nil
}

func (f *fakeTarget) UniqueKeys(context.Context, core.TableRef) ([]core.UniqueKey, error) {
	return f.uniques, nil
}

func (f *fakeTarget) Conn(ctx context.Context) (*sql.Conn, error) { return f.db.Conn(ctx) }

func (f *fakeTarget) Dialect() *dialect.Dialect { return mysql.MySQL }

func (f *fakeTarget) Classify(err error) core.ErrorInfo { return mysqladapter.Classify(err) }

func column(name string, typ core.SQLType, pos int) core.Column {
	return core.Column{Name: name, Type: typ, Nullable: true, Position: pos}
}

func newTarget(t *testing.T, columns ...core.Column) (*fakeTarget, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &fakeTarget{db: db, columns: columns}, mock
}

func newEngine(t *testing.T, target Target, cache *catalog.Cache) *Engine {
	t.Helper()
	e, err := New(Config{Target: target, Cache: cache, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return e
}

func num(s string) json.Number { return json.Number(s) }

func statuses(outcomes []core.Outcome) []core.Status {
	out := make([]core.Status, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Status
	}
	return out
}

func TestRun_RoutesByKeyPresence(t *testing.T) {
	target, mock := newTarget(t, column("id", core.TypeNumeric, 1), column("name", core.TypeVarchar, 2))
	target.pk = []string{"id"}

	upsert := mock.ExpectPrepare("INSERT into users(id,name) values (?,?) ON DUPLICATE KEY UPDATE name=?")
	upsert.ExpectExec().WithArgs(int64(5), "x", "x").WillReturnResult(sqlmock.NewResult(5, 1))
	insert := mock.ExpectPrepare("INSERT into users(id,name) values (?,?)")
	insert.ExpectExec().WithArgs(nil, "y").WillReturnResult(sqlmock.NewResult(6, 1))

	sink := &CollectSink{}
	src := RecordsSource(
		map[string]any{"id": num("5"), "name": "x", "nickname; DROP TABLE users": "ignored"},
		map[string]any{"name": "y"},
	)
	summary, err := newEngine(t, target, nil).Run(context.Background(),
		Request{Table: core.TableRef{Name: "users"}, Strategy: batch.ByRows, Threshold: 10}, src, sink)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []core.Status{core.StatusSuccess, core.StatusSuccess}, statuses(sink.Outcomes))
	assert.Equal(t, 2, summary.Records)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, core.KeyPrimary, summary.Key.Kind)
	assert.JSONEq(t, `{"Status":"SUCCESS","Batch Number":1,"No of records in batch":2}`, string(sink.Outcomes[0].Payload))
	assert.Equal(t, "batch 1 executed successfully, 2 records", sink.Outcomes[1].Message)
}

func TestRun_PartialFailureKeepsDriverMessage(t *testing.T) {
	target, mock := newTarget(t, column("name", core.TypeVarchar, 1))
	// a nullable unique index is not a conflict key
	target.uniques = []core.UniqueKey{{Name: "uq_name", Columns: []string{"name"}}}

	dup := &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry 'A' for key 'events.name'"}
	prep := mock.ExpectPrepare("INSERT into events(name) values (?)")
	prep.ExpectExec().WithArgs("A").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("B").WillReturnResult(sqlmock.NewResult(2, 1))
	prep.ExpectExec().WithArgs("A").WillReturnError(dup)

	sink := &CollectSink{}
	src := RecordsSource(
		map[string]any{"name": "A"},
		map[string]any{"name": "B"},
		map[string]any{"name": "A"},
		map[string]any{"name": "D"},
	)
	summary, err := newEngine(t, target, nil).Run(context.Background(),
		Request{Table: core.TableRef{Name: "events"}, Strategy: batch.ByRows, Threshold: 10}, src, sink)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, sink.Outcomes, 4)
	assert.Equal(t,
		[]core.Status{core.StatusSuccess, core.StatusSuccess, core.StatusFailure, core.StatusFailure},
		statuses(sink.Outcomes))

	failed := sink.Outcomes[2]
	assert.Equal(t, dup.Error(), failed.Message)
	assert.Contains(t, failed.Message, "Duplicate entry")
	assert.Equal(t, "1062", failed.Code)
	assert.JSONEq(t, `{"Status":"FAILURE","Batch Number":1,"No of records in batch":4}`, string(failed.Payload))
	assert.Equal(t, 2, summary.Failed)
	assert.True(t, summary.Key.IsNone())
}

func TestRun_OutcomesFollowInputOrder(t *testing.T) {
	target, mock := newTarget(t, column("n", core.TypeNumeric, 1))

	first := mock.ExpectPrepare("INSERT into t(n) values (?)")
	first.ExpectExec().WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	first.ExpectExec().WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	second := mock.ExpectPrepare("INSERT into t(n) values (?)")
	second.ExpectExec().WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))

	sink := &CollectSink{}
	src := RecordsSource(
		map[string]any{"n": num("1")},
		map[string]any{"n": "abc"},
		map[string]any{"n": num("2")},
		map[string]any{"n": num("3")},
		map[string]any{"n": "x"},
	)
	summary, err := newEngine(t, target, nil).Run(context.Background(),
		Request{Table: core.TableRef{Name: "t"}, Strategy: batch.ByRows, Threshold: 2}, src, sink)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, sink.Outcomes, 5)
	for i, o := range sink.Outcomes {
		assert.Equal(t, i, o.Record.Seq)
		assert.Equal(t, []string{"1", "2", "3", "4", "5"}[i], o.Record.DocumentID)
	}
	assert.Equal(t, []core.Status{
		core.StatusSuccess,
		core.StatusApplicationError,
		core.StatusSuccess,
		core.StatusSuccess,
		core.StatusApplicationError,
	}, statuses(sink.Outcomes))
	assert.Equal(t, []int{1, 0, 1, 2, 0}, []int{
		sink.Outcomes[0].Batch, sink.Outcomes[1].Batch, sink.Outcomes[2].Batch,
		sink.Outcomes[3].Batch, sink.Outcomes[4].Batch,
	})
	assert.Contains(t, sink.Outcomes[1].Message, `column "n"`)
	assert.Equal(t, 2, summary.AppErrors)
	assert.Equal(t, 2, summary.Batches)
}

func TestRun_ByProfileFlushesPerDocument(t *testing.T) {
	target, mock := newTarget(t, column("n", core.TypeNumeric, 1))

	for _, window := range [][]int64{{1, 2}, {3}} {
		prep := mock.ExpectPrepare("INSERT into t(n) values (?)")
		for _, n := range window {
			prep.ExpectExec().WithArgs(n).WillReturnResult(sqlmock.NewResult(0, 1))
		}
	}

	src := NewSliceSource(
		core.Document{ID: "a", Records: []core.Record{
			{Fields: map[string]any{"n": num("1")}},
			{Fields: map[string]any{"n": num("2")}},
		}},
		core.Document{ID: "b", Records: []core.Record{
			{Fields: map[string]any{"n": num("3")}},
		}},
	)
	sink := &CollectSink{}
	summary, err := newEngine(t, target, nil).Run(context.Background(),
		Request{Table: core.TableRef{Name: "t"}, Strategy: batch.ByProfile}, src, sink)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, sink.Outcomes, 3)
	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, "batch 1 executed successfully, 2 records", sink.Outcomes[0].Message)
	assert.Equal(t, "batch 2 executed successfully, 1 records", sink.Outcomes[2].Message)
	assert.Equal(t, 1, sink.Outcomes[1].Record.Index)
	assert.Equal(t, "a", sink.Outcomes[1].Record.DocumentID)
	assert.JSONEq(t, `{"status":"SUCCESS","affectedRows":1}`, string(sink.Outcomes[2].Payload))
}

func TestRun_ReusesStatementsAcrossWindows(t *testing.T) {
	target, mock := newTarget(t, column("id", core.TypeNumeric, 1), column("name", core.TypeVarchar, 2))
	target.pk = []string{"id"}

	records := make([]map[string]any, 100)
	for window := 0; window < 2; window++ {
		prep := mock.ExpectPrepare("INSERT into users(id,name) values (?,?) ON DUPLICATE KEY UPDATE name=?")
		for i := 0; i < 50; i++ {
			prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
		}
	}
	for i := range records {
		records[i] = map[string]any{"id": json.Number(string(rune('0' + i%10))), "name": "n"}
	}

	summary, err := newEngine(t, target, nil).Run(context.Background(),
		Request{Table: core.TableRef{Name: "users"}, Strategy: batch.ByRows, Threshold: 50},
		RecordsSource(records...), &CollectSink{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 1, summary.Builds)
	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, 100, summary.Succeeded)
}

// cancellingSource cancels the run when it is asked for document n.
type cancellingSource struct {
	*SliceSource
	n      int
	calls  int
	cancel context.CancelFunc
}

func (s *cancellingSource) Next(ctx context.Context) (core.Document, error) {
	s.calls++
	if s.calls == s.n {
		s.cancel()
	}
	return s.SliceSource.Next(context.WithoutCancel(ctx))
}

func TestRun_CancellationDropsOpenWindow(t *testing.T) {
	target, mock := newTarget(t, column("n", core.TypeNumeric, 1))
	prep := mock.ExpectPrepare("INSERT into t(n) values (?)")
	prep.ExpectExec().WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &cancellingSource{
		SliceSource: RecordsSource(
			map[string]any{"n": num("1")},
			map[string]any{"n": num("2")},
			map[string]any{"n": num("3")},
			map[string]any{"n": "bad"},
			map[string]any{"n": num("5")},
		),
		n:      5,
		cancel: cancel,
	}

	sink := &CollectSink{}
	summary, err := newEngine(t, target, nil).Run(ctx,
		Request{Table: core.TableRef{Name: "t"}, Strategy: batch.ByRows, Threshold: 2}, src, sink)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, mock.ExpectationsWereMet())

	// record 3 was accumulated but never flushed; record 4 queued behind it
	assert.Len(t, sink.Outcomes, 2)
	assert.Equal(t, 2, summary.Dropped)
	assert.Equal(t, 4, summary.Records)
}

func TestRun_SchemaLookupIsRunFatal(t *testing.T) {
	target, mock := newTarget(t)
	target.lookupErr = &core.SchemaLookupError{Table: core.TableRef{Name: "missing"}, Reason: "table not found"}

	sink := &CollectSink{}
	summary, err := newEngine(t, target, nil).Run(context.Background(),
		Request{Table: core.TableRef{Name: "missing"}, Strategy: batch.ByRows, Threshold: 1},
		RecordsSource(map[string]any{"a": "b"}), sink)
	require.Error(t, err)
	assert.True(t, core.IsRunFatal(err))
	assert.Nil(t, summary)
	assert.Empty(t, sink.Outcomes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_ConnectionLostIsRunFatal(t *testing.T) {
	target, mock := newTarget(t, column("n", core.TypeNumeric, 1))
	first := mock.ExpectPrepare("INSERT into t(n) values (?)")
	first.ExpectExec().WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	first.ExpectExec().WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	second := mock.ExpectPrepare("INSERT into t(n) values (?)")
	second.ExpectExec().WithArgs(int64(3)).WillReturnError(gomysql.ErrInvalidConn)

	sink := &CollectSink{}
	src := RecordsSource(
		map[string]any{"n": num("1")},
		map[string]any{"n": num("2")},
		map[string]any{"n": num("3")},
		map[string]any{"n": num("4")},
	)
	summary, err := newEngine(t, target, nil).Run(context.Background(),
		Request{Table: core.TableRef{Name: "t"}, Strategy: batch.ByRows, Threshold: 2}, src, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConnectivity)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Len(t, sink.Outcomes, 2)
	assert.Equal(t, 2, summary.Dropped)
	assert.Equal(t, 2, summary.Succeeded)
}

func TestRun_NoMatchingFieldsIsApplicationError(t *testing.T) {
	target, mock := newTarget(t, column("n", core.TypeNumeric, 1))

	sink := &CollectSink{}
	_, err := newEngine(t, target, nil).Run(context.Background(),
		Request{Table: core.TableRef{Name: "t"}, Strategy: batch.ByRows, Threshold: 2},
		RecordsSource(map[string]any{"other": "x"}), sink)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, sink.Outcomes, 1)
	assert.Equal(t, core.StatusApplicationError, sink.Outcomes[0].Status)
	assert.Contains(t, sink.Outcomes[0].Message, "no field matches")
}

func TestRun_CaseInsensitiveFieldMatch(t *testing.T) {
	target, mock := newTarget(t, column("Name", core.TypeVarchar, 1))
	mock.ExpectPrepare("INSERT into t(Name) values (?)").
		ExpectExec().WithArgs("exact").WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := newEngine(t, target, nil).Run(context.Background(),
		Request{Table: core.TableRef{Name: "t"}, Strategy: batch.ByRows, Threshold: 2},
		RecordsSource(map[string]any{"NAME": "folded", "Name": "exact"}), &CollectSink{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_CacheLoadsTableOnce(t *testing.T) {
	target, mock := newTarget(t, column("n", core.TypeNumeric, 1))
	for i := 0; i < 2; i++ {
		mock.ExpectPrepare("INSERT into t(n) values (?)").
			ExpectExec().WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	}

	e := newEngine(t, target, catalog.NewCache(4))
	for i := 0; i < 2; i++ {
		_, err := e.Run(context.Background(),
			Request{Table: core.TableRef{Name: "t"}, Strategy: batch.ByRows, Threshold: 2},
			RecordsSource(map[string]any{"n": num("1")}), &CollectSink{})
		require.NoError(t, err)
	}
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, target.loads)
}

func TestRun_SinkFailureAbortsRun(t *testing.T) {
	target, mock := newTarget(t, column("n", core.TypeNumeric, 1))
	mock.ExpectPrepare("INSERT into t(n) values (?)").
		ExpectExec().WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))

	sink := SinkFunc(func(context.Context, core.Outcome) error { return io.ErrClosedPipe })
	_, err := newEngine(t, target, nil).Run(context.Background(),
		Request{Table: core.TableRef{Name: "t"}, Strategy: batch.ByRows, Threshold: 1},
		RecordsSource(map[string]any{"n": num("1")}, map[string]any{"n": num("2")}), sink)
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestRun_Validation(t *testing.T) {
	target, _ := newTarget(t, column("n", core.TypeNumeric, 1))
	e := newEngine(t, target, nil)

	_, err := e.Run(context.Background(), Request{Table: core.TableRef{Name: "t"}, Strategy: batch.ByRows}, RecordsSource(), &CollectSink{})
	assert.ErrorContains(t, err, "threshold must be positive")

	_, err = e.Run(context.Background(), Request{Table: core.TableRef{Name: "t"}, Threshold: 1}, nil, &CollectSink{})
	assert.Error(t, err)

	_, err = New(Config{})
	assert.Error(t, err)
}
