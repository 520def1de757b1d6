package journal

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// memStore collects inserted records in memory.
type memStore struct {
	mu      sync.Mutex
	records []Record
	batches int
	failing bool
}

func (s *memStore) InsertBatch(ctx context.Context, records []Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return 0, errors.New("database unavailable")
	}
	s.records = append(s.records, records...)
	s.batches++
	return len(records), nil
}

func (s *memStore) snapshot() ([]Record, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...), s.batches
}

func (s *memStore) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

// fakeDB captures SQL sent through Exec and SendBatch.
type fakeDB struct {
	execs   []string
	batches []*pgx.Batch
	execErr error
	failAt  int // 1-based index of the batch statement that fails, 0 = none
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), db.execErr
}

func (db *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	db.batches = append(db.batches, b)
	return &fakeResults{failAt: db.failAt}
}

type fakeResults struct {
	n      int
	failAt int
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	r.n++
	if r.n == r.failAt {
		return pgconn.CommandTag{}, errors.New("violates check constraint")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }
