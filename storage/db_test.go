package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func exercise(t *testing.T, db Database) {
	t.Helper()
	for _, kv := range [][2]string{{"account/b", "2"}, {"account/a", "1"}, {"other/x", "9"}} {
		if err := db.Put([]byte(kv[0]), []byte(kv[1])); err != nil {
			t.Fatalf("put %s: %v", kv[0], err)
		}
	}
	value, err := db.Get([]byte("account/a"))
	if err != nil || string(value) != "1" {
		t.Fatalf("get: %q %v", value, err)
	}
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var keys []string
	err = db.Iterate([]byte("account/"), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(keys) != 2 || keys[0] != "account/a" || keys[1] != "account/b" {
		t.Fatalf("unexpected keys %v", keys)
	}

	stop := errors.New("stop")
	visited := 0
	err = db.Iterate([]byte("account/"), func(_, _ []byte) error {
		visited++
		return stop
	})
	if !errors.Is(err, stop) || visited != 1 {
		t.Fatalf("iteration should stop on error, visited %d err %v", visited, err)
	}

	if err := db.Delete([]byte("account/a")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("account/a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted key still present: %v", err)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exercise(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("v")
	_ = db.Put([]byte("k"), value)
	value[0] = 'x'
	got, _ := db.Get([]byte("k"))
	if string(got) != "v" {
		t.Fatalf("stored value aliased the caller's slice: %q", got)
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	exercise(t, db)
}
