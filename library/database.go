package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStore keeps the snapshot in a SQLite database. Every Save replaces
// the stored rows inside one transaction, so the database always holds one
// complete snapshot.
type SQLiteStore struct {
	path string
	db   *sql.DB

	// broken is set when the file on disk is not a usable database. Load
	// and Save report it until Quarantine moves the file aside.
	broken error
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath and
// applies schema migrations. A file that is not a SQLite database does not
// fail here; it is reported as corrupt by Load.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create db dir")
		}
	}

	s := &SQLiteStore{path: dbPath}
	if err := s.open(); err != nil {
		if !isCorruptDB(err) {
			return nil, err
		}
		s.broken = corrupt(err)
	}
	return s, nil
}

func (s *SQLiteStore) open() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", s.path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return errors.Wrap(err, "open sqlite")
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return err
	}
	s.db = db
	return nil
}

// Close closes the DB.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Quarantine renames the database file to <path>.corrupt-<unix seconds>,
// starts a fresh database in its place and returns the new name.
func (s *SQLiteStore) Quarantine() (string, error) {
	if err := s.Close(); err != nil {
		return "", errors.WithStack(err)
	}
	s.db = nil

	target := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
	if err := os.Rename(s.path, target); err != nil {
		return "", errors.WithStack(err)
	}
	if err := s.open(); err != nil {
		return "", err
	}
	s.broken = nil
	return target, nil
}

// isCorruptDB reports whether err means the file is damaged or not a
// database at all.
func isCorruptDB(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrNotADB || se.Code == sqlite3.ErrCorrupt
}

// readErr wraps a failure met while reading rows, marking damaged files as
// corrupt.
func readErr(err error, msg string) error {
	if isCorruptDB(err) {
		return corrupt(errors.Wrap(err, msg))
	}
	return errors.Wrap(err, msg)
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return errors.Wrap(err, "create meta table")
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.WithStack(err)
	}
	defer tx.Rollback()

	// Loans keep plain ids: a snapshot may hold loans whose book or member
	// is gone, so there are no foreign key constraints.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL,
            year INTEGER NOT NULL,
            available BOOLEAN NOT NULL DEFAULT 1,
            position INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            phone TEXT NOT NULL,
            position INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            id INTEGER PRIMARY KEY,
            member_id INTEGER NOT NULL,
            book_id INTEGER NOT NULL,
            returned BOOLEAN NOT NULL DEFAULT 0,
            loaned_at TEXT NOT NULL,
            returned_at TEXT,
            position INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS counters (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            book INTEGER NOT NULL,
            member INTEGER NOT NULL,
            loan INTEGER NOT NULL
        );`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrap(err, "apply migration")
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return errors.Wrap(err, "apply migration")
	}

	return errors.WithStack(tx.Commit())
}

// ---------------------------------------------------------------------------
// Snapshot I/O
// ---------------------------------------------------------------------------

// Save replaces every stored row with the content of snap.
func (s *SQLiteStore) Save(snap *Snapshot) error {
	if s.broken != nil {
		return s.broken
	}
	tx, err := s.db.Begin()
	if err != nil {
		return errors.WithStack(err)
	}
	defer tx.Rollback()

	for _, table := range []string{"books", "members", "loans", "counters"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return errors.Wrapf(err, "clear %s", table)
		}
	}

	for i, b := range snap.Books {
		if _, err := tx.Exec(`INSERT INTO books(id,title,author,isbn,year,available,position) VALUES(?,?,?,?,?,?,?)`,
			b.ID, b.Title, b.Author, b.ISBN, b.Year, b.Available, i); err != nil {
			return errors.Wrapf(err, "insert book %d", b.ID)
		}
	}
	for i, m := range snap.Members {
		if _, err := tx.Exec(`INSERT INTO members(id,name,email,phone,position) VALUES(?,?,?,?,?)`,
			m.ID, m.Name, m.Email, m.Phone, i); err != nil {
			return errors.Wrapf(err, "insert member %d", m.ID)
		}
	}
	for i, l := range snap.Loans {
		var returnedAt sql.NullString
		if l.ReturnedAt != nil {
			returnedAt = sql.NullString{String: l.ReturnedAt.Format(time.RFC3339Nano), Valid: true}
		}
		if _, err := tx.Exec(`INSERT INTO loans(id,member_id,book_id,returned,loaned_at,returned_at,position) VALUES(?,?,?,?,?,?,?)`,
			l.ID, l.MemberID, l.BookID, l.Returned, l.LoanedAt.Format(time.RFC3339Nano), returnedAt, i); err != nil {
			return errors.Wrapf(err, "insert loan %d", l.ID)
		}
	}

	if _, err := tx.Exec(`INSERT INTO counters(id,book,member,loan) VALUES(1,?,?,?)`,
		snap.Counters.Book, snap.Counters.Member, snap.Counters.Loan); err != nil {
		return errors.Wrap(err, "insert counters")
	}

	return errors.WithStack(tx.Commit())
}

// Load reads the stored snapshot. A database that has never been saved to
// has no counters row and reports ErrNoSnapshot.
func (s *SQLiteStore) Load() (*Snapshot, error) {
	if s.broken != nil {
		return nil, s.broken
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, readErr(err, "begin read")
	}
	defer tx.Rollback()

	snap := &Snapshot{}
	err = tx.QueryRow(`SELECT book,member,loan FROM counters WHERE id=1`).
		Scan(&snap.Counters.Book, &snap.Counters.Member, &snap.Counters.Loan)
	if err == sql.ErrNoRows {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, readErr(err, "read counters")
	}

	if snap.Books, err = loadBooks(tx); err != nil {
		return nil, err
	}
	if snap.Members, err = loadMembers(tx); err != nil {
		return nil, err
	}
	if snap.Loans, err = loadLoans(tx); err != nil {
		return nil, err
	}
	return snap, nil
}

func loadBooks(tx *sql.Tx) ([]Book, error) {
	rows, err := tx.Query(`SELECT id,title,author,isbn,year,available FROM books ORDER BY position`)
	if err != nil {
		return nil, readErr(err, "read books")
	}
	defer rows.Close()

	books := []Book{}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Year, &b.Available); err != nil {
			return nil, corrupt(errors.Wrap(err, "scan book"))
		}
		books = append(books, b)
	}
	return books, rowsErr(rows)
}

func loadMembers(tx *sql.Tx) ([]Member, error) {
	rows, err := tx.Query(`SELECT id,name,email,phone FROM members ORDER BY position`)
	if err != nil {
		return nil, readErr(err, "read members")
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone); err != nil {
			return nil, corrupt(errors.Wrap(err, "scan member"))
		}
		members = append(members, m)
	}
	return members, rowsErr(rows)
}

func loadLoans(tx *sql.Tx) ([]Loan, error) {
	rows, err := tx.Query(`SELECT id,member_id,book_id,returned,loaned_at,returned_at FROM loans ORDER BY position`)
	if err != nil {
		return nil, readErr(err, "read loans")
	}
	defer rows.Close()

	loans := []Loan{}
	for rows.Next() {
		var (
			l          Loan
			loanedAt   string
			returnedAt sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.MemberID, &l.BookID, &l.Returned, &loanedAt, &returnedAt); err != nil {
			return nil, corrupt(errors.Wrap(err, "scan loan"))
		}
		if l.LoanedAt, err = time.Parse(time.RFC3339Nano, loanedAt); err != nil {
			return nil, corrupt(errors.Wrapf(err, "loan %d loaned_at", l.ID))
		}
		if returnedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, returnedAt.String)
			if err != nil {
				return nil, corrupt(errors.Wrapf(err, "loan %d returned_at", l.ID))
			}
			l.ReturnedAt = &t
		}
		loans = append(loans, l)
	}
	return loans, rowsErr(rows)
}

func rowsErr(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		return readErr(err, "iterate rows")
	}
	return nil
}
