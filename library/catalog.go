package library

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Catalog owns the books, members and loans of one library. It is the only
// place they are mutated, and every successful mutation rewrites the whole
// snapshot through its Store.
//
// A Catalog is meant for a single caller; it does no locking, and the
// backing file is assumed to be written by this process only.
type Catalog struct {
	store  Store
	log    logger.Logger
	now    func() time.Time
	binder *binder

	books    []*Book
	members  []*Member
	loans    []*Loan
	counters Counters
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger replaces the default logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Catalog) { c.log = log }
}

// WithClock replaces the clock used to stamp loans and returns.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// New returns an empty catalog persisting to store.
func New(store Store, opts ...Option) *Catalog {
	c := &Catalog{
		store:  store,
		log:    logger.New(),
		now:    func() time.Time { return time.Now().UTC() },
		binder: newBinder(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open returns a catalog populated from store. A missing snapshot yields an
// empty catalog. A corrupt one is logged, quarantined when the store
// supports it, and also yields an empty catalog; only I/O failures are
// returned.
func Open(store Store, opts ...Option) (*Catalog, error) {
	c := New(store, opts...)
	err := c.Reload()
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCorruptSnapshot) {
		return nil, err
	}

	c.log.Warn("ignoring corrupt snapshot, starting with an empty catalog", logger.Data{"error": err.Error()})
	if q, ok := store.(Quarantiner); ok {
		moved, qerr := q.Quarantine()
		if qerr != nil {
			c.log.Err(qerr).Error("failed to quarantine corrupt snapshot")
		} else {
			c.log.Warn("corrupt snapshot moved aside", logger.Data{"path": moved})
		}
	}
	return c, nil
}

// Reload replaces the in-memory state with the stored snapshot. The snapshot
// is decoded and checked before anything is swapped in: required fields,
// unique ids, ISBNs and emails, at most one open loan per book, and return
// flags that agree with return times. A failed reload leaves the catalog
// untouched.
func (c *Catalog) Reload() error {
	snap, err := c.store.Load()
	if errors.Is(err, ErrNoSnapshot) {
		c.books, c.members, c.loans = nil, nil, nil
		c.counters = Counters{}
		return nil
	}
	if err != nil {
		return err
	}
	return c.restore(snap)
}

func (c *Catalog) restore(snap *Snapshot) error {
	if err := c.binder.validate.Struct(snap); err != nil {
		return corrupt(err)
	}

	counters := snap.Counters

	books := make([]*Book, 0, len(snap.Books))
	seen := make(map[int64]bool, len(snap.Books))
	isbns := make(map[string]bool, len(snap.Books))
	for i := range snap.Books {
		b := snap.Books[i]
		if seen[b.ID] {
			return corrupt(errors.Errorf("duplicate book id %d", b.ID))
		}
		if isbns[b.ISBN] {
			return corrupt(errors.Errorf("duplicate isbn %s", b.ISBN))
		}
		seen[b.ID] = true
		isbns[b.ISBN] = true
		counters.Book = max(counters.Book, b.ID)
		books = append(books, &b)
	}

	members := make([]*Member, 0, len(snap.Members))
	seen = make(map[int64]bool, len(snap.Members))
	emails := make(map[string]bool, len(snap.Members))
	for i := range snap.Members {
		m := snap.Members[i]
		if seen[m.ID] {
			return corrupt(errors.Errorf("duplicate member id %d", m.ID))
		}
		if emails[m.Email] {
			return corrupt(errors.Errorf("duplicate email %s", m.Email))
		}
		seen[m.ID] = true
		emails[m.Email] = true
		counters.Member = max(counters.Member, m.ID)
		members = append(members, &m)
	}

	loans := make([]*Loan, 0, len(snap.Loans))
	seen = make(map[int64]bool, len(snap.Loans))
	lent := make(map[int64]int64, len(snap.Loans))
	for i := range snap.Loans {
		l := snap.Loans[i]
		if seen[l.ID] {
			return corrupt(errors.Errorf("duplicate loan id %d", l.ID))
		}
		if l.LoanedAt.IsZero() {
			return corrupt(errors.Errorf("loan %d has no loan time", l.ID))
		}
		if l.Returned != (l.ReturnedAt != nil) {
			return corrupt(errors.Errorf("loan %d return flag and return time disagree", l.ID))
		}
		if l.Open() {
			if other, ok := lent[l.BookID]; ok {
				return corrupt(errors.Errorf("book %d has open loans %d and %d", l.BookID, other, l.ID))
			}
			lent[l.BookID] = l.ID
		}
		seen[l.ID] = true
		counters.Loan = max(counters.Loan, l.ID)
		loans = append(loans, &l)
	}

	c.books, c.members, c.loans, c.counters = books, members, loans, counters
	c.log.Info("snapshot loaded", logger.Data{
		"books":   len(books),
		"members": len(members),
		"loans":   len(loans),
	})
	return nil
}

// Snapshot returns a copy of the full state in its persisted shape.
func (c *Catalog) Snapshot() *Snapshot {
	snap := &Snapshot{
		Books:    make([]Book, 0, len(c.books)),
		Members:  make([]Member, 0, len(c.members)),
		Loans:    make([]Loan, 0, len(c.loans)),
		Counters: c.counters,
	}
	for _, b := range c.books {
		snap.Books = append(snap.Books, *b)
	}
	for _, m := range c.members {
		snap.Members = append(snap.Members, *m)
	}
	for _, l := range c.loans {
		snap.Loans = append(snap.Loans, *l)
	}
	return snap
}

// persist saves the current state. If the save fails, undo is run so memory
// stays equal to the last snapshot that made it to the store.
func (c *Catalog) persist(undo func()) error {
	if err := c.store.Save(c.Snapshot()); err != nil {
		undo()
		return errors.Wrap(err, "save snapshot")
	}
	c.log.Debug("snapshot saved", logger.Data{
		"books":   len(c.books),
		"members": len(c.members),
		"loans":   len(c.loans),
	})
	return nil
}

// ------------------ Books ------------------

// AddBook validates p and stores a new, available book.
func (c *Catalog) AddBook(p AddBookParams) (*Book, error) {
	if err := c.binder.Bind(&p); err != nil {
		return nil, err
	}
	if c.findBookByISBN(p.ISBN) != nil {
		return nil, duplicateISBN(p.ISBN)
	}

	c.counters.Book++
	b := &Book{
		ID:        c.counters.Book,
		Title:     p.Title,
		Author:    p.Author,
		ISBN:      p.ISBN,
		Year:      p.Year,
		Available: true,
	}
	c.books = append(c.books, b)

	err := c.persist(func() {
		c.books = c.books[:len(c.books)-1]
		c.counters.Book--
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("book added", logger.Data{"book_id": b.ID, "isbn": b.ISBN})
	cp := *b
	return &cp, nil
}

// FindBookByID returns a copy of the book with the given id.
func (c *Catalog) FindBookByID(id int64) (*Book, bool) {
	b := c.findBook(id)
	if b == nil {
		return nil, false
	}
	cp := *b
	return &cp, true
}

// ListBooks returns every book in insertion order.
func (c *Catalog) ListBooks() []Book {
	books := make([]Book, 0, len(c.books))
	for _, b := range c.books {
		books = append(books, *b)
	}
	return books
}

// SearchBooks matches query case-insensitively against titles and authors,
// and exactly against ISBNs.
func (c *Catalog) SearchBooks(query string) []Book {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Book{}
	}
	q := strings.ToLower(query)

	results := []Book{}
	for _, b := range c.books {
		if b.ISBN == query ||
			strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) {
			results = append(results, *b)
		}
	}
	return results
}

func (c *Catalog) findBook(id int64) *Book {
	for _, b := range c.books {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (c *Catalog) findBookByISBN(isbn string) *Book {
	for _, b := range c.books {
		if b.ISBN == isbn {
			return b
		}
	}
	return nil
}

// ------------------ Members ------------------

// RegisterMember validates p and stores a new member.
func (c *Catalog) RegisterMember(p RegisterMemberParams) (*Member, error) {
	if err := c.binder.Bind(&p); err != nil {
		return nil, err
	}
	if c.findMemberByEmail(p.Email) != nil {
		return nil, duplicateEmail(p.Email)
	}

	c.counters.Member++
	m := &Member{
		ID:    c.counters.Member,
		Name:  p.Name,
		Email: p.Email,
		Phone: p.Phone,
	}
	c.members = append(c.members, m)

	err := c.persist(func() {
		c.members = c.members[:len(c.members)-1]
		c.counters.Member--
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("member registered", logger.Data{"member_id": m.ID})
	cp := *m
	return &cp, nil
}

// FindMemberByID returns a copy of the member with the given id.
func (c *Catalog) FindMemberByID(id int64) (*Member, bool) {
	m := c.findMember(id)
	if m == nil {
		return nil, false
	}
	cp := *m
	return &cp, true
}

// ListMembers returns every member in registration order.
func (c *Catalog) ListMembers() []Member {
	members := make([]Member, 0, len(c.members))
	for _, m := range c.members {
		members = append(members, *m)
	}
	return members
}

func (c *Catalog) findMember(id int64) *Member {
	for _, m := range c.members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (c *Catalog) findMemberByEmail(email string) *Member {
	for _, m := range c.members {
		if m.Email == email {
			return m
		}
	}
	return nil
}

// ------------------ Circulation ------------------

// CreateLoan lends an available book to an existing member.
func (c *Catalog) CreateLoan(memberID, bookID int64) (*Loan, error) {
	if c.findMember(memberID) == nil {
		return nil, memberNotFound(memberID)
	}
	b := c.findBook(bookID)
	if b == nil {
		return nil, bookNotFound(bookID)
	}
	// A book never has two open loans, even if its flag was edited by hand.
	if !b.Available || c.openLoanFor(bookID) != nil {
		return nil, bookUnavailable(bookID)
	}

	c.counters.Loan++
	l := &Loan{
		ID:       c.counters.Loan,
		MemberID: memberID,
		BookID:   bookID,
		LoanedAt: c.now(),
	}
	b.MarkLoaned()
	c.loans = append(c.loans, l)

	err := c.persist(func() {
		c.loans = c.loans[:len(c.loans)-1]
		c.counters.Loan--
		b.MarkReturned()
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("loan created", logger.Data{"loan_id": l.ID, "member_id": memberID, "book_id": bookID})
	cp := *l
	return &cp, nil
}

// ReturnLoan closes an open loan and puts its book back on the shelf.
func (c *Catalog) ReturnLoan(loanID int64) (*Loan, error) {
	l := c.findLoan(loanID)
	if l == nil {
		return nil, loanNotFound(loanID)
	}
	if l.Returned {
		return nil, loanAlreadyReturned(loanID)
	}

	b := c.findBook(l.BookID)
	if b != nil {
		b.MarkReturned()
	} else {
		c.log.Warn("returned loan references a missing book", logger.Data{"loan_id": l.ID, "book_id": l.BookID})
	}
	l.MarkReturned(c.now())

	err := c.persist(func() {
		l.Returned = false
		l.ReturnedAt = nil
		if b != nil {
			b.MarkLoaned()
		}
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("loan returned", logger.Data{"loan_id": l.ID, "book_id": l.BookID})
	cp := *l
	return &cp, nil
}

// FindLoanByID returns a copy of the loan with the given id.
func (c *Catalog) FindLoanByID(id int64) (*Loan, bool) {
	l := c.findLoan(id)
	if l == nil {
		return nil, false
	}
	cp := *l
	return &cp, true
}

// ListLoans returns every loan with its member name and book title. Loans
// whose member or book cannot be found are left out.
func (c *Catalog) ListLoans() []LoanView {
	views := make([]LoanView, 0, len(c.loans))
	for _, l := range c.loans {
		m := c.findMember(l.MemberID)
		b := c.findBook(l.BookID)
		if m == nil || b == nil {
			continue
		}
		views = append(views, LoanView{Loan: *l, MemberName: m.Name, BookTitle: b.Title})
	}
	return views
}

// LoansForMember returns the full loan history of one member.
func (c *Catalog) LoansForMember(memberID int64) []Loan {
	loans := []Loan{}
	for _, l := range c.loans {
		if l.MemberID == memberID {
			loans = append(loans, *l)
		}
	}
	return loans
}

// Counters returns the last id assigned per entity type.
func (c *Catalog) Counters() Counters { return c.counters }

func (c *Catalog) findLoan(id int64) *Loan {
	for _, l := range c.loans {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (c *Catalog) openLoanFor(bookID int64) *Loan {
	for _, l := range c.loans {
		if l.BookID == bookID && l.Open() {
			return l
		}
	}
	return nil
}
