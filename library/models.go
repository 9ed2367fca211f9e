package library

import (
	"fmt"
	"time"

	"github.com/segmentio/encoding/json"
)

// Book represents a catalog entry and its current availability.
type Book struct {
	ID        int64  `json:"id" validate:"gt=0"`
	Title     string `json:"title" validate:"required"`
	Author    string `json:"author" validate:"required"`
	ISBN      string `json:"isbn" validate:"required"`
	Year      int    `json:"year"`
	Available bool   `json:"available"`
}

// UnmarshalJSON treats a record without an "available" key as available.
func (b *Book) UnmarshalJSON(data []byte) error {
	type plain Book
	p := plain{Available: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Book(p)
	return nil
}

// MarkLoaned flags the book as lent out.
func (b *Book) MarkLoaned() { b.Available = false }

// MarkReturned flags the book as back on the shelf.
func (b *Book) MarkReturned() { b.Available = true }

func (b Book) String() string {
	status := "Available"
	if !b.Available {
		status = "On loan"
	}
	return fmt.Sprintf("[%d] %s - %s (%d) | %s", b.ID, b.Title, b.Author, b.Year, status)
}

// Member represents a registered library member.
type Member struct {
	ID    int64  `json:"id" validate:"gt=0"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
	Phone string `json:"phone"`
}

func (m Member) String() string {
	return fmt.Sprintf("[%d] %s - %s - %s", m.ID, m.Name, m.Email, m.Phone)
}

// Loan links a member to a book. MemberID and BookID are plain foreign keys
// resolved through the Catalog.
type Loan struct {
	ID         int64      `json:"id" validate:"gt=0"`
	MemberID   int64      `json:"member_id" validate:"gt=0"`
	BookID     int64      `json:"book_id" validate:"gt=0"`
	Returned   bool       `json:"returned"`
	LoanedAt   time.Time  `json:"loaned_at"`
	ReturnedAt *time.Time `json:"returned_at"`
}

// Open reports whether the loan has not been returned yet.
func (l *Loan) Open() bool { return !l.Returned }

// MarkReturned closes the loan at the given time. Returned is terminal.
func (l *Loan) MarkReturned(at time.Time) {
	l.Returned = true
	l.ReturnedAt = &at
}

// LoanView is a loan with its member and book resolved for display.
type LoanView struct {
	Loan
	MemberName string
	BookTitle  string
}

func (v LoanView) String() string {
	status := "Open"
	if v.Returned {
		status = "Returned"
	}
	return fmt.Sprintf("[%d] %s - %s | %s", v.ID, v.MemberName, v.BookTitle, status)
}

// Counters holds the last id handed out per entity type.
type Counters struct {
	Book   int64 `json:"book" validate:"gte=0"`
	Member int64 `json:"member" validate:"gte=0"`
	Loan   int64 `json:"loan" validate:"gte=0"`
}
