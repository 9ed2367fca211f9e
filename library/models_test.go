package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookAvailability(t *testing.T) {
	b := Book{ID: 1, Title: "1984", Author: "George Orwell", ISBN: "9780451524935", Year: 1949, Available: true}
	assert.Equal(t, "[1] 1984 - George Orwell (1949) | Available", b.String())

	b.MarkLoaned()
	assert.False(t, b.Available)
	assert.Equal(t, "[1] 1984 - George Orwell (1949) | On loan", b.String())

	b.MarkReturned()
	assert.True(t, b.Available)
}

func TestMemberString(t *testing.T) {
	m := Member{ID: 2, Name: "João", Email: "joao@email.com", Phone: "123"}
	assert.Equal(t, "[2] João - joao@email.com - 123", m.String())
}

func TestLoanMarkReturned(t *testing.T) {
	l := Loan{ID: 1, MemberID: 1, BookID: 1, LoanedAt: testTime}
	assert.True(t, l.Open())
	assert.Nil(t, l.ReturnedAt)

	at := testTime.Add(48 * time.Hour)
	l.MarkReturned(at)
	assert.False(t, l.Open())
	assert.True(t, l.Returned)
	assert.Equal(t, at, *l.ReturnedAt)

	v := LoanView{Loan: l, MemberName: "João", BookTitle: "1984"}
	assert.Equal(t, "[1] João - 1984 | Returned", v.String())
}
