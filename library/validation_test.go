package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindMessages(t *testing.T) {
	tests := []struct {
		name   string
		params interface{}
		want   string
	}{
		{
			name:   "missing title",
			params: &AddBookParams{Author: "Autor", ISBN: "1234567890"},
			want:   `"title" is required`,
		},
		{
			name:   "short isbn",
			params: &AddBookParams{Title: "Livro", Author: "Autor", ISBN: "123"},
			want:   `"isbn" must be exactly 10 or 13 characters long`,
		},
		{
			name:   "isbn with letters",
			params: &AddBookParams{Title: "Livro", Author: "Autor", ISBN: "123456789X"},
			want:   `"isbn" must contain only digits`,
		},
		{
			name:   "bad email",
			params: &RegisterMemberParams{Name: "Nome", Email: "emailinvalido.com"},
			want:   `"email" is not a valid email`,
		},
	}

	b := newBinder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Bind(tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBindTrims(t *testing.T) {
	p := &RegisterMemberParams{Name: "  João ", Email: " joao@email.com ", Phone: " 123 "}

	require.NoError(t, newBinder().Bind(p))
	assert.Equal(t, "João", p.Name)
	assert.Equal(t, "joao@email.com", p.Email)
	assert.Equal(t, "123", p.Phone)
}
