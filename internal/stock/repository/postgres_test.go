package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageOffset(t *testing.T) {
	cases := []struct {
		name     string
		page     int
		pageSize int
		want     int
	}{
		{"first page", 1, 20, 0},
		{"second page", 2, 20, 20},
		{"page zero clamps to first", 0, 20, 0},
		{"negative page clamps to first", -3, 20, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pageOffset(tc.page, tc.pageSize))
		})
	}
}
