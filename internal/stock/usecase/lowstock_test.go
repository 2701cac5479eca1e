package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fekuna/omnipos-inventory-service/internal/stock/usecase"
)

func TestIsLowStock(t *testing.T) {
	cases := []struct {
		name      string
		quantity  int64
		threshold int64
		want      bool
	}{
		{"zero threshold disables alerting", 3, 0, false},
		{"zero threshold even at zero quantity", 0, 0, false},
		{"above threshold", 6, 5, false},
		{"at threshold", 5, 5, true},
		{"below threshold", 4, 5, true},
		{"zero quantity counts as low", 0, 5, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, usecase.IsLowStock(tc.quantity, tc.threshold))
		})
	}
}
