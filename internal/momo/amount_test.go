package momo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"310.88F", 311},
		{"310.5F", 311},
		{"310.49F", 310},
		{"2000 F", 2000},
		{"20000FCFA", 20000},
		{"20000 fcfa", 20000},
		{"1 500 F", 1500},
		{"1,500F", 1500},
		{"1,500.50 FCFA", 1501},
		{"310,88 FCFA", 311},
		{"12 000 FCFA", 12000},
		{"15 000 XAF", 15000},
		{"Frais 200F. Nouveau Solde 45000F", 200},
		{"0 FCFA", 0},
		{"1.500F", 1500},
		{"1.250.000F", 1250000},
		{"1.000.000 FCFA", 1000000},
		{"1.250.000,50 FCFA", 1250001},
		{"Solde 2,500,000F", 2500000},
	}
	for _, c := range cases {
		got, ok := NormalizeAmount(c.in)
		assert.True(t, ok, "expected %q to normalize", c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestNormalizeAmountRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "F", "Frais F", "45000", "abc FCFA", "TID:ABC123"} {
		got, ok := NormalizeAmount(in)
		assert.False(t, ok, "expected %q to be rejected", in)
		assert.Zero(t, got)
	}
}
