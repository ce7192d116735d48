package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCNPJ(t *testing.T) {
	tests := []struct {
		name  string
		cnpj  string
		valid bool
	}{
		{"valid", "11222333000181", true},
		{"valid second", "11444777000161", true},
		{"wrong first check digit", "11222333000171", false},
		{"wrong second check digit", "11222333000180", false},
		{"too short", "1122233300018", false},
		{"too long", "112223330001811", false},
		{"punctuated", "11.222.333/0001-81", false},
		{"letters", "1122233300018a", false},
		{"all zeros", "00000000000000", false},
		{"all same digit", "11111111111111", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidCNPJ(tt.cnpj))
		})
	}
}
