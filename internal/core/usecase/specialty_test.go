package usecase

import "testing"

func TestSpecialtyDetector(t *testing.T) {
	d := NewSpecialtyDetector(testSpecialties)
	cases := []struct {
		query    string
		category string
		found    bool
	}{
		{"Quais são os direitos do CONSUMIDOR?", "Consumidor", true},
		{"Explique o conceito de usucapião no Código Civil.", "Civil", true},
		{"O que é crime de furto simples?", "Penal", true},
		// first row wins when several match
		{"produto furtado em posse de terceiro", "Consumidor", true},
		{"Qual a capital do Brasil?", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		category, found := d.Detect(tc.query)
		if category != tc.category || found != tc.found {
			t.Fatalf("Detect(%q) = (%q, %v), want (%q, %v)", tc.query, category, found, tc.category, tc.found)
		}
	}
}

func TestSpecialtyDetectorCopiesTable(t *testing.T) {
	rows := append(testSpecialties[:0:0], testSpecialties...)
	d := NewSpecialtyDetector(rows)
	rows[0].Category = "Changed"
	if category, _ := d.Detect("consumidor"); category != "Consumidor" {
		t.Fatalf("detector must not alias the caller's table, got %q", category)
	}
}
