package utils

import "testing"

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"R$ 2.100,00", 2100},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"R$ 2.100", 2100},
		{"2,5", 2.5},
		{"1.5", 1.5},
		{"1.234.567", 1234567},
		{"65 m²", 65},
		{"65,50 m²", 65.5},
		{"3 quartos", 3},
		{"Valor líquidoR$ 2.100,00", 2100},
		{"-150", 150},
		{"", 0},
		{"sob consulta", 0},
		{"...", 0},
	}

	for _, tt := range tests {
		got := ParseNumber(tt.raw)
		if got != tt.want {
			t.Errorf("ParseNumber(%q) = %.4f; want %.4f", tt.raw, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Água Verde", "agua-verde"},
		{"  Alto da Glória ", "alto-da-gloria"},
		{"Centro, Curitiba", "centro-curitiba"},
		{"Boa Vista,  Curitiba - PR", "boa-vista-curitiba-pr"},
		{"MERCÊS", "merces"},
		{"Portão", "portao"},
		{"", ""},
	}

	for _, tt := range tests {
		got := Slugify(tt.in)
		if got != tt.want {
			t.Errorf("Slugify(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestMoneyFormatter(t *testing.T) {
	f, err := NewMoneyFormatter("pt-BR", "R$")
	if err != nil {
		t.Fatalf("NewMoneyFormatter: %v", err)
	}

	tests := []struct {
		amount float64
		want   string
	}{
		{2100, "R$ 2.100,00"},
		{1234.5, "R$ 1.234,50"},
		{950, "R$ 950,00"},
	}
	for _, tt := range tests {
		if got := f.Format(tt.amount); got != tt.want {
			t.Errorf("Format(%v) = %q; want %q", tt.amount, got, tt.want)
		}
	}
}

func TestMoneyFormatterInvalidLocale(t *testing.T) {
	if _, err := NewMoneyFormatter("not a locale!", "$"); err == nil {
		t.Error("expected error for invalid locale")
	}
}
