package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalized_TrimsAndBlanksStrings(t *testing.T) {
	e := Entry{
		ID:          "a",
		Name:        Ptr("  Widget \n"),
		Description: Ptr("   "),
		Notes:       Ptr(""),
		Tags:        Ptr("\tgarage"),
	}

	got := e.Normalized()

	require.NotNil(t, got.Name)
	assert.Equal(t, "Widget", *got.Name)
	assert.Nil(t, got.Description)
	assert.Nil(t, got.Notes)
	require.NotNil(t, got.Tags)
	assert.Equal(t, "garage", *got.Tags)
	assert.Equal(t, "a", got.ID)
}

func TestNormalized_Price(t *testing.T) {
	tests := []struct {
		name  string
		price *float64
		want  *float64
	}{
		{name: "nil", price: nil, want: nil},
		{name: "NaN", price: Ptr(math.NaN()), want: nil},
		{name: "+Inf", price: Ptr(math.Inf(1)), want: nil},
		{name: "finite", price: Ptr(9.99), want: Ptr(9.99)},
		{name: "zero", price: Ptr(0.0), want: Ptr(0.0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Entry{Price: tt.price}.Normalized().Price
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalized_DoesNotAliasInput(t *testing.T) {
	name := " Widget "
	e := Entry{Name: &name}
	got := e.Normalized()
	name = "changed"
	assert.Equal(t, "Widget", *got.Name)
}

func TestHasImage(t *testing.T) {
	assert.False(t, Entry{}.HasImage())
	assert.False(t, Entry{ImageFilename: Ptr("")}.HasImage())
	assert.True(t, Entry{ImageFilename: Ptr("x.jpg")}.HasImage())
}

func TestSearchTextAndFormatBuyDate(t *testing.T) {
	e := Entry{
		Name:    Ptr("Red Drill"),
		Notes:   Ptr("Garage SHELF"),
		BuyDate: Ptr(time.Date(2025, time.April, 3, 15, 4, 5, 0, time.UTC)),
	}
	assert.Equal(t, "red drill garage shelf", e.SearchText())
	assert.Equal(t, "04/03/2025", e.FormatBuyDate())
	assert.Equal(t, "", Entry{}.FormatBuyDate())
}
