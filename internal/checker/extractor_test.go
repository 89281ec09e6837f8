package checker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"normlex/internal/types"
)

func TestRegexExtractorCuePhrases(t *testing.T) {
	ex := NewRegexExtractor()

	cases := []struct {
		name        string
		text        string
		op          types.DeonticOperator
		agent       string
		proposition string
	}{
		{"shall", "The tenant shall pay rent monthly.", types.Obligation, "tenant", "pay rent monthly"},
		{"must", "The landlord must provide heat.", types.Obligation, "landlord", "provide heat"},
		{"required_to", "The employer is required to report incidents.", types.Obligation, "employer", "report incidents"},
		{"may", "The landlord may inspect the unit.", types.Permission, "landlord", "inspect the unit"},
		{"permitted_to", "The tenant is permitted to keep pets.", types.Permission, "tenant", "keep pets"},
		{"right_to", "The tenant has the right to quiet enjoyment.", types.Permission, "tenant", "quiet enjoyment"},
		{"shall_not", "The tenant shall not sublet the unit.", types.Prohibition, "tenant", "sublet the unit"},
		{"must_not", "The carrier must not disclose fees.", types.Prohibition, "carrier", "disclose fees"},
		{"prohibited_from", "The broker is prohibited from self-dealing.", types.Prohibition, "broker", "self-dealing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			formulas, err := ex.ExtractFormulas(context.Background(), tc.text)
			require.NoError(t, err)
			require.Len(t, formulas, 1)
			f := formulas[0]
			require.Equal(t, tc.op, f.Operator)
			require.Equal(t, tc.agent, f.Agent)
			require.Equal(t, tc.proposition, f.Proposition)
			require.Equal(t, strings.TrimSuffix(tc.text, "."), f.SourceText)
		})
	}
}

func TestRegexExtractorConditions(t *testing.T) {
	ex := NewRegexExtractor()

	formulas, err := ex.ExtractFormulas(context.Background(),
		"The tenant may terminate the lease if the unit becomes uninhabitable.")
	require.NoError(t, err)
	require.Len(t, formulas, 1)
	require.Equal(t, "terminate the lease", formulas[0].Proposition)
	require.Equal(t, []string{"if the unit becomes uninhabitable"}, formulas[0].Conditions)

	formulas, err = ex.ExtractFormulas(context.Background(),
		"The landlord shall return the deposit unless damages exceed normal wear.")
	require.NoError(t, err)
	require.Len(t, formulas, 1)
	require.Equal(t, "return the deposit", formulas[0].Proposition)
	require.Equal(t, []string{"unless damages exceed normal wear"}, formulas[0].Conditions)
}

func TestRegexExtractorProhibitionBeatsObligation(t *testing.T) {
	ex := NewRegexExtractor()

	// "shall not" must never be parsed as an obligation to "not ...".
	formulas, err := ex.ExtractFormulas(context.Background(), "The tenant shall not smoke indoors.")
	require.NoError(t, err)
	require.Len(t, formulas, 1)
	require.Equal(t, types.Prohibition, formulas[0].Operator)
}

func TestRegexExtractorMultipleSentences(t *testing.T) {
	ex := NewRegexExtractor()

	text := "The tenant shall pay rent; the tenant may keep pets.\nThe landlord must not retaliate."
	formulas, err := ex.ExtractFormulas(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, formulas, 3)
	require.Equal(t, types.Obligation, formulas[0].Operator)
	require.Equal(t, types.Permission, formulas[1].Operator)
	require.Equal(t, types.Prohibition, formulas[2].Operator)
}

func TestRegexExtractorNeverErrors(t *testing.T) {
	ex := NewRegexExtractor()

	for _, text := range []string{"", "   ", "no norms here", "shall", "!!!", strings.Repeat("x", 10000)} {
		formulas, err := ex.ExtractFormulas(context.Background(), text)
		require.NoError(t, err, "input %q", text)
		require.NotNil(t, formulas)
	}
}
