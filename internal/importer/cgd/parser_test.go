package cgd_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/MrJamesThe3rd/ledger/internal/importer/cgd"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParser_Conta(t *testing.T) {
	csv := `Consultar saldos e movimentos à ordem - 31-01-2026;"=""0000"""
Nome cliente;JOHN DOE
NIF;"=""123"""

Dados da conta
Conta;0000 - EUR - Conta Extracto
Saldo contabilístico;1.000,00 EUR
Saldo disponível;1.000,00 EUR

Dados da consulta
Período;Últimos 90 dias
Intervalo de;01-01-2026 a 31-01-2026
Tipos de movimento;Todos

Data mov.;Data-valor;Descrição;Montante;Saldo contabilístico após movimento
30-01-2026;30-01-2026;INSTITUTO GESTAO FINA;-588,74;48.825,46
09-01-2026;09-01-2026;TFI Wise;8.608,52;52.532,78
`

	lines, err := cgd.NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, date(2026, 1, 30), lines[0].Date)
	assert.Equal(t, "INSTITUTO GESTAO FINA", lines[0].Description)
	assert.True(t, lines[0].Amount.Equal(amount("588.74")))
	assert.False(t, lines[0].Credit)

	assert.Equal(t, date(2026, 1, 9), lines[1].Date)
	assert.Equal(t, "TFI Wise", lines[1].Description)
	assert.True(t, lines[1].Amount.Equal(amount("8608.52")))
	assert.True(t, lines[1].Credit)
}

func TestParser_Extrato(t *testing.T) {
	csv := `Consultar extrato - 15-02-2026 : 0829015676030
Nome empresa ;VIBRANTGARDEN UNIPESSOAL,LDA
NIF ;517948974
Conta ;0829015676030 - EUR - Conta Extracto
Intervalo de ;01-02-2026 a 14-02-2026
Tipos de movimento ;Todos
Saldo contabilístico Inicial ;48.825,46
Saldo contabilístico final ;41.393,66

Data mov. ;Data valor ;Origem ;Descrição ;Movimento ;Estorno ;Saldo contabilístico após movimento ;
13-02-2026;13-02-2026;"=""0003""";PAGAMENTO TSU ;-608,13;  ;41.393,66;
04-02-2026;04-02-2026;SIBS ;TFI Wise ;4.324,06;  ;51.302,85;
`

	lines, err := cgd.NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, date(2026, 2, 13), lines[0].Date)
	assert.Equal(t, "PAGAMENTO TSU", lines[0].Description)
	assert.True(t, lines[0].Amount.Equal(amount("608.13")))
	assert.False(t, lines[0].Credit)

	assert.True(t, lines[1].Amount.Equal(amount("4324.06")))
	assert.True(t, lines[1].Credit)
}

func TestParser_Cartao(t *testing.T) {
	csv := `Consultar saldos e movimentos de cartões - 15-02-2026
Nome empresa ;VIBRANTGARDEN UNIPESSOAL,LDA
NIF ;517948974

Conta cartão ;4163 **** **** 8016 - EUR - Business Débito
Tipo de movimentos ;Conta à ordem
Desde ;15/12/2025

Data ;Data valor ;Descrição ;Débito ;Crédito ;
16-12-2025 ;14-12-2025 ;PA GONDOMAR         GONDOMAR ;64,00 ; ;
31-12-2025 ;29-12-2025 ;UBER   *TRIP             HELP.UBER.COMNL ;47,91 ; ;
02-01-2026 ;02-01-2026 ;REFUND AMAZON ;  ;25,00 ;
 ; ; ; ;Página 1/2 ;
`

	lines, err := cgd.NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, date(2025, 12, 16), lines[0].Date)
	assert.Equal(t, "PA GONDOMAR         GONDOMAR", lines[0].RawDescription)
	assert.True(t, lines[0].Amount.Equal(amount("64")))
	assert.False(t, lines[0].Credit)

	assert.Equal(t, "UBER   *TRIP             HELP.UBER.COMNL", lines[1].Description)
	assert.True(t, lines[1].Amount.Equal(amount("47.91")))

	assert.True(t, lines[2].Amount.Equal(amount("25")))
	assert.True(t, lines[2].Credit)
}

func TestParser_Latin1Encoding(t *testing.T) {
	utf8CSV := "Data mov.;Descrição;Montante\n30-01-2026;CAFÉ CENTRAL;-10,00\n"

	latin1Bytes, err := charmap.Windows1252.NewEncoder().Bytes([]byte(utf8CSV))
	require.NoError(t, err)

	lines, err := cgd.NewParser().Parse(bytes.NewReader(latin1Bytes))
	require.NoError(t, err)
	require.Len(t, lines, 1)

	assert.Equal(t, "CAFÉ CENTRAL", lines[0].RawDescription)
}

func TestParser_Rows(t *testing.T) {
	tests := []struct {
		name       string
		csv        string
		wantLen    int
		wantAmount string
		wantErr    string
	}{
		{
			name:       "DifferentColumnOrder",
			csv:        "Random;MetaData\nMontante;Descrição;Data mov.;Ignored\n-10,00;TEST_ORDER;30-01-2026;XXX\n",
			wantLen:    1,
			wantAmount: "10",
		},
		{
			name:       "LargeAmount",
			csv:        "Data mov.;Descrição;Montante\n30-01-2026;BIG TRANSFER;-1.234.567,89\n",
			wantLen:    1,
			wantAmount: "1234567.89",
		},
		{
			name:    "HeaderOnly",
			csv:     "Data mov.;Data-valor;Descrição;Montante",
			wantLen: 0,
		},
		{
			name:       "SkipsFooterRows",
			csv:        "Data mov.;Descrição;Montante\n30-01-2026;TEST;-10,00\nTotais;;;;\n",
			wantLen:    1,
			wantAmount: "10",
		},
		{
			name:    "SkipsZeroAmount",
			csv:     "Data mov.;Descrição;Montante\n30-01-2026;TEST;0,00\n",
			wantLen: 0,
		},
		{
			name:    "EmptyFile",
			csv:     "",
			wantErr: "no matching CGD format",
		},
		{
			name:    "MissingDescription",
			csv:     "Data mov.;Descrição;Montante\n30-01-2026;;-10,00\n",
			wantErr: "row 2: missing description",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := cgd.NewParser().Parse(strings.NewReader(tt.csv))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			require.Len(t, lines, tt.wantLen)

			if tt.wantAmount != "" {
				assert.True(t, lines[0].Amount.Equal(amount(tt.wantAmount)), "got %s", lines[0].Amount)
			}
		})
	}
}
