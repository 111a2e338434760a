package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSplitIntraStateEven(t *testing.T) {
	b := Split(dec("72"), false)
	require.True(t, b.CGST.Equal(dec("36")))
	require.True(t, b.SGST.Equal(dec("36")))
	require.True(t, b.IGST.IsZero())
}

func TestSplitOddCentGoesToCGST(t *testing.T) {
	b := Split(dec("10.05"), false)
	require.True(t, b.CGST.Equal(dec("5.03")), b.CGST.String())
	require.True(t, b.SGST.Equal(dec("5.02")), b.SGST.String())
	require.True(t, b.Total().Equal(dec("10.05")))

	b = Split(dec("0.01"), false)
	require.True(t, b.CGST.Equal(dec("0.01")))
	require.True(t, b.SGST.IsZero())
}

func TestSplitInterStateIsAllIGST(t *testing.T) {
	b := Split(dec("18.37"), true)
	require.True(t, b.IGST.Equal(dec("18.37")))
	require.True(t, b.CGST.IsZero())
	require.True(t, b.SGST.IsZero())
}

func TestSplitRoundTripsForEveryCent(t *testing.T) {
	for cents := int64(0); cents <= 2000; cents++ {
		amount := decimal.New(cents, -2)
		for _, inter := range []bool{false, true} {
			b := Split(amount, inter)
			require.True(t, b.Total().Equal(amount), "amount %s inter=%v", amount, inter)
			require.False(t, b.CGST.LessThan(b.SGST), "cgst must never trail sgst")
		}
	}
}

func TestLineTaxRoundsToCents(t *testing.T) {
	require.True(t, LineTax(dec("400"), dec("18")).Equal(dec("72")))
	require.True(t, LineTax(dec("33.33"), dec("5")).Equal(dec("1.67")))
}

func TestBreakdownAdd(t *testing.T) {
	sum := Split(dec("10.05"), false).Add(Split(dec("4"), true))
	require.True(t, sum.Total().Equal(dec("14.05")))
	require.True(t, sum.IGST.Equal(dec("4")))
}
