package stats

// SharpeRatio computes the annualized Sharpe ratio from daily portfolio
// statistics using the shared annualization convention: returns scale by
// periodsPerYear, volatility by sqrt(periodsPerYear). The risk-free rate is
// already annual.
//
// Returns 0 when annualized volatility is zero, since the ratio is undefined
// for a riskless series.
func SharpeRatio(meanDailyReturn, dailyVolatility, riskFreeRate float64, periodsPerYear int) float64 {
	annualReturn, annualVol := Annualize(meanDailyReturn, dailyVolatility, periodsPerYear)
	if annualVol <= 0 {
		return 0
	}
	return (annualReturn - riskFreeRate) / annualVol
}

// SharpeRatioAnnual computes the Sharpe ratio from already-annualized return
// and volatility. Used by the frontier optimizer, whose point metrics are
// reported in annual terms.
func SharpeRatioAnnual(annualReturn, annualVolatility, riskFreeRate float64) float64 {
	if annualVolatility <= 0 {
		return 0
	}
	return (annualReturn - riskFreeRate) / annualVolatility
}
