package indicator

import "github.com/shopspring/decimal"

var (
	one     = decimal.NewFromInt(1)
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// sma returns the simple moving average series. The first value
// corresponds to bar index n-1; earlier dates have no defined value.
func sma(closes []decimal.Decimal, n int) []decimal.Decimal {
	if len(closes) < n {
		return nil
	}
	period := decimal.NewFromInt(int64(n))
	out := make([]decimal.Decimal, 0, len(closes)-n+1)

	var sum decimal.Decimal
	for i, c := range closes {
		sum = sum.Add(c)
		if i >= n {
			sum = sum.Sub(closes[i-n])
		}
		if i >= n-1 {
			out = append(out, sum.Div(period))
		}
	}
	return out
}

// ema returns the exponential moving average series, seeded with the
// SMA of the first n closes at bar index n-1, then the recurrence
// ema = close*k + ema*(1-k) with k = 2/(n+1).
func ema(closes []decimal.Decimal, n int) []decimal.Decimal {
	if len(closes) < n {
		return nil
	}
	k := two.Div(decimal.NewFromInt(int64(n + 1)))
	oneMinusK := one.Sub(k)

	seed := decimal.Zero
	for _, c := range closes[:n] {
		seed = seed.Add(c)
	}
	cur := seed.Div(decimal.NewFromInt(int64(n)))

	out := make([]decimal.Decimal, 0, len(closes)-n+1)
	out = append(out, cur)
	for _, c := range closes[n:] {
		cur = c.Mul(k).Add(cur.Mul(oneMinusK))
		out = append(out, cur)
	}
	return out
}

// rsi returns the Wilder-smoothed relative strength index. The first
// value corresponds to bar index n (n deltas are needed to seed the
// averages). When the average loss is zero RSI is 100.
func rsi(closes []decimal.Decimal, n int) []decimal.Decimal {
	if len(closes) < n+1 {
		return nil
	}
	period := decimal.NewFromInt(int64(n))
	periodLess1 := decimal.NewFromInt(int64(n - 1))

	var sumGain, sumLoss decimal.Decimal
	for i := 1; i <= n; i++ {
		delta := closes[i].Sub(closes[i-1])
		if delta.Sign() > 0 {
			sumGain = sumGain.Add(delta)
		} else {
			sumLoss = sumLoss.Add(delta.Neg())
		}
	}
	avgGain := sumGain.Div(period)
	avgLoss := sumLoss.Div(period)

	out := make([]decimal.Decimal, 0, len(closes)-n)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := n + 1; i < len(closes); i++ {
		delta := closes[i].Sub(closes[i-1])
		gain, loss := decimal.Zero, decimal.Zero
		if delta.Sign() > 0 {
			gain = delta
		} else {
			loss = delta.Neg()
		}
		avgGain = avgGain.Mul(periodLess1).Add(gain).Div(period)
		avgLoss = avgLoss.Mul(periodLess1).Add(loss).Div(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss decimal.Decimal) decimal.Decimal {
	if avgLoss.IsZero() {
		return hundred
	}
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(one.Add(rs)))
}

// macd returns the MACD line (defined from bar index slow-1) and its
// signal line (an EMA of the MACD line, defined from bar index
// slow+signal-2).
func macd(closes []decimal.Decimal, p MACDParams) (line, signal []decimal.Decimal) {
	if len(closes) < p.Slow {
		return nil, nil
	}
	fastEMA := ema(closes, p.Fast)
	slowEMA := ema(closes, p.Slow)

	// Align the fast series to the slow series start.
	skip := p.Slow - p.Fast
	line = make([]decimal.Decimal, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+skip].Sub(slowEMA[i])
	}

	signal = ema(line, p.Signal)
	return line, signal
}
