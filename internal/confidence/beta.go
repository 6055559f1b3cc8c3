// Package confidence implements the Bayesian Confidence Scorer (§4.7): a
// Beta-posterior trust score over pattern evidence, combining a six-factor
// weighted evidence model, temporal decay, a momentum tracker, and a
// feedback store, mapped to a four-tier trust label.
package confidence

import "math"

// regularizedIncompleteBeta computes I_x(a, b), the CDF of Beta(a, b) at x,
// via the continued-fraction expansion (Numerical Recipes §6.4). This is the
// standard stable routine for Beta-quantile computation: direct series
// summation loses precision badly near the tails this scorer operates in
// (α or β near 0, or into the thousands after heavy feedback).
func regularizedIncompleteBeta(x, a, b float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	bt := math.Exp(lgammaSum(a, b) + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return bt * betacf(x, a, b) / a
	}
	return 1 - bt*betacf(1-x, b, a)/b
}

func lgammaSum(a, b float64) float64 {
	lgA, _ := math.Lgamma(a)
	lgB, _ := math.Lgamma(b)
	lgAB, _ := math.Lgamma(a + b)
	return lgAB - lgA - lgB
}

// betacf evaluates the continued fraction for the incomplete beta function
// using the modified Lentz method, converging to double precision in well
// under 200 iterations for any (a, b) this scorer produces.
func betacf(x, a, b float64) float64 {
	const (
		maxIter = 200
		eps     = 3e-16
		fpmin   = 1e-300
	)

	qab := a + b
	qap := a + 1
	qam := a - 1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < fpmin {
		d = fpmin
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIter; m++ {
		mf := float64(m)
		m2 := 2 * mf

		aa := mf * (b - mf) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		h *= d * c

		aa = -(a + mf) * (qab + mf) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}

// betaQuantile inverts regularizedIncompleteBeta(x, a, b) = p via bisection,
// which is slower than a Newton iteration but never diverges — important
// since this routine must return finite, ordered endpoints even for the
// pathological (α or β near 0, or ≥ 1e7) inputs §4.7 calls out.
func betaQuantile(p, a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return math.NaN()
	}
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}

	lo, hi := 0.0, 1.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		if regularizedIncompleteBeta(mid, a, b) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// PosteriorMean returns α/(α+β), the Beta posterior's expected value.
func PosteriorMean(alpha, beta float64) float64 {
	if alpha+beta == 0 {
		return 0
	}
	return alpha / (alpha + beta)
}

// CredibleInterval returns the [low, high] 95% credible interval for
// Beta(alpha, beta), clamped to finite, ordered endpoints in [0, 1] even for
// extreme alpha/beta (§4.7's quantile robustness requirement).
func CredibleInterval(alpha, beta float64) (low, high float64) {
	alpha = clampPositive(alpha)
	beta = clampPositive(beta)

	low = betaQuantile(0.025, alpha, beta)
	high = betaQuantile(0.975, alpha, beta)

	if math.IsNaN(low) || low < 0 {
		low = 0
	}
	if math.IsNaN(high) || high > 1 {
		high = 1
	}
	if high < low {
		low, high = high, low
	}
	return low, high
}

func clampPositive(v float64) float64 {
	const minPositive = 1e-9
	if math.IsNaN(v) || v < minPositive {
		return minPositive
	}
	const maxPractical = 1e9
	if v > maxPractical {
		return maxPractical
	}
	return v
}
