package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Comparison reports how two series relate
type Comparison struct {
	Count1         int          `json:"count1"`
	Count2         int          `json:"count2"`
	Mean1          float64      `json:"mean1"`
	Mean2          float64      `json:"mean2"`
	MeanDifference float64      `json:"meanDifference"`
	Variance1      float64      `json:"variance1"`
	Variance2      float64      `json:"variance2"`
	Correlation    float64      `json:"correlation"`
	PooledStdDev   float64      `json:"pooledStdDev"`
	EffectSize     float64      `json:"effectSize"`
	TTest          *TTestResult `json:"tTest"`
}

// TTestResult is a two-sided two-sample t-test
type TTestResult struct {
	Method           string  `json:"method"`
	Statistic        float64 `json:"statistic"`
	DegreesOfFreedom float64 `json:"degreesOfFreedom"`
	PValue           float64 `json:"pValue"`
}

// Compare computes means, correlation, effect size and Welch's t-test.
// TTest is nil when either series has fewer than two points or both are constant.
func Compare(a, b []float64) Comparison {
	c := Comparison{Count1: len(a), Count2: len(b)}
	if len(a) > 0 {
		c.Mean1 = stat.Mean(a, nil)
	}
	if len(b) > 0 {
		c.Mean2 = stat.Mean(b, nil)
	}
	c.MeanDifference = c.Mean1 - c.Mean2
	c.Variance1 = SampleVariance(a)
	c.Variance2 = SampleVariance(b)
	c.Correlation = Correlation(a, b)

	c.PooledStdDev = math.Sqrt((c.Variance1 + c.Variance2) / 2)
	if c.PooledStdDev > 0 {
		c.EffectSize = math.Abs(c.MeanDifference) / c.PooledStdDev
	}

	c.TTest = WelchTTest(a, b)
	return c
}

// Correlation is Pearson's r for equal-length series. It is 0 when the
// lengths differ, the series are empty, or either series is constant.
func Correlation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	if stat.Variance(a, nil) == 0 || stat.Variance(b, nil) == 0 {
		return 0
	}
	r := stat.Correlation(a, b, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// WelchTTest runs an unequal-variance two-sample t-test with
// Welch-Satterthwaite degrees of freedom.
func WelchTTest(a, b []float64) *TTestResult {
	n1, n2 := float64(len(a)), float64(len(b))
	if n1 < 2 || n2 < 2 {
		return nil
	}

	v1, v2 := stat.Variance(a, nil), stat.Variance(b, nil)
	se1, se2 := v1/n1, v2/n2
	se := math.Sqrt(se1 + se2)
	if se == 0 {
		return nil
	}

	t := (stat.Mean(a, nil) - stat.Mean(b, nil)) / se
	df := (se1 + se2) * (se1 + se2) / (se1*se1/(n1-1) + se2*se2/(n2-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	if p > 1 {
		p = 1
	}

	return &TTestResult{
		Method:           "welch",
		Statistic:        t,
		DegreesOfFreedom: df,
		PValue:           p,
	}
}
