package calculation

import (
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

// Sampler draws values from scenario distributions. Each trajectory owns one;
// it is not safe for concurrent use.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a sampler seeded with seed.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Sample draws one value. Configurations are checked by ValidateDistribution
// beforehand, so Sample never fails; an unknown type yields zero.
func (s *Sampler) Sample(d domain.Distribution) decimal.Decimal {
	switch d.Type {
	case domain.DistributionFixed, "":
		return d.Value
	case domain.DistributionUniform:
		if d.Min.Equal(d.Max) {
			return d.Min
		}
		span := d.Max.Sub(d.Min).InexactFloat64()
		return d.Min.Add(decimal.NewFromFloat(s.rng.Float64() * span))
	case domain.DistributionNormal:
		if d.StdDev.IsZero() {
			return d.Mean
		}
		z := s.rng.NormFloat64()
		return d.Mean.Add(decimal.NewFromFloat(z * d.StdDev.InexactFloat64()))
	}
	return decimal.Zero
}

// SampleYears draws a whole number of years, rounded and floored at zero.
func (s *Sampler) SampleYears(d domain.Distribution) int {
	v := s.Sample(d).Round(0)
	if v.IsNegative() {
		return 0
	}
	return int(v.IntPart())
}

// ValidateDistribution checks a distribution's parameters and records
// problems under field.
func ValidateDistribution(field string, d domain.Distribution, verr *ValidationError) {
	switch d.Type {
	case domain.DistributionFixed:
	case domain.DistributionUniform:
		if d.Min.GreaterThan(d.Max) {
			verr.Add(field, "uniform min %s exceeds max %s", d.Min, d.Max)
		}
	case domain.DistributionNormal:
		if d.StdDev.IsNegative() {
			verr.Add(field, "normal std_dev %s is negative", d.StdDev)
		}
	case "":
		verr.Add(field, "distribution type is required")
	default:
		verr.Add(field, "unknown distribution type %q", d.Type)
	}
}

func describeDistribution(d domain.Distribution) string {
	switch d.Type {
	case domain.DistributionUniform:
		return fmt.Sprintf("uniform[%s,%s]", d.Min, d.Max)
	case domain.DistributionNormal:
		return fmt.Sprintf("normal(%s,%s)", d.Mean, d.StdDev)
	}
	return fmt.Sprintf("fixed(%s)", d.Value)
}
