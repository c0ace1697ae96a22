package depict

import (
	"errors"
	"math"
	"math/rand/v2"
)

const (
	// Threshold is the minimum angular difference in radians (10°) that at least one
	// axis must exceed for a new [Triple] to be distinguishable from a previous one.
	Threshold = 10 * math.Pi / 180
	// DefaultMaxAttempts bounds the rejection loop of [Sampler.Sample].
	DefaultMaxAttempts = 1_000_000

	twoPi = 2 * math.Pi
	// kappaUniform is the concentration below which the von Mises distribution
	// is indistinguishable from a uniform distribution over the circle.
	kappaUniform = 1e-6
)

// ErrAngleSpaceExhausted is returned by [Sampler.Sample] when no distinct triple
// was found within the attempt budget.
var ErrAngleSpaceExhausted = errors.New("angle space exhausted")

// Triple holds rotation angles in radians around the X, Y and Z axes.
type Triple [3]float64

// Degrees returns the triple converted to degrees.
func (t Triple) Degrees() [3]float64 {
	const rad2deg = 180 / math.Pi
	return [3]float64{t[0] * rad2deg, t[1] * rad2deg, t[2] * rad2deg}
}

// Sampler draws rotation angle triples that are distinct from a history of
// previously accepted triples.
type Sampler struct {
	rng *rand.Rand
	// Mu and Kappa are the von Mises mean and concentration each angle is drawn with.
	Mu, Kappa float64
	// MaxAttempts is the number of candidates drawn before giving up.
	// Values <= 0 use DefaultMaxAttempts.
	MaxAttempts int

	draws      uint64
	rejections uint64
}

// NewSampler returns a Sampler drawing uniformly over the circle.
// A nil rng uses a randomly seeded generator.
func NewSampler(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{
		rng:   rng,
		Mu:    math.Pi,
		Kappa: 0,
	}
}

// Sample returns a new Triple for which every entry in history has at least one
// axis differing by more than [Threshold]. With an empty history the first draw
// is returned. history is not modified; appending the result is up to the caller.
func (s *Sampler) Sample(history []Triple) (Triple, error) {
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := Triple{
			VonMises(s.rng, s.Mu, s.Kappa),
			VonMises(s.rng, s.Mu, s.Kappa),
			VonMises(s.rng, s.Mu, s.Kappa),
		}
		s.draws++
		if DistinctFromAll(candidate, history) {
			return candidate, nil
		}
		s.rejections++
	}
	return Triple{}, ErrAngleSpaceExhausted
}

// Draws returns the number of candidate triples drawn so far.
func (s *Sampler) Draws() uint64 { return s.draws }

// Rejections returns the number of candidate triples rejected so far.
func (s *Sampler) Rejections() uint64 { return s.rejections }

// Distinct reports whether at least one axis of a and b differs by more than [Threshold].
func Distinct(a, b Triple) bool {
	for i := range a {
		if AngleDiff(a[i], b[i]) > Threshold {
			return true
		}
	}
	return false
}

// DistinctFromAll reports whether t is [Distinct] from every entry in history.
// It is trivially true for an empty history.
func DistinctFromAll(t Triple, history []Triple) bool {
	for _, h := range history {
		if !Distinct(t, h) {
			return false
		}
	}
	return true
}

// AngleDiff returns the absolute angular difference between a and b on the circle, in [0, π].
func AngleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), twoPi)
	return math.Min(d, twoPi-d)
}

// VonMises draws an angle in [0, 2π) from the von Mises distribution with mean mu and
// concentration kappa using the Best-Fisher algorithm. For kappa near zero
// the distribution is uniform over the circle and mu is ignored.
func VonMises(rng *rand.Rand, mu, kappa float64) float64 {
	if kappa <= kappaUniform {
		return twoPi * rng.Float64()
	}
	s := 0.5 / kappa
	r := s + math.Sqrt(1+s*s)
	var z float64
	for {
		u1 := rng.Float64()
		z = math.Cos(math.Pi * u1)
		d := z / (r + z)
		u2 := rng.Float64()
		if u2 < 1-d*d || u2 <= (1-d)*math.Exp(d) {
			break
		}
	}
	q := 1 / r
	f := (q + z) / (1 + q*z)
	theta := mu - math.Acos(f)
	if rng.Float64() > 0.5 {
		theta = mu + math.Acos(f)
	}
	return wrapAngle(theta)
}

// wrapAngle maps a to [0, 2π).
func wrapAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	if a >= twoPi {
		// -tiny + 2π rounds up to 2π.
		a = 0
	}
	return a
}
