// Package epistemic provides the pure information-theoretic primitives the
// runtime uses to weigh stored knowledge: Bernoulli divergences, surprise,
// evidence aggregation, and a confidence gate over memory nodes. Everything
// here is side-effect free; nothing mutates the memory store.
package epistemic

import "math"

// probEpsilon keeps probabilities strictly inside (0,1) so the divergences
// stay finite on degenerate inputs.
const probEpsilon = 1e-12

const ln2 = math.Ln2

func clampProb(p float64) float64 {
	if p < probEpsilon {
		return probEpsilon
	}
	if p > 1-probEpsilon {
		return 1 - probEpsilon
	}
	return p
}

// BernoulliKLNats returns KL(p || q) in nats for Bernoulli parameters.
func BernoulliKLNats(p, q float64) float64 {
	p = clampProb(p)
	q = clampProb(q)
	return p*math.Log(p/q) + (1-p)*math.Log((1-p)/(1-q))
}

// BernoulliKLBits returns KL(p || q) in bits.
func BernoulliKLBits(p, q float64) float64 {
	return BernoulliKLNats(p, q) / ln2
}

// SurpriseBits returns the self-information of an event with probability p.
func SurpriseBits(p float64) float64 {
	return -math.Log2(clampProb(p))
}

// BinaryEntropyNats returns the entropy of a Bernoulli(p) in nats.
func BinaryEntropyNats(p float64) float64 {
	p = clampProb(p)
	return -p*math.Log(p) - (1-p)*math.Log(1-p)
}

// BinaryEntropyBits returns the entropy of a Bernoulli(p) in bits.
// Maximal (1.0) at p = 0.5.
func BinaryEntropyBits(p float64) float64 {
	return BinaryEntropyNats(p) / ln2
}

// CrossEntropyBits returns H(p, q) for Bernoulli parameters in bits.
func CrossEntropyBits(p, q float64) float64 {
	p = clampProb(p)
	q = clampProb(q)
	return -p*math.Log2(q) - (1-p)*math.Log2(1-q)
}

// JeffreysDivergenceBits returns the symmetrized KL divergence in bits.
func JeffreysDivergenceBits(p, q float64) float64 {
	return BernoulliKLBits(p, q) + BernoulliKLBits(q, p)
}

// JensenShannonBits returns the Jensen-Shannon divergence between
// Bernoulli(p) and Bernoulli(q) in bits. Symmetric and bounded by 1.
func JensenShannonBits(p, q float64) float64 {
	m := (clampProb(p) + clampProb(q)) / 2
	return (BernoulliKLBits(p, m) + BernoulliKLBits(q, m)) / 2
}

// MutualInformationBits returns I(X;Y) in bits for two binary variables
// with marginals px, py and joint probability pxy = P(X=1, Y=1).
// Returns 0 when the implied joint distribution is inconsistent.
func MutualInformationBits(px, py, pxy float64) float64 {
	px = clampProb(px)
	py = clampProb(py)

	// Reconstruct the 2x2 joint from the marginals and the (1,1) cell.
	joint := [4]float64{
		pxy,               // (1,1)
		px - pxy,          // (1,0)
		py - pxy,          // (0,1)
		1 - px - py + pxy, // (0,0)
	}
	marginal := [4]float64{
		px * py,
		px * (1 - py),
		(1 - px) * py,
		(1 - px) * (1 - py),
	}

	var info float64
	for i, pj := range joint {
		if pj < 0 {
			return 0
		}
		if pj < probEpsilon {
			continue
		}
		info += pj * math.Log2(pj/marginal[i])
	}
	if info < 0 {
		return 0
	}
	return info
}

// AggregateEvidenceBits sums independent evidence contributions.
func AggregateEvidenceBits(bits []float64) float64 {
	var total float64
	for _, b := range bits {
		total += b
	}
	return total
}

// AggregateEvidenceBitsWithCorrelation discounts the aggregate for
// correlated sources: at correlation 0 the contributions add, at 1 only the
// strongest counts. correlation is clamped to [0,1].
func AggregateEvidenceBitsWithCorrelation(bits []float64, correlation float64) float64 {
	if len(bits) == 0 {
		return 0
	}
	if correlation < 0 {
		correlation = 0
	}
	if correlation > 1 {
		correlation = 1
	}

	sum := AggregateEvidenceBits(bits)
	strongest := bits[0]
	for _, b := range bits[1:] {
		if b > strongest {
			strongest = b
		}
	}
	return strongest + (1-correlation)*(sum-strongest)
}

// RequiredBitsForSpecificity returns the bits needed to single out one of n
// equally likely hypotheses. n < 2 needs no evidence.
func RequiredBitsForSpecificity(n int) float64 {
	if n < 2 {
		return 0
	}
	return math.Log2(float64(n))
}
