// Package compare implements the pairwise similarity engine (C9):
// per-axis cosine/Jaccard similarities over a reference and a target
// catalog.FileRecord, combined with a two-tier weighting policy into
// a single score and HIGH/MEDIUM/LOW rating.
package compare

import (
	"math"
	"sort"

	"github.com/omertheroot/correlf/internal/apperr"
	"github.com/omertheroot/correlf/internal/catalog"
	"github.com/omertheroot/correlf/internal/codec"
	"github.com/omertheroot/correlf/internal/coderec"
	"github.com/omertheroot/correlf/internal/config"
	"github.com/omertheroot/correlf/internal/fingerprint"
	"github.com/omertheroot/correlf/internal/minhash"
)

// Rating is the closed HIGH/MEDIUM/LOW classification spec.md §4.9
// derives from a comparison's score.
type Rating string

const (
	RatingHigh   Rating = "high"
	RatingMedium Rating = "medium"
	RatingLow    Rating = "low"
)

// Comparison is the non-persisted comparison record spec.md §3
// describes. JSON tags follow spec.md §6's wire format exactly
// (fileName, secondFileName, ...), matching the lowercase rating
// strings the HTTP surface's own rating query parameter already
// accepts.
type Comparison struct {
	FileName          string             `json:"fileName"`
	SecondFileName    string             `json:"secondFileName"`
	SimilarityScore   float64            `json:"similarityScore"`
	SimilarityRating  Rating             `json:"similarityRating"`
	ComparisonDetails map[string]float64 `json:"comparisonDetails"`
	Weights           map[string]float64 `json:"weights"`
}

// Comparator computes Comparisons between catalog.FileRecords. It
// holds the MinHash engine so STRING_MINHASH similarity can be
// estimated without re-deriving the engine's parameters per call.
type Comparator struct {
	Config  *config.Config
	MinHash *minhash.Engine
}

// NewComparator builds a Comparator bound to a deployment's
// configuration and MinHash engine.
func NewComparator(cfg *config.Config, mh *minhash.Engine) *Comparator {
	return &Comparator{Config: cfg, MinHash: mh}
}

// Compare produces a Comparison between reference and target. An
// identity short-circuit applies when both records share a content
// hash, per spec.md §4.9.
func (c *Comparator) Compare(reference, target *catalog.FileRecord) (*Comparison, error) {
	cmp := &Comparison{
		FileName:          target.Filename,
		SecondFileName:    reference.Filename,
		ComparisonDetails: map[string]float64{},
	}

	if reference.SHA256 == target.SHA256 {
		cmp.SimilarityScore = 1
		cmp.SimilarityRating = RatingHigh
		cmp.Weights = map[string]float64{}
		return cmp, nil
	}

	bothParsed := reference.ParsingSuccessful && target.ParsingSuccessful
	weights := c.Config.WeightsFallback
	if bothParsed {
		weights = c.Config.WeightsFull
	}
	cmp.Weights = weights

	if bothParsed {
		if err := c.addVectorAxis(cmp, reference, target, catalog.ELFHeaderVector, config.AxisELFHeaderVector, cosine); err != nil {
			return nil, err
		}
		if err := c.addVectorAxis(cmp, reference, target, catalog.SectionSizeVector, config.AxisSectionSizeVector, cosine); err != nil {
			return nil, err
		}
	}

	if err := c.addMinHashAxis(cmp, reference, target); err != nil {
		return nil, err
	}
	if err := c.addRegionAxes(cmp, reference, target); err != nil {
		return nil, err
	}
	if err := c.addProgramHeaderAxis(cmp, reference, target); err != nil {
		return nil, err
	}

	var score float64
	for axis, sim := range cmp.ComparisonDetails {
		score += weights[axis] * sim
	}
	cmp.SimilarityScore = score
	cmp.SimilarityRating = rate(score, c.Config.RatingHigh, c.Config.RatingLow)

	return cmp, nil
}

func rate(score, high, low float64) Rating {
	switch {
	case score >= high:
		return RatingHigh
	case score <= low:
		return RatingLow
	default:
		return RatingMedium
	}
}

// addVectorAxis unpacks a fixed-width double vector representation
// from both records and records its similarity under axisKey, using
// sim as the similarity function (cosine for ELF_HEADER_VECTOR and
// SECTION_SIZE_VECTOR).
func (c *Comparator) addVectorAxis(cmp *Comparison, reference, target *catalog.FileRecord, repType catalog.RepresentationType, axisKey string, sim func(a, b []float64) (float64, error)) error {
	refRep, ok1 := reference.Representation(repType)
	tgtRep, ok2 := target.Representation(repType)
	if !ok1 || !ok2 {
		return nil
	}

	a, err := codec.UnpackDoubles(refRep.Data)
	if err != nil {
		return err
	}
	b, err := codec.UnpackDoubles(tgtRep.Data)
	if err != nil {
		return err
	}

	s, err := sim(a, b)
	if err != nil {
		return err
	}
	cmp.ComparisonDetails[axisKey] = s
	return nil
}

func (c *Comparator) addMinHashAxis(cmp *Comparison, reference, target *catalog.FileRecord) error {
	refRep, ok1 := reference.Representation(catalog.StringMinHash)
	tgtRep, ok2 := target.Representation(catalog.StringMinHash)
	if !ok1 || !ok2 {
		return nil
	}

	a, err := codec.UnpackInt32(refRep.Data)
	if err != nil {
		return err
	}
	b, err := codec.UnpackInt32(tgtRep.Data)
	if err != nil {
		return err
	}

	cmp.ComparisonDetails[config.AxisStringMinHash] = c.MinHash.Similarity(a, b)
	return nil
}

func (c *Comparator) addRegionAxes(cmp *Comparison, reference, target *catalog.FileRecord) error {
	refRep, ok1 := reference.Representation(catalog.CodeRegionList)
	tgtRep, ok2 := target.Representation(catalog.CodeRegionList)
	if !ok1 || !ok2 {
		return nil
	}

	a, err := fingerprint.UnpackRegions(refRep.Data)
	if err != nil {
		return err
	}
	b, err := fingerprint.UnpackRegions(tgtRep.Data)
	if err != nil {
		return err
	}

	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	cmp.ComparisonDetails[config.AxisCodeRegionList] = IntervalJaccard(a, b)
	cmp.ComparisonDetails[config.AxisRegionCountSim] = regionCountSim(len(a), len(b))
	cmp.ComparisonDetails[config.AxisAvgRegionLengthSim] = avgRegionLengthSim(a, b)
	return nil
}

func (c *Comparator) addProgramHeaderAxis(cmp *Comparison, reference, target *catalog.FileRecord) error {
	refRep, ok1 := reference.Representation(catalog.ProgramHeaderVector)
	tgtRep, ok2 := target.Representation(catalog.ProgramHeaderVector)
	if !ok1 || !ok2 {
		return nil
	}

	a, err := codec.UnpackDoubles(refRep.Data)
	if err != nil {
		return err
	}
	b, err := codec.UnpackDoubles(tgtRep.Data)
	if err != nil {
		return err
	}

	cmp.ComparisonDetails[config.AxisProgramHeaderVector] = programHeaderCosine(a, b)
	return nil
}

// cosine computes cosine similarity between equal-length vectors. A
// length mismatch fails with InvalidArgument; a zero-norm vector
// yields similarity 0 rather than NaN, per spec.md §4.9.
func cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, apperr.New(apperr.InvalidArgument, "cosine similarity requires equal-length vectors")
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// programHeaderCosine applies spec.md §4.9's per-axis max
// normalization (indices 0..6) before cosine similarity; indices 7
// and 8 are already fractions/ratios and pass through unchanged. An
// empty input vector yields 0.
func programHeaderCosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	na := make([]float64, n)
	nb := make([]float64, n)
	for i := 0; i < n; i++ {
		if i <= 6 {
			m := math.Max(a[i], b[i])
			if m > 0 {
				na[i] = a[i] / m
				nb[i] = b[i] / m
			}
		} else {
			na[i] = a[i]
			nb[i] = b[i]
		}
	}

	s, err := cosine(na, nb)
	if err != nil {
		return 0
	}
	return s
}

func regionCountSim(na, nb int) float64 {
	if na == 0 && nb == 0 {
		return 1
	}
	if na == 0 || nb == 0 {
		return 0
	}
	max := na
	if nb > max {
		max = nb
	}
	diff := na - nb
	if diff < 0 {
		diff = -diff
	}
	return 1 - float64(diff)/float64(max)
}

func avgRegionLengthSim(a, b []coderec.Region) float64 {
	avgA := avgLength(a)
	avgB := avgLength(b)
	if avgA == 0 && avgB == 0 {
		return 1
	}
	if avgA == 0 || avgB == 0 {
		return 0
	}
	if avgA < avgB {
		return avgA / avgB
	}
	return avgB / avgA
}

func avgLength(regions []coderec.Region) float64 {
	if len(regions) == 0 {
		return 0
	}
	var sum float64
	for _, r := range regions {
		sum += float64(r.Length)
	}
	return sum / float64(len(regions))
}

// mergeRegions sorts regions by start and merges overlapping or
// adjacent ones (current.end >= next.start), per spec.md §4.9's
// interval-Jaccard algorithm.
func mergeRegions(regions []coderec.Region) []coderec.Region {
	if len(regions) == 0 {
		return nil
	}
	sorted := append([]coderec.Region(nil), regions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []coderec.Region{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if last.End >= r.Start {
			if r.End > last.End {
				last.End = r.End
			}
		} else {
			merged = append(merged, r)
		}
	}
	return merged
}

// IntervalJaccard computes the Jaccard similarity of two region
// lists' merged interval sets, via a two-pointer sweep over the
// merged sequences: at each step, the intersection with the currently
// overlapping pair is accumulated and the interval with the smaller
// end is advanced.
func IntervalJaccard(a, b []coderec.Region) float64 {
	ma := mergeRegions(a)
	mb := mergeRegions(b)

	var sumA, sumB float64
	for _, r := range ma {
		sumA += float64(r.End - r.Start)
	}
	for _, r := range mb {
		sumB += float64(r.End - r.Start)
	}

	var inter float64
	i, j := 0, 0
	for i < len(ma) && j < len(mb) {
		start := ma[i].Start
		if mb[j].Start > start {
			start = mb[j].Start
		}
		end := ma[i].End
		if mb[j].End < end {
			end = mb[j].End
		}
		if end > start {
			inter += float64(end - start)
		}
		if ma[i].End < mb[j].End {
			i++
		} else {
			j++
		}
	}

	uni := sumA + sumB - inter
	if uni == 0 {
		return 1
	}
	return inter / uni
}
