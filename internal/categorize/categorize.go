// Package categorize assigns spending categories to transactions through a
// staged pipeline: exact vendor lookup, fuzzy vendor lookup, then an
// external classifier for whatever is left.
package categorize

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/similarity"
)

// Source tells where an assignment came from.
type Source string

const (
	SourceVendor Source = "vendor"
	SourceModel  Source = "ai"
	SourceNone   Source = "none"
)

const (
	// fuzzyVendorThreshold is the minimum similarity between a description
	// and a vendor key for a stage-2 match.
	fuzzyVendorThreshold = 0.8
	// minModelConfidence is the classifier confidence below which (or equal
	// to which) a decision is discarded in favor of Unassigned.
	minModelConfidence = 0.7
	// learnVendorConfidence is the classifier confidence at which a vendor
	// mapping is learned implicitly.
	learnVendorConfidence = 0.85
	// minVendorKeyLen guards against learning useless one- or two-letter
	// vendor tokens.
	minVendorKeyLen = 3
)

// Result is the assignment produced for one transaction, aligned by index
// with the input batch.
type Result struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Pipeline runs the three categorization stages over a batch.
type Pipeline struct {
	classifier Classifier
	log        zerolog.Logger
}

// NewPipeline builds a pipeline around the given external classifier, which
// may be nil (stage 3 then degrades everything unresolved to Unassigned).
func NewPipeline(classifier Classifier, log zerolog.Logger) *Pipeline {
	return &Pipeline{classifier: classifier, log: log}
}

// Categorize annotates every transaction in the batch with a category
// assignment. The returned slice is index-aligned with txns. The vendor map
// in the second return carries implicitly learned mappings (confident
// classifier decisions); it never contains existing keys.
//
// Stages 1–2 are pure local computation and cannot fail. A stage-3
// classifier failure degrades every still-pending transaction to Unassigned
// and is returned alongside the partial results.
func (p *Pipeline) Categorize(ctx context.Context, txns []domain.Transaction, vendors domain.VendorMap, categories []domain.Category) ([]Result, domain.VendorMap, error) {
	results := make([]Result, len(txns))
	learned := domain.VendorMap{}
	if len(txns) == 0 {
		return results, learned, nil
	}

	// Vendor keys are scanned in sorted order so first-match-wins is
	// deterministic.
	keys := make([]string, 0, len(vendors))
	for k := range vendors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pending []int
	for i := range txns {
		if r, ok := matchVendorExact(&txns[i], keys, vendors); ok {
			results[i] = r
			continue
		}
		if r, ok := matchVendorFuzzy(&txns[i], keys, vendors); ok {
			results[i] = r
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) == 0 {
		return results, learned, nil
	}

	if err := p.classifyResidue(ctx, txns, pending, categories, vendors, results, learned); err != nil {
		return results, learned, err
	}
	return results, learned, nil
}

func matchVendorExact(t *domain.Transaction, keys []string, vendors domain.VendorMap) (Result, bool) {
	desc := strings.ToUpper(t.Description)
	for _, key := range keys {
		if strings.Contains(desc, key) {
			return Result{Category: vendors[key], Confidence: 1.0, Source: SourceVendor}, true
		}
	}
	return Result{}, false
}

func matchVendorFuzzy(t *domain.Transaction, keys []string, vendors domain.VendorMap) (Result, bool) {
	var bestKey string
	bestScore := 0.0
	for _, key := range keys {
		if score := similarity.Score(t.Description, key); score > bestScore {
			bestScore = score
			bestKey = key
		}
	}
	if bestScore < fuzzyVendorThreshold {
		return Result{}, false
	}
	return Result{Category: vendors[bestKey], Confidence: bestScore, Source: SourceVendor}, true
}

// classifyResidue sends the transactions stages 1–2 could not resolve to the
// external classifier as one batch. Every item carries a caller-assigned
// correlation id: transactions may not be persisted yet, so their own ids
// cannot be relied on.
func (p *Pipeline) classifyResidue(ctx context.Context, txns []domain.Transaction, pending []int, categories []domain.Category, vendors domain.VendorMap, results []Result, learned domain.VendorMap) error {
	unassigned := Result{Category: domain.CategoryUnassigned, Confidence: 0, Source: SourceNone}

	if p.classifier == nil {
		for _, i := range pending {
			results[i] = unassigned
		}
		return fmt.Errorf("classifyResidue: no classifier configured")
	}

	items := make([]Item, 0, len(pending))
	byCorrelation := make(map[string]int, len(pending))
	for _, i := range pending {
		id := uuid.NewString()
		byCorrelation[id] = i
		items = append(items, Item{
			CorrelationID: id,
			Description:   txns[i].Description,
			Amount:        txns[i].Amount,
			Date:          txns[i].Date,
		})
	}

	decisions, err := p.classifier.Classify(ctx, items, categories)
	if err != nil {
		for _, i := range pending {
			results[i] = unassigned
		}
		return fmt.Errorf("classifyResidue: %w", err)
	}

	valid := make(map[string]bool, len(categories))
	for _, c := range categories {
		valid[c.Name] = true
	}

	resolved := make(map[int]bool, len(decisions))
	for _, d := range decisions {
		i, ok := byCorrelation[d.CorrelationID]
		if !ok {
			p.log.Warn().Str("correlation_id", d.CorrelationID).Msg("Classifier returned unknown correlation id")
			continue
		}
		resolved[i] = true

		if d.Confidence <= minModelConfidence || !valid[d.Category] {
			results[i] = unassigned
			continue
		}

		results[i] = Result{
			Category:   d.Category,
			Confidence: d.Confidence,
			Source:     SourceModel,
			Reasoning:  d.Reasoning,
		}

		if d.Confidence >= learnVendorConfidence {
			if key := vendorKey(txns[i].Description); key != "" {
				if _, exists := vendors[key]; !exists {
					learned[key] = d.Category
				}
			}
		}
	}

	// Decisions the classifier silently omitted degrade to Unassigned.
	for _, i := range pending {
		if !resolved[i] {
			results[i] = unassigned
		}
	}
	return nil
}

// vendorKey derives the implicit vendor-mapping key from a description:
// noise-stripped and uppercased.
func vendorKey(description string) string {
	key := domain.NormalizeVendorKey(similarity.StripNoise(description))
	if len(key) < minVendorKeyLen {
		return ""
	}
	return key
}
