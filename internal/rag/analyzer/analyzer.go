package analyzer

import (
	"fmt"
	"math"
	"sort"

	"LegalMind/internal/rag/schema"
	"LegalMind/pkg/logger"
)

// Config tunes the analyzer.
type Config struct {
	// MaxContradictions caps the report; lowest-confidence entries are
	// truncated first when exceeded.
	MaxContradictions int
}

// Analyzer compares clauses across chunks and documents for conflicting
// claims and chronological drift. It is best-effort by design: sourcing the
// raw answer is higher priority than this enrichment.
type Analyzer struct {
	cfg Config
	log *logger.Logger
}

// New creates an Analyzer.
func New(cfg Config, log *logger.Logger) *Analyzer {
	if cfg.MaxContradictions <= 0 {
		cfg.MaxContradictions = 50
	}
	return &Analyzer{cfg: cfg, log: log}
}

// Result carries the contradiction findings and the derived risk view. On
// internal failure both degrade to empty values and Warning is set.
type Result struct {
	Contradictions []schema.Contradiction
	Risk           schema.RiskAssessment
	Warning        string
}

// Analyze inspects the evidence for conflicting numeric terms and temporal
// supersession. Evidence spanning fewer than two documents yields no
// cross-document findings but still gets a risk assessment.
func (a *Analyzer) Analyze(evidence *schema.EvidenceSet) (res *Result) {
	res = &Result{}
	defer func() {
		// Enrichment must never abort the pipeline.
		if r := recover(); r != nil {
			if a.log != nil {
				a.log.Error(fmt.Sprintf("contradiction analysis failed: %v", r))
			}
			res = &Result{
				Risk:    schema.RiskAssessment{OverallRiskLevel: schema.RiskLow},
				Warning: fmt.Sprintf("contradiction analysis failed: %v", r),
			}
		}
	}()

	var findings []schema.Contradiction
	if len(evidence.DocumentIDs()) >= 2 {
		findings = append(findings, numericConflicts(evidence)...)
		findings = append(findings, temporalFindings(evidence)...)
	}
	findings = a.truncate(findings)

	res.Contradictions = findings
	res.Risk = assessRisk(findings)
	return res
}

// numericConflicts reports pairs of chunks from different documents whose
// claims give differing numeric terms for the same named provision.
func numericConflicts(evidence *schema.EvidenceSet) []schema.Contradiction {
	var all []claim
	for _, sc := range evidence.Chunks() {
		all = append(all, extractClaims(sc)...)
	}

	var findings []schema.Contradiction
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			ci, cj := all[i], all[j]
			if ci.documentID == cj.documentID {
				continue
			}
			if ci.subject != cj.subject || ci.unit != cj.unit || ci.value == cj.value {
				continue
			}
			findings = append(findings, schema.Contradiction{
				Type: schema.ContradictionNumeric,
				Description: fmt.Sprintf("provision %q gives %v %s in one document but %v %s in another",
					ci.subject, ci.value, ci.unit, cj.value, cj.unit),
				Severity:       conflictSeverity(ci.value, cj.value),
				Confidence:     conflictConfidence(ci, cj),
				SourceChunkIDs: []string{ci.chunkID, cj.chunkID},
			})
		}
	}
	return findings
}

// conflictSeverity grades by relative divergence of the two values.
func conflictSeverity(a, b float64) string {
	hi, lo := math.Max(a, b), math.Min(a, b)
	if hi == 0 {
		return schema.SeverityMinor
	}
	ratio := (hi - lo) / hi
	switch {
	case ratio > 0.5:
		return schema.SeveritySevere
	case ratio > 0.2:
		return schema.SeverityModerate
	default:
		return schema.SeverityMinor
	}
}

// conflictConfidence is higher when both claims name the more specific
// provision keywords (multi-word subjects read less ambiguously).
func conflictConfidence(a, b claim) float64 {
	confidence := 0.6
	if len(a.subject) > len("liability") {
		confidence += 0.15
	}
	if a.unit == b.unit && a.unit != "" {
		confidence += 0.15
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}

// truncate drops the lowest-confidence findings once the cap is exceeded.
func (a *Analyzer) truncate(findings []schema.Contradiction) []schema.Contradiction {
	if len(findings) <= a.cfg.MaxContradictions {
		return findings
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Confidence > findings[j].Confidence
	})
	return findings[:a.cfg.MaxContradictions]
}

// assessRisk aggregates findings into an overall risk view. Supersession
// entries are informational and weigh lightly.
func assessRisk(findings []schema.Contradiction) schema.RiskAssessment {
	score := 0.0
	var factors []string
	for _, f := range findings {
		weight := 0.05
		switch f.Severity {
		case schema.SeveritySevere:
			weight = 0.3
		case schema.SeverityModerate:
			weight = 0.15
		}
		if f.Informational {
			weight = 0.02
		}
		score += weight * f.Confidence
		factors = append(factors, f.Description)
	}
	if score > 1 {
		score = 1
	}

	level := schema.RiskLow
	switch {
	case score >= 0.5:
		level = schema.RiskHigh
	case score >= 0.2:
		level = schema.RiskModerate
	}
	return schema.RiskAssessment{
		OverallRiskLevel: level,
		RiskScore:        score,
		RiskFactors:      factors,
	}
}
