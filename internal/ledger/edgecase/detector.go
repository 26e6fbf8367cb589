package edgecase

// Detector inspects an input and reports the edge cases it finds. Implementations hold no state.
type Detector interface {
	Name() string
	Detect(in Input) Report
}

// Pipeline runs detectors in order and keeps every flag they emit.
type Pipeline struct {
	detectors []Detector
}

// NewPipeline builds a pipeline over detectors.
func NewPipeline(detectors ...Detector) Pipeline {
	return Pipeline{detectors: append([]Detector(nil), detectors...)}
}

// DefaultPipeline contains every built-in detector.
func DefaultPipeline() Pipeline {
	return NewPipeline(
		AmountDetector{},
		TimingDetector{},
		AccountTypeDetector{},
		BalanceImpactDetector{},
		DocumentationDetector{},
		DormantAccountDetector{},
		DuplicateDetector{},
		PeriodEndDetector{},
	)
}

// Names lists detector names in run order.
func (p Pipeline) Names() []string {
	out := make([]string, 0, len(p.detectors))
	for _, d := range p.detectors {
		out = append(out, d.Name())
	}
	return out
}

// Run executes all detectors. It never short-circuits.
func (p Pipeline) Run(in Input) Report {
	var report Report
	for _, d := range p.detectors {
		report.Merge(d.Detect(in))
	}
	return report
}
