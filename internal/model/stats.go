package model

// BatchStats counts the outcomes of one store-info update run.
// TotalProcessed == Updated + Unchanged + NotFound + Errors.
type BatchStats struct {
	TotalProcessed int               `json:"total_processed" yaml:"total_processed"`
	Updated        int               `json:"updated" yaml:"updated"`
	Unchanged      int               `json:"unchanged" yaml:"unchanged"`
	NotFound       int               `json:"not_found" yaml:"not_found"`
	Errors         int               `json:"errors" yaml:"errors"`
	ErrorsByKind   map[ErrorKind]int `json:"errors_by_kind,omitempty" yaml:"errors_by_kind,omitempty"`
}

// RecordError counts a per-record failure under its kind.
func (s *BatchStats) RecordError(err error) {
	s.Errors++
	if s.ErrorsByKind == nil {
		s.ErrorsByKind = make(map[ErrorKind]int)
	}
	s.ErrorsByKind[KindOf(err)]++
}

// EnrichStats counts the outcomes of one enrichment run.
// InRange == Skipped + Inserted + Errors.
type EnrichStats struct {
	InRange      int               `json:"in_range" yaml:"in_range"`
	Skipped      int               `json:"skipped" yaml:"skipped"`
	Inserted     int               `json:"inserted" yaml:"inserted"`
	Errors       int               `json:"errors" yaml:"errors"`
	ErrorsByKind map[ErrorKind]int `json:"errors_by_kind,omitempty" yaml:"errors_by_kind,omitempty"`
}

// RecordError counts a per-record failure under its kind.
func (s *EnrichStats) RecordError(err error) {
	s.Errors++
	if s.ErrorsByKind == nil {
		s.ErrorsByKind = make(map[ErrorKind]int)
	}
	s.ErrorsByKind[KindOf(err)]++
}
