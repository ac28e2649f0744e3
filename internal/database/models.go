package database

// Corp is one entry of the entity directory.
type Corp struct {
	Code       string
	Name       string
	StockCode  string
	ModifyDate string
}

// ProcessingStatus records the outcome of a batch run for one entity.
type ProcessingStatus struct {
	CorpCode    string
	Period      string
	Status      string // "done", "empty" or "failed"
	MetricCount int
	ProcessedAt *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	CachedRows      int
	CachedEntities  int
	DirectorySize   int
	ProcessedCorps  int
	EmptyCorps      int
	LastProcessedAt string
}
