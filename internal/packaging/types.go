package packaging

// Dataset is one top-level directory under a cruise's data tree.
type Dataset struct {
	Name string
	Path string
	Size int64
}

// Package records one produced archive. It is created immediately after the
// archive completes and never mutated afterwards.
type Package struct {
	Name           string
	Path           string
	SourceSize     int64
	CompressedSize int64
	Digest         string
}

// Result is everything a completed packaging run leaves behind besides the
// files on disk.
type Result struct {
	CruiseID        string
	OutputDir       string
	Packages        []Package
	CopiedFiles     []string
	MissingDatasets []string
	FailedArchives  []string
	ManifestPath    string
	SummaryPath     string
	Summary         string
}
