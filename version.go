package dagrator

var (
	Version   = "v0.1.0"
	GitCommit = "unknown"
)
