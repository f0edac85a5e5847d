package archive

import (
	"path/filepath"
	"strings"
)

// DownloadBaseURL is the public front of the archive bucket.
const DownloadBaseURL = "https://data.binance.vision"

// ChecksumSuffix is appended to a data file's name/URL to address its
// companion checksum file.
const ChecksumSuffix = ".CHECKSUM"

// PlanItem pairs one identity's remote locators with its local destinations.
// Ephemeral, produced once per run.
type PlanItem struct {
	Key          string
	DataURL      string
	ChecksumURL  string
	DataPath     string
	ChecksumPath string
}

// PathBuilder maps identities to remote URLs and local paths. Pure, no I/O.
type PathBuilder struct {
	baseURL string
	dataDir string
}

func NewPathBuilder(baseURL, dataDir string) *PathBuilder {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DownloadBaseURL
	}
	return &PathBuilder{baseURL: baseURL, dataDir: dataDir}
}

// Build resolves an identity into a PlanItem. Deterministic; the only
// failure mode is an identity the archive layout cannot express.
func (b *PathBuilder) Build(id Identity) (PlanItem, error) {
	key, err := id.Key()
	if err != nil {
		return PlanItem{}, err
	}
	return b.ItemForKey(key), nil
}

// ItemForKey rebuilds a PlanItem from a ledger key. Keys are archive-relative
// paths, so no catalog lookup is needed to resolve them.
func (b *PathBuilder) ItemForKey(key string) PlanItem {
	dataPath := filepath.Join(b.dataDir, filepath.FromSlash(key))
	return PlanItem{
		Key:          key,
		DataURL:      b.baseURL + "/" + key,
		ChecksumURL:  b.baseURL + "/" + key + ChecksumSuffix,
		DataPath:     dataPath,
		ChecksumPath: dataPath + ChecksumSuffix,
	}
}

// DataDir is the local root all plan items land under.
func (b *PathBuilder) DataDir() string {
	return b.dataDir
}
