package enrichment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"k8s.io/klog"
)

// CacheItem is one line of an enrichment cache artifact. Merchant,
// Description, and Amount are what the pipeline's enrich stage consumes;
// the remaining fields are provider metadata.
type CacheItem struct {
	Name        string `json:"name,omitempty"`
	Price       string `json:"price,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	Merchant    string `json:"merchant"`
	Description string `json:"description"`
	// Signed decimal string, negative for expenses.
	Amount string `json:"amount"`
}

// CacheData is the full enrichment cache artifact for one transaction,
// written to {cacheDir}/{transactionID}.json. Consumers only require the
// items list; unknown extra keys are tolerated for forward compatibility.
type CacheData struct {
	TransactionID string      `json:"transaction_id"`
	Source        string      `json:"source"`
	OrderID       string      `json:"order_id,omitempty"`
	MatchedAt     string      `json:"matched_at,omitempty"`
	Items         []CacheItem `json:"items"`
}

// WriteCache writes the artifact for one transaction, creating the cache
// directory if needed and overwriting any previous artifact for the same
// transaction ID.
func WriteCache(cacheDir string, data CacheData) (string, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	if data.MatchedAt == "" {
		data.MatchedAt = time.Now().Format(time.RFC3339)
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache data: %w", err)
	}

	path := filepath.Join(cacheDir, data.TransactionID+".json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("failed to write cache file: %w", err)
	}

	klog.Infof("Wrote enrichment cache %s", path)
	return path, nil
}

// ReadCache reads one cache artifact. Returns nil with no error when the
// file does not exist; a parse failure is an error the caller downgrades.
func ReadCache(path string) (*CacheData, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var data CacheData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("invalid cache file %s: %w", path, err)
	}
	return &data, nil
}

// ListCache returns the sorted .json artifact paths under cacheDir.
func ListCache(cacheDir string) []string {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return nil
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(cacheDir, entry.Name()))
	}
	sort.Strings(paths)
	return paths
}
