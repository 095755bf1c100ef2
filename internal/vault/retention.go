package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"hrvault/internal/logging"
)

// RetentionPolicy bounds how many backup artifacts a directory keeps.
// MaxCount keeps only the newest N artifacts; MaxAge drops artifacts
// older than the window. A zero field disables that rule. When both
// rules are set an artifact survives if either rule keeps it, and the
// newest artifact is never deleted.
type RetentionPolicy struct {
	MaxCount int
	MaxAge   time.Duration
}

// Enabled reports whether any retention rule is active
func (p RetentionPolicy) Enabled() bool {
	return p.MaxCount > 0 || p.MaxAge > 0
}

// Validate rejects negative retention bounds.
func (p RetentionPolicy) Validate() error {
	if p.MaxCount < 0 {
		return NewValidationError(
			fmt.Sprintf("retention max count must not be negative, got %d", p.MaxCount), nil)
	}
	if p.MaxAge < 0 {
		return NewValidationError(
			fmt.Sprintf("retention max age must not be negative, got %s", p.MaxAge), nil)
	}
	return nil
}

// ArtifactInfo describes one artifact file found during a prune scan
type ArtifactInfo struct {
	Path       string    `json:"path" yaml:"path"`
	SizeBytes  int64     `json:"size_bytes" yaml:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at" yaml:"modified_at"`
}

// PruneResult reports what a prune pass scanned, kept and removed.
type PruneResult struct {
	Directory  string         `json:"directory" yaml:"directory"`
	Scanned    int            `json:"scanned" yaml:"scanned"`
	Kept       []ArtifactInfo `json:"kept" yaml:"kept"`
	Deleted    []ArtifactInfo `json:"deleted" yaml:"deleted"`
	BytesFreed int64          `json:"bytes_freed" yaml:"bytes_freed"`
	DryRun     bool           `json:"dry_run" yaml:"dry_run"`
	Errors     []string       `json:"errors,omitempty" yaml:"errors,omitempty"`
	Duration   time.Duration  `json:"duration" yaml:"duration"`
}

// Pruner applies a retention policy to the artifact files in one
// directory. Only files with the artifact extension are considered, so
// a shared directory never loses unrelated files.
type Pruner struct {
	dir    string
	policy RetentionPolicy
	logger *logging.Logger
}

// NewPruner creates a pruner for the given directory
func NewPruner(dir string, policy RetentionPolicy, logger *logging.Logger) (*Pruner, error) {
	if dir == "" {
		return nil, NewValidationError("artifact directory must not be empty", nil)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Pruner{dir: dir, policy: policy, logger: logger}, nil
}

// Prune scans the directory, decides which artifacts the policy keeps,
// and deletes the rest. With dryRun the result reports what would be
// deleted without removing anything. Deletion failures are collected
// per file so one stubborn artifact does not abort the pass.
func (p *Pruner) Prune(ctx context.Context, dryRun bool) (*PruneResult, error) {
	start := time.Now()

	if !p.policy.Enabled() {
		return nil, NewValidationError(
			"no retention rule configured: set a max count or max age", nil)
	}

	artifacts, err := p.scan()
	if err != nil {
		return nil, err
	}

	result := &PruneResult{
		Directory: p.dir,
		Scanned:   len(artifacts),
		DryRun:    dryRun,
	}

	if len(artifacts) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	// Newest first; index 0 is always kept.
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].ModifiedAt.After(artifacts[j].ModifiedAt)
	})

	keep := p.selectKeepers(artifacts)
	for _, artifact := range artifacts {
		if keep[artifact.Path] {
			result.Kept = append(result.Kept, artifact)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !dryRun {
			if err := os.Remove(artifact.Path); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("failed to delete %s: %v", artifact.Path, err))
				p.logger.WithFields(map[string]interface{}{
					"artifact": artifact.Path,
					"error":    err.Error(),
				}).Error("Artifact deletion failed")
				result.Kept = append(result.Kept, artifact)
				continue
			}
			p.logger.WithFields(map[string]interface{}{
				"artifact":    artifact.Path,
				"size_bytes":  artifact.SizeBytes,
				"modified_at": artifact.ModifiedAt.Format(time.RFC3339),
			}).Info("Artifact pruned")
		}
		result.Deleted = append(result.Deleted, artifact)
		result.BytesFreed += artifact.SizeBytes
	}

	result.Duration = time.Since(start)
	return result, nil
}

// scan lists the artifact files in the directory. A missing directory
// is an empty scan, not an error, so prune is safe before first export.
func (p *Pruner) scan() ([]ArtifactInfo, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewIoError(fmt.Sprintf("failed to read artifact directory %s", p.dir), err)
	}

	artifacts := make([]ArtifactInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ArtifactExtension {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, NewIoError(fmt.Sprintf("failed to stat artifact %s", entry.Name()), err)
		}
		artifacts = append(artifacts, ArtifactInfo{
			Path:       filepath.Join(p.dir, entry.Name()),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	return artifacts, nil
}

// selectKeepers marks the artifacts the policy retains. Rules are a
// union: max count keeps the newest N, max age keeps everything inside
// the window, and the newest artifact survives regardless.
func (p *Pruner) selectKeepers(newestFirst []ArtifactInfo) map[string]bool {
	keep := make(map[string]bool, len(newestFirst))
	keep[newestFirst[0].Path] = true

	if p.policy.MaxCount > 0 {
		for i := 0; i < len(newestFirst) && i < p.policy.MaxCount; i++ {
			keep[newestFirst[i].Path] = true
		}
	}

	if p.policy.MaxAge > 0 {
		cutoff := time.Now().Add(-p.policy.MaxAge)
		for _, artifact := range newestFirst {
			if artifact.ModifiedAt.After(cutoff) {
				keep[artifact.Path] = true
			}
		}
	}

	return keep
}
