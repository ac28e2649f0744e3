// Package resolve maps entity names to DART corp codes using the local
// directory, syncing it from the API when needed.
package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/TobiSchelling/dartq/internal/dart"
	"github.com/TobiSchelling/dartq/internal/database"
	"github.com/TobiSchelling/dartq/internal/filing"
)

// Directory is the local entity directory.
type Directory interface {
	FindCorps(ctx context.Context, name string) ([]database.Corp, error)
	ReplaceCorps(ctx context.Context, corps []database.Corp) error
	CountCorps(ctx context.Context) (int, error)
	LastCorpSync(ctx context.Context) (time.Time, error)
}

// Source downloads the full directory.
type Source interface {
	FetchCorpCodes(ctx context.Context) ([]dart.Corp, error)
}

// Resolver resolves names against a Directory. A lookup that finds nothing
// tries at most one sync before giving up.
type Resolver struct {
	dir          Directory
	source       Source
	refreshAfter time.Duration
	now          func() time.Time
}

var _ filing.NameResolver = (*Resolver)(nil)

// New creates a resolver. A nil source disables syncing. An empty
// directory is always synced; otherwise a miss resyncs only if the last
// sync is older than refreshAfter.
func New(dir Directory, source Source, refreshAfter time.Duration) *Resolver {
	return &Resolver{dir: dir, source: source, refreshAfter: refreshAfter, now: time.Now}
}

// Sync replaces the local directory with a fresh download and returns the
// number of entries stored.
func (r *Resolver) Sync(ctx context.Context) (int, error) {
	if r.source == nil {
		return 0, fmt.Errorf("no directory source configured")
	}
	fetched, err := r.source.FetchCorpCodes(ctx)
	if err != nil {
		return 0, fmt.Errorf("downloading directory: %w", err)
	}
	corps := make([]database.Corp, len(fetched))
	for i, c := range fetched {
		corps[i] = database.Corp{Code: c.Code, Name: c.Name, StockCode: c.StockCode, ModifyDate: c.ModifyDate}
	}
	if err := r.dir.ReplaceCorps(ctx, corps); err != nil {
		return 0, fmt.Errorf("storing directory: %w", err)
	}
	log.Info().Int("corps", len(corps)).Msg("entity directory synced")
	return len(corps), nil
}

// Resolve returns the corp code for name. An exact name match wins over
// substring matches; several exact matches are narrowed to the listed one.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", filing.ErrNotFound)
	}

	for attempt := 0; attempt < 2; attempt++ {
		matches, err := r.dir.FindCorps(ctx, name)
		if err != nil {
			return "", fmt.Errorf("searching directory: %w", err)
		}
		if len(matches) > 0 {
			return pick(name, matches)
		}
		if attempt > 0 {
			break
		}
		sync, err := r.needsSync(ctx)
		if err != nil {
			return "", err
		}
		if !sync {
			break
		}
		if _, err := r.Sync(ctx); err != nil {
			if n, _ := r.dir.CountCorps(ctx); n == 0 {
				return "", err
			}
			log.Warn().Err(err).Msg("directory resync failed; using local copy")
			break
		}
	}
	return "", fmt.Errorf("%w: %q", filing.ErrNotFound, name)
}

func (r *Resolver) needsSync(ctx context.Context) (bool, error) {
	if r.source == nil {
		return false, nil
	}
	n, err := r.dir.CountCorps(ctx)
	if err != nil {
		return false, fmt.Errorf("counting directory: %w", err)
	}
	if n == 0 {
		return true, nil
	}
	last, err := r.dir.LastCorpSync(ctx)
	if err != nil {
		return false, fmt.Errorf("reading directory sync time: %w", err)
	}
	return r.now().Sub(last) > r.refreshAfter, nil
}

func pick(name string, matches []database.Corp) (string, error) {
	if len(matches) == 1 {
		return filing.NormalizeEntityID(matches[0].Code), nil
	}

	if matches[0].Name == name {
		var listed []database.Corp
		for _, c := range matches {
			if c.StockCode != "" {
				listed = append(listed, c)
			}
		}
		if len(listed) == 1 {
			return filing.NormalizeEntityID(listed[0].Code), nil
		}
	}

	candidates := make([]string, len(matches))
	for i, c := range matches {
		if c.Name == name {
			candidates[i] = fmt.Sprintf("%s (%s)", c.Name, c.Code)
		} else {
			candidates[i] = c.Name
		}
	}
	return "", &filing.AmbiguousError{Name: name, Candidates: candidates}
}
