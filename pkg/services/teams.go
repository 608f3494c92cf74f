package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/vlrscout/scout-engine/pkg/repositories"
)

const teamsCacheKey = "teams"

// TeamDirectory caches the list of teams in the match database.
type TeamDirectory struct {
	repo   repositories.ScoutingRepository
	cache  *ttlcache.Cache[string, []string]
	ttl    time.Duration
	loadMu sync.Mutex
	logger *zap.Logger
}

func NewTeamDirectory(repo repositories.ScoutingRepository, ttl time.Duration, logger *zap.Logger) *TeamDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TeamDirectory{
		repo:   repo,
		cache:  ttlcache.New(ttlcache.WithTTL[string, []string](ttl), ttlcache.WithDisableTouchOnHit[string, []string]()),
		ttl:    ttl,
		logger: logger.Named("teams"),
	}
}

// Teams returns every known team name, sorted.
func (d *TeamDirectory) Teams(ctx context.Context) ([]string, error) {
	if item := d.cache.Get(teamsCacheKey); item != nil {
		return append([]string(nil), item.Value()...), nil
	}

	d.loadMu.Lock()
	defer d.loadMu.Unlock()
	if item := d.cache.Get(teamsCacheKey); item != nil {
		return append([]string(nil), item.Value()...), nil
	}

	teams, err := d.repo.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	d.cache.Set(teamsCacheKey, teams, d.ttl)
	d.logger.Debug("Loaded team directory", zap.Int("teams", len(teams)))
	return append([]string(nil), teams...), nil
}

// Canonical returns the stored spelling of name, matched case-insensitively.
func (d *TeamDirectory) Canonical(ctx context.Context, name string) (string, bool, error) {
	teams, err := d.Teams(ctx)
	if err != nil {
		return "", false, err
	}
	name = strings.TrimSpace(name)
	for _, t := range teams {
		if strings.EqualFold(t, name) {
			return t, true, nil
		}
	}
	return "", false, nil
}

// Invalidate drops the cached list.
func (d *TeamDirectory) Invalidate() {
	d.cache.Delete(teamsCacheKey)
}
