package roster

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/eventsource"
	"github.com/dennisdiepolder/qcdash/internal/metrics"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Directory serves the roster and reloads it lazily once ttl has passed.
// A failed reload keeps the previous members.
type Directory struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	reloads singleflight.Group

	mu       sync.RWMutex
	members  []types.Member
	byName   map[string]int
	byVoip   map[string]int
	loadedAt time.Time
}

// NewDirectory creates a Directory. Nothing is loaded until first use.
func NewDirectory(loader Loader, ttl time.Duration, logger zerolog.Logger) *Directory {
	return &Directory{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "roster").Logger(),
	}
}

// Reload forces a read of the roster
func (d *Directory) Reload() error {
	rows, err := d.loader.Load()
	var members []types.Member
	if err == nil {
		members, err = Parse(rows)
	}
	metrics.Get().RecordRosterReload(len(members), err)
	if err != nil {
		d.logger.Error().Err(err).Msg("roster reload failed")
		return err
	}

	byName := make(map[string]int, len(members))
	byVoip := make(map[string]int, len(members))
	for i, m := range members {
		byName[strings.ToLower(m.Name)] = i
		for _, id := range m.VoipIDs {
			if prev, dup := byVoip[id]; dup {
				d.logger.Warn().Str("voip_id", id).Str("kept", members[prev].Name).Str("ignored", m.Name).Msg("voip id assigned twice")
				continue
			}
			byVoip[id] = i
		}
	}

	d.mu.Lock()
	d.members = members
	d.byName = byName
	d.byVoip = byVoip
	d.loadedAt = d.now()
	d.mu.Unlock()

	d.logger.Info().Int("members", len(members)).Msg("roster loaded")
	return nil
}

// ensure reloads when stale. Concurrent callers share one reload, and a
// failed reload of a loaded roster waits another ttl before retrying. It
// only fails if nothing was ever loaded.
func (d *Directory) ensure() error {
	d.mu.RLock()
	loaded := d.members != nil
	stale := !loaded || (d.ttl > 0 && d.now().Sub(d.loadedAt) >= d.ttl)
	d.mu.RUnlock()

	if !stale {
		return nil
	}
	_, err, _ := d.reloads.Do("roster", func() (any, error) {
		err := d.Reload()
		if err != nil {
			d.mu.Lock()
			if d.members != nil {
				d.loadedAt = d.now()
			}
			d.mu.Unlock()
		}
		return nil, err
	})
	if err != nil && !loaded {
		return ErrRosterUnavailable
	}
	return nil
}

// Members returns a copy of every member in roster order
func (d *Directory) Members() ([]types.Member, error) {
	if err := d.ensure(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]types.Member, len(d.members))
	copy(out, d.members)
	return out, nil
}

// Lookup finds a member by name, ignoring case
func (d *Directory) Lookup(name string) (types.Member, error) {
	if err := d.ensure(); err != nil {
		return types.Member{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	i, ok := d.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return types.Member{}, ErrMemberNotFound
	}
	return d.members[i], nil
}

// MemberByAgent resolves a queue_log agent channel to the member owning
// its extension
func (d *Directory) MemberByAgent(agentID string) (types.Member, bool) {
	if err := d.ensure(); err != nil {
		return types.Member{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	i, ok := d.byVoip[eventsource.VoipIDFromChannel(agentID)]
	if !ok {
		return types.Member{}, false
	}
	return d.members[i], true
}

// IsExpert reports whether m appears in expert lists
func IsExpert(m types.Member) bool {
	role, ok := m.Role()
	return ok && (role == types.RoleExpert || role == types.RoleSupervisor)
}

// Distinct collects the unique values of field across members, sorted
func Distinct(members []types.Member, field func(types.Member) []string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, m := range members {
		for _, v := range field(m) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
