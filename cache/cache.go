// Package cache keeps per-session copies of user profiles and monthly shift maps so
// rendering does not round-trip to the gateway. Entries are never evicted; a new
// Cache is created for every session.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/shiftChat/gateway"
	"github.com/shiftChat/telemetry"
)

const (
	UnknownUserName = "Unknown user"
	DefaultAvatar   = "assets/images/default-avatar.png"
)

// Source is the subset of the gateway the cache reads from.
type Source interface {
	GetUser(ctx context.Context, uid string) (*gateway.User, error)
	ListUsers(ctx context.Context) ([]gateway.User, error)
	QueryShiftsInRange(ctx context.Context, userID, start, end string) ([]gateway.Shift, error)
}

type MonthKey struct {
	Year  int
	Month time.Month
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%d-%02d", k.Year, int(k.Month))
}

func monthKeyOf(date string) (MonthKey, error) {
	t, err := time.Parse(gateway.DateLayout, date)
	if err != nil {
		return MonthKey{}, err
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}, nil
}

type monthEntry struct {
	shifts map[string]gateway.Shift
	// complete is false when the entry only holds write-through saves and the
	// month has not been fetched yet.
	complete bool
}

type Cache struct {
	src Source

	mu     sync.Mutex
	users  map[string]gateway.User
	shifts map[MonthKey]*monthEntry
}

func New(src Source) *Cache {
	return &Cache{
		src:    src,
		users:  make(map[string]gateway.User),
		shifts: make(map[MonthKey]*monthEntry),
	}
}

// Placeholder is what message rendering shows for a sender that cannot be resolved.
func Placeholder(uid string) gateway.User {
	return gateway.User{UID: uid, DisplayName: UnknownUserName, PhotoURL: DefaultAvatar}
}

// LoadUsers fills the user cache from the full user list. Fetched users are merged
// over what is already cached.
func (c *Cache) LoadUsers(ctx context.Context) error {
	users, err := c.src.ListUsers(ctx)
	if err != nil {
		log.Errorf("unable to fetch user list: %s", err)
		telemetry.ReadError("ListUsers")
		return fmt.Errorf("cache.LoadUsers: %w", err)
	}
	if len(users) == 0 {
		log.Warn("user list is empty")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range users {
		if u.UID == "" {
			continue
		}
		c.users[u.UID] = u
	}
	log.WithField("users", len(c.users)).Debug("user cache refreshed")
	return nil
}

// GetUser returns the cached user, fetching it once on a miss. Missing users and
// fetch failures yield Placeholder(uid), which is not cached.
func (c *Cache) GetUser(ctx context.Context, uid string) gateway.User {
	c.mu.Lock()
	u, ok := c.users[uid]
	c.mu.Unlock()
	telemetry.CacheLookup("user", ok)
	if ok {
		return u
	}

	fetched, err := c.src.GetUser(ctx, uid)
	if err != nil {
		log.Errorf("unable to fetch user data for %s: %s", uid, err)
		telemetry.ReadError("GetUser")
		return Placeholder(uid)
	}
	if fetched == nil {
		return Placeholder(uid)
	}

	fetched.UID = uid
	c.mu.Lock()
	c.users[uid] = *fetched
	c.mu.Unlock()
	return *fetched
}

// Lookup returns the cached user without fetching.
func (c *Cache) Lookup(uid string) (gateway.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[uid]
	return u, ok
}

// PutUser merges a user record written by this session.
func (c *Cache) PutUser(u gateway.User) {
	if u.UID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	existing := c.users[u.UID]
	if u.DisplayName == "" {
		u.DisplayName = existing.DisplayName
	}
	if u.Email == "" {
		u.Email = existing.Email
	}
	if u.PhotoURL == "" {
		u.PhotoURL = existing.PhotoURL
	}
	if u.PushToken == "" {
		u.PushToken = existing.PushToken
	}
	if u.LastLogin.IsZero() {
		u.LastLogin = existing.LastLogin
	}
	c.users[u.UID] = u
}

// Users returns the cached users ordered by display name.
func (c *Cache) Users() []gateway.User {
	c.mu.Lock()
	users := make([]gateway.User, 0, len(c.users))
	for _, u := range c.users {
		users = append(users, u)
	}
	c.mu.Unlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].DisplayName == users[j].DisplayName {
			return users[i].UID < users[j].UID
		}
		return users[i].DisplayName < users[j].DisplayName
	})
	return users
}

func copyShifts(m map[string]gateway.Shift) map[string]gateway.Shift {
	out := make(map[string]gateway.Shift, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GetShiftsForMonth returns userID's shifts for the month keyed by date. A month is
// fetched with a single range query the first time it is requested. On failure the
// error is returned with an empty map and nothing is cached.
func (c *Cache) GetShiftsForMonth(ctx context.Context, userID string, year int, month time.Month) (map[string]gateway.Shift, error) {
	key := MonthKey{Year: year, Month: month}

	c.mu.Lock()
	entry, ok := c.shifts[key]
	if ok && entry.complete {
		out := copyShifts(entry.shifts)
		c.mu.Unlock()
		telemetry.CacheLookup("shift", true)
		return out, nil
	}
	c.mu.Unlock()
	telemetry.CacheLookup("shift", false)

	start, end := gateway.MonthRange(year, month)
	shifts, err := c.src.QueryShiftsInRange(ctx, userID, start, end)
	if err != nil {
		log.WithField("month", key.String()).Errorf("unable to fetch shifts: %s", err)
		telemetry.ReadError("QueryShiftsInRange")
		return map[string]gateway.Shift{}, fmt.Errorf("cache.GetShiftsForMonth %s: %w", key, err)
	}

	byDate := make(map[string]gateway.Shift, len(shifts))
	for _, s := range shifts {
		byDate[s.Date] = s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// saves that landed while the query was in flight are newer than the fetch
	if pending, ok := c.shifts[key]; ok {
		for date, s := range pending.shifts {
			byDate[date] = s
		}
	}
	c.shifts[key] = &monthEntry{shifts: byDate, complete: true}
	return copyShifts(byDate), nil
}

// MonthSnapshot returns whatever is cached for the month without fetching.
func (c *Cache) MonthSnapshot(year int, month time.Month) map[string]gateway.Shift {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.shifts[MonthKey{Year: year, Month: month}]
	if !ok {
		return map[string]gateway.Shift{}
	}
	return copyShifts(entry.shifts)
}

// PutShift writes a successfully saved shift through to its month entry.
func (c *Cache) PutShift(s gateway.Shift) error {
	key, err := monthKeyOf(s.Date)
	if err != nil {
		return fmt.Errorf("cache.PutShift: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.shifts[key]
	if !ok {
		entry = &monthEntry{shifts: make(map[string]gateway.Shift)}
		c.shifts[key] = entry
	}
	entry.shifts[s.Date] = s
	return nil
}
