package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"friendchat/internal/logging"
	"friendchat/internal/storage"
)

// FriendsKey is the storage key holding the friend list.
const FriendsKey = "chat_friends"

const (
	DefaultDescription = "A new friend"
	DefaultAPIID       = "default-api"
	DefaultModel       = "default-model"
)

var ErrFriendNotFound = errors.New("friend not found")

// Friend is a chat persona bound to a model and an API credential id.
type Friend struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPinned    bool   `json:"isPinned"`
	APIID       string `json:"apiId"`
	ModelName   string `json:"modelName"`
}

// FriendUpdate is a partial update; nil fields are left alone.
type FriendUpdate struct {
	Name        *string
	Description *string
	IsPinned    *bool
	APIID       *string
	ModelName   *string
}

// LoadFriends reads the friend list from kv. A missing key is an empty list.
// A malformed value is returned as an error and not repaired.
func LoadFriends(kv storage.KV) ([]Friend, error) {
	raw, ok, err := kv.Get(FriendsKey)
	if err != nil {
		return nil, fmt.Errorf("reading friends: %w", err)
	}
	if !ok || raw == "" {
		return []Friend{}, nil
	}
	var friends []Friend
	if err := json.Unmarshal([]byte(raw), &friends); err != nil {
		return nil, fmt.Errorf("parsing friends: %w", err)
	}
	if friends == nil {
		friends = []Friend{}
	}
	return friends, nil
}

// SaveFriends writes the whole list to kv.
func SaveFriends(kv storage.KV, friends []Friend) error {
	if friends == nil {
		friends = []Friend{}
	}
	data, err := json.Marshal(friends)
	if err != nil {
		return fmt.Errorf("marshaling friends: %w", err)
	}
	if err := kv.Set(FriendsKey, string(data)); err != nil {
		return fmt.Errorf("writing friends: %w", err)
	}
	return nil
}

// FriendsOptions configures a Friends store.
type FriendsOptions struct {
	DefaultAPIID string
	DefaultModel string
	Logger       *slog.Logger
	// Now returns the creation clock; defaults to time.Now.
	Now func() time.Time
}

// Friends is the ordered friend list plus the selection pointer. Pinned
// friends always form a contiguous prefix. Every mutation is persisted.
type Friends struct {
	mu       sync.Mutex
	kv       storage.KV
	list     []Friend
	selected int64 // 0 = none

	defaultAPIID string
	defaultModel string
	logger       *slog.Logger
	now          func() time.Time

	observers []func([]Friend)
}

func NewFriends(kv storage.KV, opts FriendsOptions) *Friends {
	f := &Friends{
		kv:           kv,
		list:         []Friend{},
		defaultAPIID: opts.DefaultAPIID,
		defaultModel: opts.DefaultModel,
		logger:       logging.OrDiscard(opts.Logger),
		now:          opts.Now,
	}
	if f.defaultAPIID == "" {
		f.defaultAPIID = DefaultAPIID
	}
	if f.defaultModel == "" {
		f.defaultModel = DefaultModel
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Load replaces the in-memory list with the stored one.
func (f *Friends) Load() error {
	list, err := LoadFriends(f.kv)
	if err != nil {
		f.logger.Error("loading friends failed", "error", err)
		return err
	}
	f.mu.Lock()
	f.list = list
	if f.selected != 0 && f.indexLocked(f.selected) < 0 {
		f.selected = 0
	}
	f.mu.Unlock()
	f.logger.Debug("friends loaded", "count", len(list))
	return nil
}

// OnChange registers fn to run after every persisted mutation with a copy of
// the list.
func (f *Friends) OnChange(fn func([]Friend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, fn)
}

// List returns a copy of the ordered list.
func (f *Friends) List() []Friend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Get returns the friend with id.
func (f *Friends) Get(id int64) (Friend, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return Friend{}, false
	}
	return f.list[i], true
}

// Find resolves a friend by exact name, then by numeric id, then by a
// case-insensitive name match.
func (f *Friends) Find(ref string) (Friend, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fr := range f.list {
		if fr.Name == ref {
			return fr, true
		}
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if i := f.indexLocked(id); i >= 0 {
			return f.list[i], true
		}
	}
	for _, fr := range f.list {
		if strings.EqualFold(fr.Name, ref) {
			return fr, true
		}
	}
	return Friend{}, false
}

// Selected returns the selected friend, if any.
func (f *Friends) Selected() (Friend, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selected == 0 {
		return Friend{}, false
	}
	i := f.indexLocked(f.selected)
	if i < 0 {
		return Friend{}, false
	}
	return f.list[i], true
}

// SelectedID returns the selected id, or 0.
func (f *Friends) SelectedID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selected
}

// Add appends a new friend with a deduplicated name and returns it.
func (f *Friends) Add(name string) (Friend, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Friend{}, errors.New("friend name is required")
	}

	var fr Friend
	err := f.mutate(func() (bool, error) {
		fr = Friend{
			ID:          f.nextIDLocked(),
			Name:        f.uniqueNameLocked(name),
			Description: DefaultDescription,
			APIID:       f.defaultAPIID,
			ModelName:   f.defaultModel,
		}
		f.list = append(f.list, fr)
		return true, nil
	})
	if err == nil {
		f.logger.Info("friend added", "id", fr.ID, "name", fr.Name)
	}
	return fr, err
}

// Select toggles the selection: selecting the selected friend clears it,
// otherwise the friend becomes selected and is moved to its group boundary.
func (f *Friends) Select(id int64) (selected bool, err error) {
	err = f.mutate(func() (bool, error) {
		if f.selected == id {
			f.selected = 0
			return false, nil
		}
		if f.indexLocked(id) < 0 {
			return false, ErrFriendNotFound
		}
		f.selected = id
		selected = true
		f.reorderLocked(id)
		return true, nil
	})
	return selected && err == nil, err
}

// Delete removes a friend and clears the selection if it pointed at it.
func (f *Friends) Delete(id int64) error {
	err := f.mutate(func() (bool, error) {
		i := f.indexLocked(id)
		if i < 0 {
			return false, ErrFriendNotFound
		}
		f.list = append(f.list[:i], f.list[i+1:]...)
		if f.selected == id {
			f.selected = 0
		}
		return true, nil
	})
	if err == nil {
		f.logger.Info("friend deleted", "id", id)
	}
	return err
}

// TogglePin flips the pinned flag and moves the friend to the boundary.
func (f *Friends) TogglePin(id int64) (pinned bool, err error) {
	err = f.mutate(func() (bool, error) {
		i := f.indexLocked(id)
		if i < 0 {
			return false, ErrFriendNotFound
		}
		f.list[i].IsPinned = !f.list[i].IsPinned
		pinned = f.list[i].IsPinned
		f.reorderLocked(id)
		return true, nil
	})
	return pinned, err
}

// Update merges u into the friend. Names are not re-deduplicated.
func (f *Friends) Update(id int64, u FriendUpdate) (updated Friend, err error) {
	err = f.mutate(func() (bool, error) {
		i := f.indexLocked(id)
		if i < 0 {
			return false, ErrFriendNotFound
		}
		fr := &f.list[i]
		if u.Name != nil {
			fr.Name = *u.Name
		}
		if u.Description != nil {
			fr.Description = *u.Description
		}
		if u.APIID != nil {
			fr.APIID = *u.APIID
		}
		if u.ModelName != nil {
			fr.ModelName = *u.ModelName
		}
		pinChanged := u.IsPinned != nil && *u.IsPinned != fr.IsPinned
		if u.IsPinned != nil {
			fr.IsPinned = *u.IsPinned
		}
		updated = *fr
		if pinChanged {
			f.reorderLocked(id)
		}
		return true, nil
	})
	return updated, err
}

// mutate runs fn under the lock and, when it reports a change, persists the
// list before releasing it. A failed save restores the list and selection from
// before fn ran. Observers run after the unlock so they may call back into the
// store.
func (f *Friends) mutate(fn func() (changed bool, err error)) error {
	f.mu.Lock()
	prevList, prevSelected := f.snapshotLocked(), f.selected
	changed, err := fn()
	if err != nil || !changed {
		f.mu.Unlock()
		return err
	}
	snap := f.snapshotLocked()
	if err := SaveFriends(f.kv, snap); err != nil {
		// Memory never runs ahead of the store.
		f.list, f.selected = prevList, prevSelected
		f.mu.Unlock()
		f.logger.Error("saving friends failed", "error", err)
		return err
	}
	observers := append([]func([]Friend){}, f.observers...)
	f.mu.Unlock()

	for _, obs := range observers {
		obs(snap)
	}
	return nil
}

// reorderLocked moves the friend to index 0 when pinned, or right after the
// last remaining pinned friend when not.
func (f *Friends) reorderLocked(id int64) {
	i := f.indexLocked(id)
	if i < 0 {
		return
	}
	fr := f.list[i]
	f.list = append(f.list[:i], f.list[i+1:]...)

	insert := 0
	if !fr.IsPinned {
		insert = lastPinnedIndex(f.list) + 1
	}
	f.list = append(f.list, Friend{})
	copy(f.list[insert+1:], f.list[insert:])
	f.list[insert] = fr
}

func lastPinnedIndex(list []Friend) int {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].IsPinned {
			return i
		}
	}
	return -1
}

func (f *Friends) uniqueNameLocked(base string) string {
	taken := make(map[string]bool, len(f.list))
	for _, fr := range f.list {
		taken[fr.Name] = true
	}
	name := base
	for n := 1; taken[name]; n++ {
		name = fmt.Sprintf("%s-%d", base, n)
	}
	return name
}

func (f *Friends) nextIDLocked() int64 {
	id := f.now().UnixMilli()
	for f.indexLocked(id) >= 0 {
		id++
	}
	return id
}

func (f *Friends) indexLocked(id int64) int {
	for i := range f.list {
		if f.list[i].ID == id {
			return i
		}
	}
	return -1
}

func (f *Friends) snapshotLocked() []Friend {
	out := make([]Friend, len(f.list))
	copy(out, f.list)
	return out
}
