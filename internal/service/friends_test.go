package service

import (
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friendchat/internal/storage"
)

// fixedClock returns the same instant on every call so id bumping is exercised.
func fixedClock() func() time.Time {
	t := time.UnixMilli(1_700_000_000_000)
	return func() time.Time { return t }
}

func newTestFriends(t *testing.T) (*Friends, storage.KV) {
	t.Helper()
	kv := storage.NewMemory()
	f := NewFriends(kv, FriendsOptions{Now: fixedClock()})
	require.NoError(t, f.Load())
	return f, kv
}

func names(list []Friend) []string {
	out := make([]string, len(list))
	for i, f := range list {
		out[i] = f.Name
	}
	return out
}

func addAll(t *testing.T, f *Friends, ns ...string) []Friend {
	t.Helper()
	out := make([]Friend, len(ns))
	for i, n := range ns {
		fr, err := f.Add(n)
		require.NoError(t, err)
		out[i] = fr
	}
	return out
}

func TestFriendsAddDefaults(t *testing.T) {
	f, _ := newTestFriends(t)

	fr, err := f.Add("  Alice ")
	require.NoError(t, err)

	assert.Equal(t, "Alice", fr.Name)
	assert.Equal(t, DefaultDescription, fr.Description)
	assert.Equal(t, DefaultAPIID, fr.APIID)
	assert.Equal(t, DefaultModel, fr.ModelName)
	assert.False(t, fr.IsPinned)
	assert.Equal(t, int64(1_700_000_000_000), fr.ID)
}

func TestFriendsAddConfiguredDefaults(t *testing.T) {
	f := NewFriends(storage.NewMemory(), FriendsOptions{DefaultAPIID: "work", DefaultModel: "deepseek-r1"})

	fr, err := f.Add("Bob")
	require.NoError(t, err)
	assert.Equal(t, "work", fr.APIID)
	assert.Equal(t, "deepseek-r1", fr.ModelName)
}

func TestFriendsAddRejectsEmptyName(t *testing.T) {
	f, kv := newTestFriends(t)

	_, err := f.Add("   ")
	require.Error(t, err)
	assert.Empty(t, f.List())

	_, ok, err := kv.Get(FriendsKey)
	require.NoError(t, err)
	assert.False(t, ok, "a rejected add must not persist")
}

func TestFriendsAddDeduplicatesNames(t *testing.T) {
	f, _ := newTestFriends(t)

	added := addAll(t, f, "Alice", "Alice", "Alice", "Bob")

	assert.Equal(t, []string{"Alice", "Alice-1", "Alice-2", "Bob"}, names(f.List()))

	ids := map[int64]bool{}
	for _, fr := range added {
		assert.False(t, ids[fr.ID], "duplicate id %d", fr.ID)
		ids[fr.ID] = true
	}
}

func TestFriendsRenameIsNotDeduplicated(t *testing.T) {
	f, _ := newTestFriends(t)
	added := addAll(t, f, "Alice", "Bob")

	name := "Alice"
	_, err := f.Update(added[1].ID, FriendUpdate{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, []string{"Alice", "Alice"}, names(f.List()))
}

func TestFriendsSelectToggles(t *testing.T) {
	f, _ := newTestFriends(t)
	added := addAll(t, f, "Alice", "Bob")

	on, err := f.Select(added[1].ID)
	require.NoError(t, err)
	assert.True(t, on)
	sel, ok := f.Selected()
	require.True(t, ok)
	assert.Equal(t, "Bob", sel.Name)

	on, err = f.Select(added[1].ID)
	require.NoError(t, err)
	assert.False(t, on)
	_, ok = f.Selected()
	assert.False(t, ok)
	assert.Zero(t, f.SelectedID())
}

func TestFriendsSelectUnknown(t *testing.T) {
	f, _ := newTestFriends(t)
	_, err := f.Select(42)
	assert.ErrorIs(t, err, ErrFriendNotFound)
}

func TestFriendsSelectMovesToGroupBoundary(t *testing.T) {
	f, _ := newTestFriends(t)
	added := addAll(t, f, "A", "B", "C", "D")
	_, err := f.TogglePin(added[0].ID)
	require.NoError(t, err)

	_, err = f.Select(added[3].ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "D", "B", "C"}, names(f.List()))
}

func TestFriendsDeleteClearsSelection(t *testing.T) {
	f, _ := newTestFriends(t)
	added := addAll(t, f, "Alice", "Bob")
	_, err := f.Select(added[0].ID)
	require.NoError(t, err)

	require.NoError(t, f.Delete(added[0].ID))

	assert.Equal(t, []string{"Bob"}, names(f.List()))
	assert.Zero(t, f.SelectedID())
	assert.ErrorIs(t, f.Delete(added[0].ID), ErrFriendNotFound)
}

func TestFriendsDeleteKeepsOtherSelection(t *testing.T) {
	f, _ := newTestFriends(t)
	added := addAll(t, f, "Alice", "Bob")
	_, err := f.Select(added[1].ID)
	require.NoError(t, err)

	require.NoError(t, f.Delete(added[0].ID))
	assert.Equal(t, added[1].ID, f.SelectedID())
}

func TestFriendsPinOrdering(t *testing.T) {
	tests := []struct {
		name string
		pins []int // indexes into the added list, toggled in order
		want []string
	}{
		{"pin last moves to front", []int{3}, []string{"D", "A", "B", "C"}},
		{"second pin goes to front", []int{2, 3}, []string{"D", "C", "A", "B"}},
		{"unpin goes after last pinned", []int{1, 2, 3, 3}, []string{"C", "B", "D", "A"}},
		{"unpin only pinned goes to front of unpinned", []int{2, 2}, []string{"C", "A", "B", "D"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newTestFriends(t)
			added := addAll(t, f, "A", "B", "C", "D")
			for _, i := range tt.pins {
				_, err := f.TogglePin(added[i].ID)
				require.NoError(t, err)
			}
			if diff := cmp.Diff(tt.want, names(f.List())); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFriendsPinnedPrefixInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		f, _ := newTestFriends(t)
		added := addAll(t, f, "a", "b", "c", "d", "e", "f", "g")

		for step := 0; step < 40; step++ {
			id := added[rng.Intn(len(added))].ID
			switch rng.Intn(3) {
			case 0:
				_, err := f.TogglePin(id)
				require.NoError(t, err)
			case 1:
				_, err := f.Select(id)
				require.NoError(t, err)
			case 2:
				pin := rng.Intn(2) == 0
				_, err := f.Update(id, FriendUpdate{IsPinned: &pin})
				require.NoError(t, err)
			}

			list := f.List()
			require.Len(t, list, len(added))
			seenUnpinned := false
			for _, fr := range list {
				if !fr.IsPinned {
					seenUnpinned = true
				} else if seenUnpinned {
					t.Fatalf("round %d step %d: pinned friend %q after an unpinned one: %v", round, step, fr.Name, names(list))
				}
			}
		}
	}
}

func TestFriendsUpdate(t *testing.T) {
	f, _ := newTestFriends(t)
	added := addAll(t, f, "Alice")

	model, api, desc := "doubao-pro", "work", "Talks about Go"
	got, err := f.Update(added[0].ID, FriendUpdate{ModelName: &model, APIID: &api, Description: &desc})
	require.NoError(t, err)

	want := added[0]
	want.ModelName, want.APIID, want.Description = model, api, desc
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Update() mismatch (-want +got):\n%s", diff)
	}
	stored, ok := f.Get(added[0].ID)
	require.True(t, ok)
	assert.Equal(t, want, stored)
}

func TestFriendsUpdateUnknownChangesNothing(t *testing.T) {
	f, _ := newTestFriends(t)
	addAll(t, f, "Alice")
	before := f.List()

	name := "x"
	_, err := f.Update(999, FriendUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrFriendNotFound)
	assert.Equal(t, before, f.List())
}

func TestFriendsFind(t *testing.T) {
	f, _ := newTestFriends(t)
	added := addAll(t, f, "Alice", "bob")

	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"Alice", "Alice", true},
		{"alice", "Alice", true},
		{"BOB", "bob", true},
		{strings.TrimSpace(" 1700000000001 "), "bob", true},
		{"carol", "", false},
	}
	require.Equal(t, int64(1_700_000_000_001), added[1].ID)

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, ok := f.Find(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestFriendsPersistEveryMutation(t *testing.T) {
	f, kv := newTestFriends(t)
	added := addAll(t, f, "Alice", "Bob")
	_, err := f.TogglePin(added[1].ID)
	require.NoError(t, err)

	stored, err := LoadFriends(kv)
	require.NoError(t, err)
	if diff := cmp.Diff(f.List(), stored); diff != "" {
		t.Errorf("stored list mismatch (-mem +kv):\n%s", diff)
	}
}

func TestFriendsSurviveReopen(t *testing.T) {
	for _, backend := range []string{storage.BackendJSON, storage.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "friends."+backend)

			kv, err := storage.Open(backend, path)
			require.NoError(t, err)
			f := NewFriends(kv, FriendsOptions{})
			require.NoError(t, f.Load())
			added := addAll(t, f, "Alice", "Alice", "Bob")
			_, err = f.TogglePin(added[2].ID)
			require.NoError(t, err)
			want := f.List()
			require.NoError(t, kv.Close())

			kv, err = storage.Open(backend, path)
			require.NoError(t, err)
			defer kv.Close()
			reopened := NewFriends(kv, FriendsOptions{})
			require.NoError(t, reopened.Load())

			if diff := cmp.Diff(want, reopened.List()); diff != "" {
				t.Errorf("reloaded list mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFriendsStoredShape(t *testing.T) {
	f, kv := newTestFriends(t)
	addAll(t, f, "Alice")

	raw, ok, err := kv.Get(FriendsKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":1700000000000,"name":"Alice","description":"A new friend","isPinned":false,"apiId":"default-api","modelName":"default-model"}]`, raw)
}

func TestLoadFriendsMalformed(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(FriendsKey, `{"not":"a list"}`))

	_, err := LoadFriends(kv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing friends")

	f := NewFriends(kv, FriendsOptions{})
	assert.Error(t, f.Load())
}

func TestLoadFriendsMissingKey(t *testing.T) {
	list, err := LoadFriends(storage.NewMemory())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestFriendsSaveErrorIsReturned(t *testing.T) {
	kv := storage.NewMemory()
	f := NewFriends(kv, FriendsOptions{})
	require.NoError(t, kv.Close())

	_, err := f.Add("Alice")
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.Empty(t, f.List(), "failed add is rolled back")
}

// failingKV accepts writes until fail is set.
type failingKV struct {
	storage.KV
	fail bool
}

func (k *failingKV) Set(key, value string) error {
	if k.fail {
		return errors.New("disk full")
	}
	return k.KV.Set(key, value)
}

func TestFriendsSaveErrorRollsBack(t *testing.T) {
	kv := &failingKV{KV: storage.NewMemory()}
	f := NewFriends(kv, FriendsOptions{Now: fixedClock()})
	a, err := f.Add("Alice")
	require.NoError(t, err)
	b, err := f.Add("Bob")
	require.NoError(t, err)
	_, err = f.Select(a.ID)
	require.NoError(t, err)

	var notified int
	f.OnChange(func([]Friend) { notified++ })
	before := f.List()
	kv.fail = true

	_, err = f.TogglePin(b.ID)
	assert.Error(t, err)
	_, err = f.Select(b.ID)
	assert.Error(t, err)
	assert.Error(t, f.Delete(a.ID))
	name := "Alicia"
	_, err = f.Update(a.ID, FriendUpdate{Name: &name})
	assert.Error(t, err)

	if diff := cmp.Diff(before, f.List()); diff != "" {
		t.Errorf("list changed after failed saves (-want +got):\n%s", diff)
	}
	assert.Equal(t, a.ID, f.SelectedID())
	assert.Zero(t, notified, "observers only see persisted lists")

	stored, err := LoadFriends(kv)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(before, stored))
}

func TestFriendsOnChange(t *testing.T) {
	f, _ := newTestFriends(t)

	var calls int
	var lastLen int
	f.OnChange(func(list []Friend) {
		calls++
		// observers may call back into the store
		lastLen = len(f.List())
		assert.Equal(t, len(list), lastLen)
	})

	added := addAll(t, f, "Alice", "Bob")
	_, err := f.TogglePin(added[1].ID)
	require.NoError(t, err)
	_, err = f.Select(added[0].ID)
	require.NoError(t, err)
	_, err = f.Select(added[0].ID) // deselect does not persist
	require.NoError(t, err)

	assert.Equal(t, 4, calls)
	assert.Equal(t, 2, lastLen)
}
