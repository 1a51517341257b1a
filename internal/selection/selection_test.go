package selection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-syncer/internal/media"
)

func items(ids ...string) media.Snapshot {
	out := make(media.Snapshot, len(ids))
	for i, id := range ids {
		out[i] = media.Item{ID: id, Kind: media.KindImage}
	}
	return out
}

func approve(ctx context.Context, n int) (bool, error) { return true, nil }

func TestToggleMode_OnOffClearsSelection(t *testing.T) {
	c := New()
	c.SetItems(items("a", "b", "c"))
	c.ToggleMode()
	c.ToggleItem("a")
	c.ToggleItem("c")
	require.Equal(t, 2, c.Count())

	c.ToggleMode()
	assert.Equal(t, State{Active: false, Selected: []string{}}, c.State())
}

func TestToggleItem(t *testing.T) {
	c := New()
	c.SetItems(items("a", "b"))

	c.ToggleItem("a")
	assert.Zero(t, c.Count(), "toggling outside selection mode does nothing")

	c.ToggleMode()
	c.ToggleItem("a")
	assert.True(t, c.IsSelected("a"))
	c.ToggleItem("a")
	assert.False(t, c.IsSelected("a"))

	c.ToggleItem("zzz")
	assert.Zero(t, c.Count(), "unknown ids are not selectable")
}

func TestSetItems_PrunesVanishedIDs(t *testing.T) {
	c := New()
	c.SetItems(items("a", "b", "c"))
	c.ToggleMode()
	c.ToggleItem("a")
	c.ToggleItem("b")

	c.SetItems(items("b", "c"))
	assert.Equal(t, []string{"b"}, c.Selected())
	assert.True(t, c.Active())
}

func TestBatchDelete_PartialFailureStillClears(t *testing.T) {
	c := New()
	c.SetItems(items("a", "b", "c"))
	c.ToggleMode()
	for _, id := range []string{"a", "b", "c"} {
		c.ToggleItem(id)
	}

	var mu sync.Mutex
	var calls []string
	del := DeleterFunc(func(ctx context.Context, id string) error {
		mu.Lock()
		calls = append(calls, id)
		mu.Unlock()
		if id == "b" {
			return errors.New("500 internal server error")
		}
		return nil
	})

	out, ok, err := c.BatchDelete(context.Background(), ConfirmFunc(approve), del)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "b", out.Failures[0].ID)
	assert.ElementsMatch(t, []string{"a", "c"}, out.Deleted)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, calls)

	assert.False(t, c.Active())
	assert.Zero(t, c.Count())
}

func TestBatchDelete_DeclinedKeepsSelection(t *testing.T) {
	c := New()
	c.SetItems(items("a"))
	c.ToggleMode()
	c.ToggleItem("a")

	decline := ConfirmFunc(func(ctx context.Context, n int) (bool, error) {
		assert.Equal(t, 1, n)
		return false, nil
	})
	_, ok, err := c.BatchDelete(context.Background(), decline, DeleterFunc(func(ctx context.Context, id string) error {
		t.Fatal("delete must not run without confirmation")
		return nil
	}))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, c.Active())
	assert.Equal(t, []string{"a"}, c.Selected())
}

func TestBatchDelete_EmptySelection(t *testing.T) {
	c := New()
	c.ToggleMode()
	_, ok, err := c.BatchDelete(context.Background(), ConfirmFunc(func(ctx context.Context, n int) (bool, error) {
		t.Fatal("no prompt for an empty selection")
		return true, nil
	}), DeleterFunc(func(ctx context.Context, id string) error { return nil }))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestBatchDownload_KeepsSelection(t *testing.T) {
	c := New()
	c.SetItems(items("a", "b"))
	c.ToggleMode()
	c.ToggleItem("a")
	c.ToggleItem("b")

	out := c.BatchDownload(context.Background(), DownloaderFunc(func(ctx context.Context, id string) error {
		if id == "a" {
			return errors.New("disk full")
		}
		return nil
	}))
	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.True(t, c.Active())
	assert.Equal(t, 2, c.Count())
}
