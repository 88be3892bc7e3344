// Package topology resolves a rule's target (a device or a group) into the
// transitive set of concrete devices it covers, grounded on the original
// fetch_topology.rs device/group/link model (spec.md §3's EvaluableItem,
// SPEC_FULL.md §7).
package topology

import (
	"context"
	"fmt"

	"github.com/fleetalert/engine/internal/logging"
	"github.com/fleetalert/engine/internal/model"
)

// Resolver expands a rule target into the devices it applies to.
type Resolver interface {
	ResolveDevices(ctx context.Context, item model.EvaluableItem) ([]model.Device, error)
}

// ItemResolver resolves a rule's raw target-id into the EvaluableItem it
// names (spec.md §4.2's topology cache lookup, step 3).
type ItemResolver interface {
	ResolveItem(id int64) (model.EvaluableItem, bool)
}

// Store is the read-side contract a Resolver implementation is built on:
// the full device and group topology, refreshed out of band.
type Store interface {
	Devices(ctx context.Context) (map[int64]model.Device, error)
	// Groups returns every group's raw member ids; a member id may itself
	// be either a device id or a nested group id, resolved by
	// Cache.ResolveDevices.
	Groups(ctx context.Context) (map[int64][]int64, error)
}

// Cache is an in-memory Resolver snapshot, refreshed by the caller (e.g. on
// the same cadence as the rule cache). It recurses through nested groups,
// guarding against cycles, and skips unresolvable ids with a warning rather
// than failing the whole resolution (spec.md §4.2 "unresolvable ids are
// skipped with a warning").
type Cache struct {
	logger  *logging.Logger
	devices map[int64]model.Device
	groups  map[int64][]int64
}

// NewCache builds a Cache from a fully materialized device/group snapshot.
func NewCache(logger *logging.Logger, devices map[int64]model.Device, groups map[int64][]int64) *Cache {
	return &Cache{logger: logger, devices: devices, groups: groups}
}

// Load builds a new Cache from a device/group snapshot read from store.
func Load(ctx context.Context, logger *logging.Logger, store Store) (*Cache, error) {
	devices, err := store.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("topology: load devices: %w", err)
	}
	groups, err := store.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("topology: load groups: %w", err)
	}
	return &Cache{logger: logger, devices: devices, groups: groups}, nil
}

// ResolveItem resolves a rule's raw target-id into the EvaluableItem it
// names, checking the device namespace before the group namespace — the
// same order as the original's Cache::get_evaluable_item. ok is false when
// id matches neither.
func (c *Cache) ResolveItem(id int64) (model.EvaluableItem, bool) {
	if dev, ok := c.devices[id]; ok {
		return model.EvaluableItem{Device: dev}, true
	}
	if _, ok := c.groups[id]; ok {
		return model.EvaluableItem{IsGroup: true, Group: model.Group{ID: id}}, true
	}
	return model.EvaluableItem{}, false
}

// ResolveDevices expands item to its concrete device set. A device item
// yields itself; a group item yields its transitive device-id set, each
// resolved to a Device; groups that reach groups recurse.
func (c *Cache) ResolveDevices(ctx context.Context, item model.EvaluableItem) ([]model.Device, error) {
	if !item.IsGroup {
		dev, ok := c.devices[item.Device.ID]
		if !ok {
			c.warnf("target device %d not found in topology", item.Device.ID)
			return nil, nil
		}
		return []model.Device{dev}, nil
	}
	visited := make(map[int64]struct{})
	var out []model.Device
	c.expandGroup(item.Group.ID, visited, &out)
	return out, nil
}

func (c *Cache) expandGroup(groupID int64, visited map[int64]struct{}, out *[]model.Device) {
	if _, seen := visited[groupID]; seen {
		return
	}
	visited[groupID] = struct{}{}

	members, ok := c.groups[groupID]
	if !ok {
		c.warnf("group %d not found in topology", groupID)
		return
	}
	for _, memberID := range members {
		if dev, ok := c.devices[memberID]; ok {
			*out = append(*out, dev)
			continue
		}
		if _, ok := c.groups[memberID]; ok {
			c.expandGroup(memberID, visited, out)
			continue
		}
		c.warnf("group %d member %d resolves to neither a device nor a group", groupID, memberID)
	}
}

func (c *Cache) warnf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warnf(format, args...)
	}
}
