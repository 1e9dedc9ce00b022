package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/onliops/inventoryd/internal/model"
	"github.com/onliops/inventoryd/internal/storage"
)

// mockStorage is an in-memory Storage used by handler tests.
type mockStorage struct {
	mu         sync.Mutex
	devices    map[string]model.Device
	categories []model.Category
	projects   map[string]model.Project
	vlans      []model.VLAN
	nextID     int

	failWith error
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		devices: map[string]model.Device{},
		categories: []model.Category{
			{ID: "cat-camera", Slug: "camera", Name: "Cameras"},
			{ID: "cat-switch", Slug: "switch", Name: "Switches"},
			{ID: "cat-other", Slug: "other", Name: "Other"},
		},
		projects: map[string]model.Project{
			storage.DefaultProjectID: {ID: storage.DefaultProjectID, Name: "Default Project"},
		},
	}
}

func (m *mockStorage) ListDevices(filter *model.DeviceFilter) ([]model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	var out []model.Device
	for _, d := range m.devices {
		if filter != nil {
			if filter.ProjectID != "" && d.ProjectID != filter.ProjectID {
				continue
			}
			if filter.Status != "" && d.Status != filter.Status {
				continue
			}
			if filter.DeviceType != "" && d.DeviceType != filter.DeviceType {
				continue
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *mockStorage) GetDevice(id string) (*model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[id]; ok {
		clone := d
		return &clone, nil
	}
	return nil, storage.ErrDeviceNotFound
}

func (m *mockStorage) DeleteDevice(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return storage.ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

func (m *mockStorage) UpsertDevice(device *model.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}

	if device.IPAddress != "" {
		for id, d := range m.devices {
			if d.IPAddress == device.IPAddress && d.ProjectID == device.ProjectID {
				device.ID = id
				device.CreatedAt = d.CreatedAt
				device.UpdatedAt = time.Now()
				m.devices[id] = *device
				return nil
			}
		}
	}

	m.nextID++
	device.ID = fmt.Sprintf("dev-%d", m.nextID)
	device.CreatedAt = time.Now()
	device.UpdatedAt = device.CreatedAt
	m.devices[device.ID] = *device
	return nil
}

func (m *mockStorage) FindDevices(projectID string, ips, serials []string) ([]model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ipSet := map[string]bool{}
	for _, ip := range ips {
		ipSet[ip] = true
	}
	serialSet := map[string]bool{}
	for _, s := range serials {
		serialSet[s] = true
	}

	var out []model.Device
	for _, d := range m.devices {
		if d.ProjectID != projectID {
			continue
		}
		if ipSet[d.IPAddress] || serialSet[d.SerialNumber] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockStorage) ListCategories() ([]model.Category, error) {
	return m.categories, nil
}

func (m *mockStorage) CategoryBySlug(slug string) (*model.Category, error) {
	for _, c := range m.categories {
		if c.Slug == slug {
			clone := c
			return &clone, nil
		}
	}
	return nil, storage.ErrCategoryNotFound
}

func (m *mockStorage) GetProject(id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; ok {
		clone := p
		return &clone, nil
	}
	return nil, storage.ErrProjectNotFound
}

func (m *mockStorage) DefaultVLAN(projectID string) (*model.VLAN, error) {
	var best *model.VLAN
	for i := range m.vlans {
		v := &m.vlans[i]
		if v.ProjectID != projectID {
			continue
		}
		if best == nil || v.VLANID < best.VLANID {
			best = v
		}
	}
	if best == nil {
		return nil, nil
	}
	clone := *best
	return &clone, nil
}

func (m *mockStorage) Close() error { return nil }
