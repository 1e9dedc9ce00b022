// Package storage persists the device inventory. The import pipeline
// writes through UpsertDevice so re-importing the same workbook never
// creates duplicate rows.
package storage

import (
	"errors"

	"github.com/onliops/inventoryd/internal/model"
)

var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrProjectNotFound  = errors.New("project not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// DefaultProjectID is the project used when a request carries no project
// scope of its own.
const DefaultProjectID = "default"

// Storage defines the inventory persistence interface.
type Storage interface {
	ListDevices(filter *model.DeviceFilter) ([]model.Device, error)
	GetDevice(id string) (*model.Device, error)
	DeleteDevice(id string) error

	// UpsertDevice inserts the device, or updates the existing row when
	// the project already holds a device at the same IP address. The
	// device's ID is set to the stored row's ID either way.
	UpsertDevice(device *model.Device) error

	// FindDevices returns the project's devices matching any of the
	// given IPs or serial numbers.
	FindDevices(projectID string, ips, serials []string) ([]model.Device, error)

	ListCategories() ([]model.Category, error)
	CategoryBySlug(slug string) (*model.Category, error)

	GetProject(id string) (*model.Project, error)

	// DefaultVLAN returns the project's lowest-numbered VLAN, nil when
	// the project has none.
	DefaultVLAN(projectID string) (*model.VLAN, error)

	Close() error
}
