package model

import (
	"time"
)

// Device represents a network device row in inventory storage.
type Device struct {
	ID              string    `json:"id"`
	SerialNumber    string    `json:"serial_number,omitempty"`
	IPAddress       string    `json:"ip_address,omitempty"`
	MACAddress      string    `json:"mac_address,omitempty"`
	Model           string    `json:"model,omitempty"`
	Manufacturer    string    `json:"manufacturer,omitempty"`
	DeviceType      string    `json:"device_type,omitempty"`
	CategoryID      string    `json:"category_id,omitempty"`
	FirmwareVersion string    `json:"firmware_version,omitempty"`
	Hostname        string    `json:"hostname,omitempty"`
	Status          string    `json:"status"`
	VLANID          string    `json:"vlan_id,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	ProjectID       string    `json:"project_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Category is a device category (camera, switch, ...).
type Category struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// VLAN is a network segment owned by a project.
type VLAN struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	VLANID    int    `json:"vlan_id"`
	Name      string `json:"name"`
}

// Project is a tenant scope. Every device, VLAN and import session
// belongs to exactly one project.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeviceFilter holds filter criteria for listing devices.
type DeviceFilter struct {
	ProjectID  string
	Status     string
	DeviceType string
}
