package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/onliops/inventoryd/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStorage implements Storage with a SQLite backend.
type SQLiteStorage struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens (or creates) the inventory database under dataDir.
func NewSQLiteStorage(dataDir string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "devices.db")

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ss := &SQLiteStorage{
		db:   db,
		path: dbPath,
	}

	if err := ss.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return ss, nil
}

func (ss *SQLiteStorage) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	_, err = ss.db.Exec(string(schema))
	return err
}

// Close closes the database connection.
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

const deviceColumns = `id, serial_number, ip_address, mac_address, model, manufacturer,
	device_type, category_id, firmware_version, hostname, status, vlan_id,
	notes, project_id, created_at, updated_at`

// ListDevices returns devices matching the filter, newest first.
func (ss *SQLiteStorage) ListDevices(filter *model.DeviceFilter) ([]model.Device, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	query := `SELECT ` + deviceColumns + ` FROM network_devices`
	var clauses []string
	var args []interface{}

	if filter != nil {
		if filter.ProjectID != "" {
			clauses = append(clauses, "project_id = ?")
			args = append(args, filter.ProjectID)
		}
		if filter.Status != "" {
			clauses = append(clauses, "status = ?")
			args = append(args, filter.Status)
		}
		if filter.DeviceType != "" {
			clauses = append(clauses, "device_type = ?")
			args = append(args, filter.DeviceType)
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := ss.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// GetDevice retrieves a device by ID.
func (ss *SQLiteStorage) GetDevice(id string) (*model.Device, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	row := ss.db.QueryRow(`SELECT `+deviceColumns+` FROM network_devices WHERE id = ?`, id)
	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return device, nil
}

// DeleteDevice removes a device by ID.
func (ss *SQLiteStorage) DeleteDevice(id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	res, err := ss.db.Exec(`DELETE FROM network_devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// UpsertDevice inserts the device, or updates the project's existing row
// at the same IP. Serial-only devices always insert because a NULL IP
// never conflicts.
func (ss *SQLiteStorage) UpsertDevice(device *model.Device) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := time.Now()
	if device.ID == "" {
		device.ID = newID()
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	row := ss.db.QueryRow(`
		INSERT INTO network_devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ip_address, project_id) DO UPDATE SET
			serial_number = excluded.serial_number,
			mac_address = excluded.mac_address,
			model = excluded.model,
			manufacturer = excluded.manufacturer,
			device_type = excluded.device_type,
			category_id = excluded.category_id,
			firmware_version = excluded.firmware_version,
			hostname = excluded.hostname,
			status = excluded.status,
			vlan_id = excluded.vlan_id,
			notes = excluded.notes,
			updated_at = excluded.updated_at
		RETURNING id, created_at`,
		device.ID, nullable(device.SerialNumber), nullable(device.IPAddress),
		nullable(device.MACAddress), nullable(device.Model), nullable(device.Manufacturer),
		nullable(device.DeviceType), nullable(device.CategoryID), nullable(device.FirmwareVersion),
		nullable(device.Hostname), device.Status, nullable(device.VLANID),
		nullable(device.Notes), device.ProjectID,
		device.CreatedAt.Unix(), device.UpdatedAt.Unix(),
	)

	var createdAt int64
	if err := row.Scan(&device.ID, &createdAt); err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	device.CreatedAt = time.Unix(createdAt, 0)
	return nil
}

// FindDevices returns the project's devices whose IP or serial number
// appears in the given lists.
func (ss *SQLiteStorage) FindDevices(projectID string, ips, serials []string) ([]model.Device, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	if len(ips) == 0 && len(serials) == 0 {
		return nil, nil
	}

	args := []interface{}{projectID}
	var matchers []string
	if len(ips) > 0 {
		matchers = append(matchers, "ip_address IN ("+placeholders(len(ips))+")")
		for _, ip := range ips {
			args = append(args, ip)
		}
	}
	if len(serials) > 0 {
		matchers = append(matchers, "serial_number IN ("+placeholders(len(serials))+")")
		for _, s := range serials {
			args = append(args, s)
		}
	}

	query := `SELECT ` + deviceColumns + ` FROM network_devices
		WHERE project_id = ? AND (` + strings.Join(matchers, " OR ") + `)`

	rows, err := ss.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// ListCategories returns all device categories ordered by slug.
func (ss *SQLiteStorage) ListCategories() ([]model.Category, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`SELECT id, slug, name FROM device_categories ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CategoryBySlug looks a category up by its slug.
func (ss *SQLiteStorage) CategoryBySlug(slug string) (*model.Category, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var c model.Category
	err := ss.db.QueryRow(`SELECT id, slug, name FROM device_categories WHERE slug = ?`, slug).
		Scan(&c.ID, &c.Slug, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying category: %w", err)
	}
	return &c, nil
}

// GetProject retrieves a project by ID.
func (ss *SQLiteStorage) GetProject(id string) (*model.Project, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var p model.Project
	var created, updated int64
	err := ss.db.QueryRow(`SELECT id, name, created_at, updated_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}
	p.CreatedAt = time.Unix(created, 0)
	p.UpdatedAt = time.Unix(updated, 0)
	return &p, nil
}

// DefaultVLAN returns the project's lowest-numbered VLAN, nil when the
// project has none.
func (ss *SQLiteStorage) DefaultVLAN(projectID string) (*model.VLAN, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var v model.VLAN
	err := ss.db.QueryRow(`SELECT id, project_id, vlan_id, name FROM vlans
		WHERE project_id = ? ORDER BY vlan_id LIMIT 1`, projectID).
		Scan(&v.ID, &v.ProjectID, &v.VLANID, &v.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying vlans: %w", err)
	}
	return &v, nil
}

// CreateVLAN adds a VLAN to a project.
func (ss *SQLiteStorage) CreateVLAN(projectID string, vlanID int, name string) (*model.VLAN, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	v := model.VLAN{ID: newID(), ProjectID: projectID, VLANID: vlanID, Name: name}
	_, err := ss.db.Exec(`INSERT INTO vlans (id, project_id, vlan_id, name) VALUES (?, ?, ?, ?)`,
		v.ID, v.ProjectID, v.VLANID, v.Name)
	if err != nil {
		return nil, fmt.Errorf("creating vlan: %w", err)
	}
	return &v, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*model.Device, error) {
	var d model.Device
	var serial, ip, mac, devModel, manufacturer, deviceType sql.NullString
	var categoryID, firmware, hostname, vlanID, notes sql.NullString
	var created, updated int64

	err := row.Scan(&d.ID, &serial, &ip, &mac, &devModel, &manufacturer,
		&deviceType, &categoryID, &firmware, &hostname, &d.Status, &vlanID,
		&notes, &d.ProjectID, &created, &updated)
	if err != nil {
		return nil, err
	}

	d.SerialNumber = serial.String
	d.IPAddress = ip.String
	d.MACAddress = mac.String
	d.Model = devModel.String
	d.Manufacturer = manufacturer.String
	d.DeviceType = deviceType.String
	d.CategoryID = categoryID.String
	d.FirmwareVersion = firmware.String
	d.Hostname = hostname.String
	d.VLANID = vlanID.String
	d.Notes = notes.String
	d.CreatedAt = time.Unix(created, 0)
	d.UpdatedAt = time.Unix(updated, 0)
	return &d, nil
}

func scanDevices(rows *sql.Rows) ([]model.Device, error) {
	var devices []model.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
