package repository

import (
	"database/sql"
	"fmt"

	"wisefido-band/internal/models"

	"go.uber.org/zap"
)

// DeviceRepository 手环设备记录仓库
// 只保存上次成功连接的设备，用于启动时重连
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertDevice 每次成功连接后写入/更新设备记录
func (r *DeviceRepository) UpsertDevice(device *models.Device) error {
	query := `
		INSERT INTO band_devices (mac, name, last_connected_at, firmware_version, hardware_version)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mac) DO UPDATE SET
			name = EXCLUDED.name,
			last_connected_at = EXCLUDED.last_connected_at,
			firmware_version = EXCLUDED.firmware_version,
			hardware_version = EXCLUDED.hardware_version
	`

	if _, err := r.db.Exec(query,
		device.MAC, device.Name, device.LastConnectedAt,
		device.FirmwareVersion, device.HardwareVersion,
	); err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

// GetLastDevice 最近一次连接的设备，没有时返回 nil
func (r *DeviceRepository) GetLastDevice() (*models.Device, error) {
	query := `
		SELECT mac, name, last_connected_at, firmware_version, hardware_version
		FROM band_devices
		ORDER BY last_connected_at DESC
		LIMIT 1
	`

	device := &models.Device{}
	err := r.db.QueryRow(query).Scan(
		&device.MAC, &device.Name, &device.LastConnectedAt,
		&device.FirmwareVersion, &device.HardwareVersion,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last device: %w", err)
	}

	return device, nil
}

// DeleteDevice 用户显式解绑时删除设备记录
func (r *DeviceRepository) DeleteDevice(mac string) error {
	if _, err := r.db.Exec(`DELETE FROM band_devices WHERE mac = $1`, mac); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}
