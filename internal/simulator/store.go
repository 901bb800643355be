package simulator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/berfenger/homedash/internal/core/domain"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrSceneNotFound  = errors.New("scene not found")
	ErrWrongType      = errors.New("device has the wrong type")
)

const (
	TEMPERATURE_SENSOR_ID = 3

	metaDailyEnergy = "daily_energy"
	metaEnergyDay   = "energy_day"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	state TEXT NOT NULL,
	value REAL,
	device_mode TEXT,
	light_effect TEXT,
	ac_mode TEXT,
	power_consumption REAL,
	battery_level REAL
);
CREATE TABLE IF NOT EXISTS scenes (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	actions TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

type seedDevice struct {
	name    string
	devType domain.DeviceType
	state   string
	value   *float64
	mode    string
	effect  string
	acMode  string
	power   *float64
	battery *float64
}

var seedDevices = []seedDevice{
	{name: "Light", devType: domain.DEVICE_TYPE_LIGHT, state: "off", effect: "natural", power: domain.Float(9)},
	{name: "Fan", devType: domain.DEVICE_TYPE_FAN, state: "off", value: domain.Float(0), power: domain.Float(35)},
	{name: "Temperature", devType: domain.DEVICE_TYPE_SENSOR, state: "on", value: domain.Float(26)},
	{name: "Air Conditioner", devType: domain.DEVICE_TYPE_AC, state: "off", value: domain.Float(24), acMode: "cool", power: domain.Float(1200)},
	{name: "Smart Lock", devType: domain.DEVICE_TYPE_LOCK, state: "on", mode: "locked", battery: domain.Float(85)},
	{name: "Blinds", devType: domain.DEVICE_TYPE_BLINDS, state: "on", value: domain.Float(100), power: domain.Float(20)},
	{name: "Smart Plug", devType: domain.DEVICE_TYPE_PLUG, state: "off", power: domain.Float(60)},
	{name: "Camera", devType: domain.DEVICE_TYPE_CAMERA, state: "on", mode: "idle", power: domain.Float(5)},
	{name: "Speaker", devType: domain.DEVICE_TYPE_SPEAKER, state: "off", value: domain.Float(30), mode: "bluetooth", power: domain.Float(15)},
	{name: "Garage Door", devType: domain.DEVICE_TYPE_GARAGE, state: "on", mode: "closed"},
	{name: "Thermostat", devType: domain.DEVICE_TYPE_THERMOSTAT, state: "on", value: domain.Float(21), mode: "heat", power: domain.Float(3)},
	{name: "Robot Vacuum", devType: domain.DEVICE_TYPE_VACUUM, state: "off", mode: "auto", power: domain.Float(30), battery: domain.Float(100)},
	{name: "Doorbell", devType: domain.DEVICE_TYPE_DOORBELL, state: "on", mode: "idle", battery: domain.Float(90)},
	{name: "Sprinkler", devType: domain.DEVICE_TYPE_SPRINKLER, state: "off", mode: "zone1", power: domain.Float(40)},
	{name: "Motion Sensor", devType: domain.DEVICE_TYPE_MOTION, state: "on", mode: "idle", battery: domain.Float(70)},
	{name: "TV", devType: domain.DEVICE_TYPE_TV, state: "off", value: domain.Float(20), mode: "hdmi1", power: domain.Float(110)},
}

var seedScenes = []domain.Scene{
	{
		Name: "Good Morning", Description: "Lights on, blinds up, heating on", Icon: "bi-sunrise",
		Actions: []domain.SceneAction{
			{DeviceId: 1, State: "on"},
			{DeviceId: 6, State: "on", Value: domain.Float(100)},
			{DeviceId: 11, State: "on", Value: domain.Float(21), Mode: "heat"},
		},
	},
	{
		Name: "Good Night", Description: "Everything off, doors locked, camera recording", Icon: "bi-moon",
		Actions: []domain.SceneAction{
			{DeviceId: 1, State: "off"},
			{DeviceId: 16, State: "off"},
			{DeviceId: 6, State: "off", Value: domain.Float(0)},
			{DeviceId: 5, Mode: "locked"},
			{DeviceId: 8, Mode: "recording"},
		},
	},
	{
		Name: "Movie Time", Description: "TV on, blinds down, speaker up", Icon: "bi-film",
		Actions: []domain.SceneAction{
			{DeviceId: 16, State: "on", Mode: "netflix"},
			{DeviceId: 6, State: "off", Value: domain.Float(0)},
			{DeviceId: 9, State: "on", Value: domain.Float(40)},
			{DeviceId: 1, State: "off"},
		},
	},
}

// Store keeps simulated device state in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		return fmt.Errorf("counting devices: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck
	for i, d := range seedDevices {
		_, err := tx.ExecContext(ctx, `INSERT INTO devices
			(id, name, type, state, value, device_mode, light_effect, ac_mode, power_consumption, battery_level)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i+1, d.name, string(d.devType), d.state, nullFloat(d.value), nullString(d.mode),
			nullString(d.effect), nullString(d.acMode), nullFloat(d.power), nullFloat(d.battery))
		if err != nil {
			return fmt.Errorf("seeding devices: %w", err)
		}
	}
	for i, sc := range seedScenes {
		actions, err := json.Marshal(sc.Actions)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO scenes (id, name, description, icon, actions) VALUES (?, ?, ?, ?, ?)",
			i+1, sc.Name, sc.Description, sc.Icon, string(actions)); err != nil {
			return fmt.Errorf("seeding scenes: %w", err)
		}
	}
	return tx.Commit()
}

const deviceColumns = "id, name, type, state, value, device_mode, light_effect, ac_mode, power_consumption, battery_level"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*domain.DeviceRecord, error) {
	var (
		d                     domain.DeviceRecord
		devType               string
		value, power, battery sql.NullFloat64
		mode, effect, acMode  sql.NullString
	)
	if err := row.Scan(&d.Id, &d.Name, &devType, &d.State, &value, &mode, &effect, &acMode, &power, &battery); err != nil {
		return nil, err
	}
	d.Type = domain.DeviceType(devType)
	d.Value = floatPtr(value)
	d.PowerConsumption = floatPtr(power)
	d.BatteryLevel = floatPtr(battery)
	d.DeviceMode = mode.String
	d.LightEffect = effect.String
	d.AcMode = acMode.String
	if d.Type == domain.DEVICE_TYPE_LIGHT && d.LightEffect == "" {
		d.LightEffect = "natural"
	}
	return &d, nil
}

func (s *Store) List(ctx context.Context) ([]domain.DeviceRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+deviceColumns+" FROM devices ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := []domain.DeviceRecord{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

func (s *Store) Get(ctx context.Context, id int) (*domain.DeviceRecord, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	return d, err
}

func (s *Store) Toggle(ctx context.Context, id int) (*domain.DeviceRecord, error) {
	return s.update(ctx, id, "", "UPDATE devices SET state = CASE WHEN state = 'on' THEN 'off' ELSE 'on' END WHERE id = ?", id)
}

func (s *Store) SetValue(ctx context.Context, id int, value float64) (*domain.DeviceRecord, error) {
	return s.update(ctx, id, "", "UPDATE devices SET value = ? WHERE id = ?", value, id)
}

func (s *Store) SetMode(ctx context.Context, id int, mode string) (*domain.DeviceRecord, error) {
	return s.update(ctx, id, "", "UPDATE devices SET device_mode = ? WHERE id = ?", mode, id)
}

func (s *Store) SetEffect(ctx context.Context, id int, effect string) (*domain.DeviceRecord, error) {
	return s.update(ctx, id, domain.DEVICE_TYPE_LIGHT, "UPDATE devices SET light_effect = ? WHERE id = ?", effect, id)
}

func (s *Store) SetAcMode(ctx context.Context, id int, mode string) (*domain.DeviceRecord, error) {
	return s.update(ctx, id, domain.DEVICE_TYPE_AC, "UPDATE devices SET ac_mode = ? WHERE id = ?", mode, id)
}

// update runs query against an existing device, optionally of a given type,
// and returns the updated record.
func (s *Store) update(ctx context.Context, id int, devType domain.DeviceType, query string, args ...any) (*domain.DeviceRecord, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if devType != "" && current.Type != devType {
		return nil, ErrWrongType
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Store) Scenes(ctx context.Context) ([]domain.Scene, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description, icon, actions FROM scenes ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scenes := []domain.Scene{}
	for rows.Next() {
		var sc domain.Scene
		var actions string
		if err := rows.Scan(&sc.Id, &sc.Name, &sc.Description, &sc.Icon, &actions); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(actions), &sc.Actions); err != nil {
			return nil, fmt.Errorf("scene %d: %w", sc.Id, err)
		}
		scenes = append(scenes, sc)
	}
	return scenes, rows.Err()
}

// ActivateScene applies every action of a scene in one transaction. Actions
// naming unknown devices are skipped.
func (s *Store) ActivateScene(ctx context.Context, id int) (*domain.Scene, error) {
	var sc domain.Scene
	var actions string
	err := s.db.QueryRowContext(ctx, "SELECT id, name, description, icon, actions FROM scenes WHERE id = ?", id).
		Scan(&sc.Id, &sc.Name, &sc.Description, &sc.Icon, &actions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSceneNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(actions), &sc.Actions); err != nil {
		return nil, fmt.Errorf("scene %d: %w", sc.Id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck
	for _, a := range sc.Actions {
		if a.State != "" {
			if _, err := tx.ExecContext(ctx, "UPDATE devices SET state = ? WHERE id = ?", a.State, a.DeviceId); err != nil {
				return nil, err
			}
		}
		if a.Value != nil {
			if _, err := tx.ExecContext(ctx, "UPDATE devices SET value = ? WHERE id = ?", *a.Value, a.DeviceId); err != nil {
				return nil, err
			}
		}
		if a.Mode != "" {
			if _, err := tx.ExecContext(ctx, "UPDATE devices SET device_mode = ? WHERE id = ?", a.Mode, a.DeviceId); err != nil {
				return nil, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Energy reports the power drawn by devices that are on and the energy
// accrued today.
func (s *Store) Energy(ctx context.Context) (*domain.EnergyReport, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, power_consumption FROM devices WHERE state = 'on' AND power_consumption IS NOT NULL ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := domain.EnergyReport{Devices: []domain.DeviceEnergy{}}
	for rows.Next() {
		var d domain.DeviceEnergy
		if err := rows.Scan(&d.Name, &d.Power); err != nil {
			return nil, err
		}
		report.TotalPower += d.Power
		report.Devices = append(report.Devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	daily, err := s.dailyEnergy(ctx)
	if err != nil {
		return nil, err
	}
	report.DailyEnergy = round(daily, 3)
	return &report, nil
}

// DriftTemperature moves the temperature sensor by delta and returns the new
// reading.
func (s *Store) DriftTemperature(ctx context.Context, delta float64) (float64, error) {
	d, err := s.Get(ctx, TEMPERATURE_SENSOR_ID)
	if err != nil {
		return 0, err
	}
	if d.Type != domain.DEVICE_TYPE_SENSOR || d.Value == nil {
		return 0, ErrWrongType
	}
	next := *d.Value + delta
	if _, err := s.db.ExecContext(ctx, "UPDATE devices SET value = ? WHERE id = ?", next, TEMPERATURE_SENSOR_ID); err != nil {
		return 0, err
	}
	return next, nil
}

// AccrueEnergy adds the energy drawn over elapsed at the current power to
// today's total, starting over on a new day.
func (s *Store) AccrueEnergy(ctx context.Context, elapsed time.Duration) error {
	report, err := s.Energy(ctx)
	if err != nil {
		return err
	}
	daily, err := s.dailyEnergy(ctx)
	if err != nil {
		return err
	}
	daily += report.TotalPower * elapsed.Hours() / 1000
	return s.setMeta(ctx, metaDailyEnergy, strconv.FormatFloat(daily, 'g', -1, 64))
}

func (s *Store) dailyEnergy(ctx context.Context) (float64, error) {
	today := s.now().Format(time.DateOnly)
	day, err := s.getMeta(ctx, metaEnergyDay)
	if err != nil {
		return 0, err
	}
	if day != today {
		if err := s.setMeta(ctx, metaEnergyDay, today); err != nil {
			return 0, err
		}
		if err := s.setMeta(ctx, metaDailyEnergy, "0"); err != nil {
			return 0, err
		}
		return 0, nil
	}
	raw, err := s.getMeta(ctx, metaDailyEnergy)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func (s *Store) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	return err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
