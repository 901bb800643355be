package port

import (
	"context"

	"github.com/berfenger/homedash/internal/core/domain"
)

// DeviceAPI is the backend surface used by the command executor. Every
// method returns the server's record after the call.
type DeviceAPI interface {
	GetDevice(ctx context.Context, id int) (*domain.DeviceRecord, error)
	Toggle(ctx context.Context, id int) (*domain.DeviceRecord, error)
	SetValue(ctx context.Context, id int, value float64) (*domain.DeviceRecord, error)
	SetMode(ctx context.Context, id int, mode string) (*domain.DeviceRecord, error)
	SetEffect(ctx context.Context, id int, effect string) (*domain.DeviceRecord, error)
	SetAcMode(ctx context.Context, id int, mode string) (*domain.DeviceRecord, error)
}

type DeviceSource interface {
	ListDevices(ctx context.Context) ([]domain.DeviceRecord, error)
}

type SceneAPI interface {
	ListScenes(ctx context.Context) ([]domain.Scene, error)
	ActivateScene(ctx context.Context, id int) error
	GetEnergy(ctx context.Context) (*domain.EnergyReport, error)
}

type Backend interface {
	DeviceAPI
	DeviceSource
	SceneAPI
}
