package interfaces

import (
	"context"

	domaintypes "omemo/internal/domain/types"
)

// DiscoveryModule is the pub-sub side: device-list and bundle nodes on the
// discovery service. The coordinator holds it as a non-owning handle that is
// only valid while the module is alive.
type DiscoveryModule interface {
	// StreamJID is the full address of the authenticated stream, if any.
	StreamJID() (domaintypes.JID, bool)
	PublishDeviceIDs(ctx context.Context, ids []domaintypes.DeviceID) error
	FetchDeviceIDs(ctx context.Context, owner domaintypes.JID) ([]domaintypes.DeviceID, error)
	PublishBundle(ctx context.Context, bundle domaintypes.SessionKeyBundle) error
	FetchBundle(
		ctx context.Context,
		owner domaintypes.JID,
		deviceID domaintypes.DeviceID,
	) (domaintypes.SessionKeyBundle, error)
}

// ModuleDelegate is the hook set a discovery module calls back into.
type ModuleDelegate interface {
	Configure(module DiscoveryModule) bool
	OnDeviceListUpdate(from domaintypes.JID, ids []domaintypes.DeviceID)
	DeviceIDsFor(jid domaintypes.JID) []domaintypes.DeviceID
	OwnDeviceID() domaintypes.DeviceID
	IsSessionValid(jid domaintypes.JID, deviceID domaintypes.DeviceID) bool
}

// StreamDelegate receives transport-level events.
type StreamDelegate interface {
	OnAuthenticated()
	OnMessageReceived(msg domaintypes.Message)
}
