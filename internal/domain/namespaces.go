package domain

// Pub-sub node names. These must match peers byte for byte.
const (
	NSPrefix           = "urn:xmpp:omemo:0"
	NSDeviceList       = NSPrefix + ":devicelist"
	NSDeviceListNotify = NSDeviceList + "+notify"
	NSBundles          = NSPrefix + ":bundles"
)

// Features are the capability strings this client advertises so that peers
// push device-list updates automatically.
func Features() []string {
	return []string{NSDeviceList, NSDeviceListNotify}
}
