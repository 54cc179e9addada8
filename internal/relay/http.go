package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"omemo/internal/domain"
)

// DeviceListBody is the JSON form of a device-list node.
type DeviceListBody struct {
	Publisher string            `json:"publisher"`
	Devices   []domain.DeviceID `json:"devices"`
}

// HTTP is a discovery module talking to a relay at Base.
type HTTP struct {
	Base   string
	HTTP   *http.Client
	Stream domain.JID
}

// NewHTTP returns a client for the relay at base acting as stream. A nil
// client uses http.DefaultClient.
func NewHTTP(base string, stream domain.JID, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: base, HTTP: client, Stream: stream}
}

// StreamJID returns the address the client publishes as.
func (c *HTTP) StreamJID() (domain.JID, bool) {
	return c.Stream, !c.Stream.IsZero()
}

// PublishDeviceIDs replaces our device list on the relay.
func (c *HTTP) PublishDeviceIDs(ctx context.Context, ids []domain.DeviceID) error {
	body := DeviceListBody{Publisher: c.Stream.String(), Devices: ids}
	return c.post(ctx, "/devicelist/"+url.PathEscape(c.Stream.Bare()), body, nil)
}

// FetchDeviceIDs fetches owner's device list.
func (c *HTTP) FetchDeviceIDs(ctx context.Context, owner domain.JID) ([]domain.DeviceID, error) {
	var out DeviceListBody
	if err := c.getJSON(ctx, "/devicelist/"+url.PathEscape(owner.Bare()), &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

// PublishBundle uploads our bundle.
func (c *HTTP) PublishBundle(ctx context.Context, bundle domain.SessionKeyBundle) error {
	return c.post(ctx, "/bundle", bundle, nil)
}

// FetchBundle fetches the bundle of one of owner's devices.
func (c *HTTP) FetchBundle(
	ctx context.Context,
	owner domain.JID,
	deviceID domain.DeviceID,
) (domain.SessionKeyBundle, error) {
	var out domain.SessionKeyBundle
	path := "/bundle/" + url.PathEscape(owner.Bare()) + "/" + strconv.FormatUint(uint64(deviceID), 10)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return domain.SessionKeyBundle{}, err
	}
	return out, nil
}

func (c *HTTP) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTP) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNodeNotFound
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay %s %s: %s", req.Method, req.URL.Path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ domain.DiscoveryModule = (*HTTP)(nil)
