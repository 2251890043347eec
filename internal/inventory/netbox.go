package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/net-toolbox/onboarder/internal/model"
)

const netboxRequestTimeout = 30 * time.Second

// NetboxInventory implements Inventory against the NetBox REST API.
type NetboxInventory struct {
	client  *retryablehttp.Client
	baseURL string
	token   string
	logger  *logrus.Logger
}

// NewNetboxInventory returns an Inventory backed by a NetBox instance.
// Authentication uses a static API token.
func NewNetboxInventory(endpoint, token string, logger *logrus.Logger) *NetboxInventory {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = netboxRequestTimeout
	client.Logger = nil

	return &NetboxInventory{
		client:  client,
		baseURL: strings.TrimRight(endpoint, "/"),
		token:   token,
		logger:  logger,
	}
}

func (n *NetboxInventory) do(ctx context.Context, method, path string, payload, result interface{}) error {
	var body io.Reader

	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(errAPIRequest, err.Error())
		}

		body = bytes.NewReader(b)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, n.baseURL+path, body)
	if err != nil {
		return errors.Wrap(errAPIRequest, err.Error())
	}

	req.Header.Set("Authorization", "Token "+n.token)
	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(errAPIRequest, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errAPIRequest, err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrap(ErrNotFound, method+" "+path)
	case resp.StatusCode == http.StatusBadRequest && bytes.Contains(respBody, []byte("already exists")):
		return errors.Wrap(ErrConflict, string(respBody))
	case resp.StatusCode >= http.StatusBadRequest:
		return errors.Wrapf(errAPIRequest, "%s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return errors.Wrap(errAPIRequest, err.Error())
		}
	}

	return nil
}

// getOne runs a filtered list query expecting at most one result.
func getOne[T any](ctx context.Context, n *NetboxInventory, path, label string) (*T, error) {
	var resp ListResponse[T]

	if err := n.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	switch resp.Count {
	case 0:
		return nil, errors.Wrap(ErrNotFound, label)
	case 1:
		return &resp.Results[0], nil
	default:
		return nil, errors.Wrap(ErrMultipleFound, label)
	}
}

// filterQuery translates a lookup candidate into a NetBox filter parameter.
func filterQuery(lookup Lookup) string {
	field := lookup.Field
	if lookup.Fold {
		field += "__ie"
	}

	return field + "=" + url.QueryEscape(lookup.Value)
}

func findBy[T any](ctx context.Context, n *NetboxInventory, basePath, label string, candidates []Lookup) (*T, error) {
	for _, candidate := range candidates {
		result, err := getOne[T](ctx, n, basePath+"?"+filterQuery(candidate), label+" "+candidate.Field+"="+candidate.Value)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}

			return nil, err
		}

		return result, nil
	}

	return nil, errors.Wrap(ErrNotFound, label)
}

func (n *NetboxInventory) SiteBySlug(ctx context.Context, slug string) (*model.Site, error) {
	site, err := getOne[nbSite](ctx, n, "/api/dcim/sites/?slug="+url.QueryEscape(slug), "site "+slug)
	if err != nil {
		return nil, err
	}

	return &model.Site{ID: site.ID, Name: site.Name, Slug: site.Slug}, nil
}

func (n *NetboxInventory) FindManufacturer(ctx context.Context, candidates []Lookup) (*model.Manufacturer, error) {
	m, err := findBy[nbManufacturer](ctx, n, "/api/dcim/manufacturers/", "manufacturer", candidates)
	if err != nil {
		return nil, err
	}

	return &model.Manufacturer{ID: m.ID, Name: m.Name, Slug: m.Slug}, nil
}

func (n *NetboxInventory) CreateManufacturer(ctx context.Context, m model.Manufacturer) (*model.Manufacturer, error) {
	payload := map[string]string{"name": m.Name, "slug": m.Slug}

	var created nbManufacturer
	if err := n.do(ctx, http.MethodPost, "/api/dcim/manufacturers/", payload, &created); err != nil {
		return nil, err
	}

	n.logger.WithFields(logrus.Fields{"slug": created.Slug}).Info("created manufacturer")

	return &model.Manufacturer{ID: created.ID, Name: created.Name, Slug: created.Slug}, nil
}

func deviceTypeToModel(dt *nbDeviceType) *model.DeviceType {
	m := &model.DeviceType{ID: dt.ID, Slug: dt.Slug, Model: dt.Model, PartNumber: dt.PartNumber}
	if dt.Manufacturer != nil {
		m.ManufacturerID = dt.Manufacturer.ID
	}

	return m
}

func (n *NetboxInventory) FindDeviceType(ctx context.Context, candidates []Lookup) (*model.DeviceType, error) {
	dt, err := findBy[nbDeviceType](ctx, n, "/api/dcim/device-types/", "device type", candidates)
	if err != nil {
		return nil, err
	}

	return deviceTypeToModel(dt), nil
}

func (n *NetboxInventory) DeviceTypeByID(ctx context.Context, id int) (*model.DeviceType, error) {
	var dt nbDeviceType
	if err := n.do(ctx, http.MethodGet, fmt.Sprintf("/api/dcim/device-types/%d/", id), nil, &dt); err != nil {
		return nil, err
	}

	return deviceTypeToModel(&dt), nil
}

func (n *NetboxInventory) CreateDeviceType(ctx context.Context, dt model.DeviceType) (*model.DeviceType, error) {
	payload := map[string]interface{}{
		"slug":         dt.Slug,
		"model":        dt.Model,
		"manufacturer": dt.ManufacturerID,
	}

	var created nbDeviceType
	if err := n.do(ctx, http.MethodPost, "/api/dcim/device-types/", payload, &created); err != nil {
		return nil, err
	}

	n.logger.WithFields(logrus.Fields{"slug": created.Slug}).Info("created device type")

	return deviceTypeToModel(&created), nil
}

func (n *NetboxInventory) DeviceRoleBySlug(ctx context.Context, slug string) (*model.DeviceRole, error) {
	role, err := getOne[nbDeviceRole](ctx, n, "/api/dcim/device-roles/?slug="+url.QueryEscape(slug), "device role "+slug)
	if err != nil {
		return nil, err
	}

	return &model.DeviceRole{ID: role.ID, Name: role.Name, Slug: role.Slug, Color: role.Color}, nil
}

func (n *NetboxInventory) CreateDeviceRole(ctx context.Context, role model.DeviceRole) (*model.DeviceRole, error) {
	payload := map[string]string{"name": role.Name, "slug": role.Slug, "color": role.Color}

	var created nbDeviceRole
	if err := n.do(ctx, http.MethodPost, "/api/dcim/device-roles/", payload, &created); err != nil {
		return nil, err
	}

	return &model.DeviceRole{ID: created.ID, Name: created.Name, Slug: created.Slug, Color: created.Color}, nil
}

func (n *NetboxInventory) PlatformBySlug(ctx context.Context, slug string) (*model.Platform, error) {
	platform, err := getOne[nbPlatform](ctx, n, "/api/dcim/platforms/?slug="+url.QueryEscape(slug), "platform "+slug)
	if err != nil {
		return nil, err
	}

	return &model.Platform{ID: platform.ID, Name: platform.Name, Slug: platform.Slug, Driver: platform.NapalmDriver}, nil
}

func (n *NetboxInventory) CreatePlatform(ctx context.Context, platform model.Platform) (*model.Platform, error) {
	payload := map[string]string{"name": platform.Name, "slug": platform.Slug, "napalm_driver": platform.Driver}

	var created nbPlatform
	if err := n.do(ctx, http.MethodPost, "/api/dcim/platforms/", payload, &created); err != nil {
		return nil, err
	}

	n.logger.WithFields(logrus.Fields{"slug": created.Slug, "driver": created.NapalmDriver}).Info("created platform")

	return &model.Platform{ID: created.ID, Name: created.Name, Slug: created.Slug, Driver: created.NapalmDriver}, nil
}

func (n *NetboxInventory) PlatformDrivers(ctx context.Context) (map[string]string, error) {
	var resp ListResponse[nbPlatform]
	if err := n.do(ctx, http.MethodGet, "/api/dcim/platforms/?limit=1000", nil, &resp); err != nil {
		return nil, err
	}

	drivers := map[string]string{}

	for _, platform := range resp.Results {
		if platform.NapalmDriver != "" {
			drivers[platform.Slug] = platform.NapalmDriver
		}
	}

	return drivers, nil
}

func deviceToModel(d *nbDevice) *model.Device {
	device := &model.Device{ID: d.ID, Name: d.Name, Serial: d.Serial}

	if d.Site != nil {
		device.SiteID = d.Site.ID
	}

	if d.DeviceType != nil {
		device.DeviceTypeID = d.DeviceType.ID
	}

	if d.Role != nil {
		device.RoleID = d.Role.ID
	}

	if d.Platform != nil {
		device.PlatformID = d.Platform.ID
	}

	if d.Status != nil {
		device.Status = d.Status.Value
	}

	if d.PrimaryIP4 != nil {
		device.PrimaryIP4 = d.PrimaryIP4.Address
		device.PrimaryIP4ID = d.PrimaryIP4.ID
	}

	return device
}

func (n *NetboxInventory) DeviceByPrimaryIP(ctx context.Context, ip string) (*model.Device, error) {
	// NetBox has no single filter for "device whose primary IP host part
	// is X", so resolve the IP address objects first and then the devices
	// claiming them as primary.
	var ips ListResponse[nbIPAddress]
	if err := n.do(ctx, http.MethodGet, "/api/ipam/ip-addresses/?address="+url.QueryEscape(ip), nil, &ips); err != nil {
		return nil, err
	}

	var found []*nbDevice

	for i := range ips.Results {
		var devices ListResponse[nbDevice]

		path := "/api/dcim/devices/?primary_ip4_id=" + strconv.Itoa(ips.Results[i].ID)
		if err := n.do(ctx, http.MethodGet, path, nil, &devices); err != nil {
			return nil, err
		}

		for j := range devices.Results {
			found = append(found, &devices.Results[j])
		}
	}

	switch len(found) {
	case 0:
		return nil, errors.Wrap(ErrNotFound, "device with primary IP "+ip)
	case 1:
		return deviceToModel(found[0]), nil
	default:
		return nil, errors.Wrap(ErrMultipleFound, "devices using same IP "+ip)
	}
}

func (n *NetboxInventory) DeviceByName(ctx context.Context, name string) (*model.Device, error) {
	device, err := getOne[nbDevice](ctx, n, "/api/dcim/devices/?name="+url.QueryEscape(name), "device "+name)
	if err != nil {
		return nil, err
	}

	return deviceToModel(device), nil
}

func (n *NetboxInventory) UpsertDevice(ctx context.Context, device model.Device) (*model.Device, error) {
	payload := nbDeviceWriteRequest{
		Name:       device.Name,
		Site:       device.SiteID,
		DeviceType: device.DeviceTypeID,
		Role:       device.RoleID,
		Platform:   device.PlatformID,
		Serial:     device.Serial,
		Status:     device.Status,
	}

	var (
		saved nbDevice
		err   error
	)

	if device.ID == 0 {
		err = n.do(ctx, http.MethodPost, "/api/dcim/devices/", payload, &saved)
	} else {
		// Status is deliberately left out of updates so re-onboarding
		// never clobbers the operational status.
		payload.Status = ""
		err = n.do(ctx, http.MethodPatch, fmt.Sprintf("/api/dcim/devices/%d/", device.ID), payload, &saved)
	}

	if err != nil {
		return nil, err
	}

	return deviceToModel(&saved), nil
}

func (n *NetboxInventory) InterfaceGetOrCreate(ctx context.Context, deviceID int, name string) (*model.Interface, error) {
	path := fmt.Sprintf("/api/dcim/interfaces/?device_id=%d&name=%s", deviceID, url.QueryEscape(name))

	iface, err := getOne[nbInterface](ctx, n, path, "interface "+name)
	if err == nil {
		return &model.Interface{ID: iface.ID, DeviceID: deviceID, Name: iface.Name}, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	payload := map[string]interface{}{"device": deviceID, "name": name, "type": "other"}

	var created nbInterface
	if err := n.do(ctx, http.MethodPost, "/api/dcim/interfaces/", payload, &created); err != nil {
		return nil, err
	}

	return &model.Interface{ID: created.ID, DeviceID: deviceID, Name: created.Name}, nil
}

func (n *NetboxInventory) IPAddressGetOrCreate(ctx context.Context, cidr string) (*model.IPAddress, bool, error) {
	ip, err := getOne[nbIPAddress](ctx, n, "/api/ipam/ip-addresses/?address="+url.QueryEscape(cidr), "ip address "+cidr)
	if err == nil {
		return &model.IPAddress{ID: ip.ID, Address: ip.Address, InterfaceID: ip.AssignedObjectID}, false, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	payload := map[string]string{"address": cidr}

	var created nbIPAddress
	if err := n.do(ctx, http.MethodPost, "/api/ipam/ip-addresses/", payload, &created); err != nil {
		return nil, false, err
	}

	return &model.IPAddress{ID: created.ID, Address: created.Address}, true, nil
}

func (n *NetboxInventory) AssignIPToInterface(ctx context.Context, ipID, interfaceID int) error {
	payload := map[string]interface{}{
		"assigned_object_type": "dcim.interface",
		"assigned_object_id":   interfaceID,
	}

	return n.do(ctx, http.MethodPatch, fmt.Sprintf("/api/ipam/ip-addresses/%d/", ipID), payload, nil)
}

func (n *NetboxInventory) SetPrimaryIP(ctx context.Context, deviceID, ipID int) error {
	payload := map[string]int{"primary_ip4": ipID}

	return n.do(ctx, http.MethodPatch, fmt.Sprintf("/api/dcim/devices/%d/", deviceID), payload, nil)
}

func (n *NetboxInventory) OnboardingRecordForDevice(ctx context.Context, deviceID int) (*model.OnboardingRecord, error) {
	path := "/api/plugins/onboarding/onboarding-devices/?device_id=" + strconv.Itoa(deviceID)

	record, err := getOne[nbOnboardingRecord](ctx, n, path, "onboarding record")
	if err != nil {
		return nil, err
	}

	m := &model.OnboardingRecord{ID: record.ID, Enabled: record.Enabled, LastStatus: record.LastStatus}
	if record.Device != nil {
		m.DeviceID = record.Device.ID
	}

	return m, nil
}

func (n *NetboxInventory) CreateOnboardingRecord(ctx context.Context, record model.OnboardingRecord) (*model.OnboardingRecord, error) {
	payload := map[string]interface{}{"device": record.DeviceID, "enabled": record.Enabled}

	var created nbOnboardingRecord
	if err := n.do(ctx, http.MethodPost, "/api/plugins/onboarding/onboarding-devices/", payload, &created); err != nil {
		return nil, err
	}

	m := &model.OnboardingRecord{ID: created.ID, Enabled: created.Enabled, LastStatus: created.LastStatus}
	if created.Device != nil {
		m.DeviceID = created.Device.ID
	}

	return m, nil
}
