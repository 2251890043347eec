package inventory

// NetBox REST API request/response shapes.
//
// These mirror the subset of the NetBox entity shapes the onboarder reads
// and writes. Relation fields come back as nested refs and are sent as
// numeric IDs.

// ListResponse is NetBox's paginated list envelope.
type ListResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

type nbRef struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
	Slug string `json:"slug,omitempty"`
}

type nbSite struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type nbManufacturer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type nbDeviceType struct {
	ID           int    `json:"id"`
	Slug         string `json:"slug"`
	Model        string `json:"model"`
	PartNumber   string `json:"part_number,omitempty"`
	Manufacturer *nbRef `json:"manufacturer,omitempty"`
}

type nbDeviceRole struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Color string `json:"color,omitempty"`
}

type nbPlatform struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	NapalmDriver string `json:"napalm_driver,omitempty"`
}

type nbStatus struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

type nbIPRef struct {
	ID      int    `json:"id"`
	Address string `json:"address"`
}

type nbDevice struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Site       *nbRef    `json:"site,omitempty"`
	DeviceType *nbRef    `json:"device_type,omitempty"`
	Role       *nbRef    `json:"device_role,omitempty"`
	Platform   *nbRef    `json:"platform,omitempty"`
	Serial     string    `json:"serial,omitempty"`
	Status     *nbStatus `json:"status,omitempty"`
	PrimaryIP4 *nbIPRef  `json:"primary_ip4,omitempty"`
}

type nbDeviceWriteRequest struct {
	Name       string `json:"name"`
	Site       int    `json:"site"`
	DeviceType int    `json:"device_type"`
	Role       int    `json:"device_role"`
	Platform   int    `json:"platform,omitempty"`
	Serial     string `json:"serial,omitempty"`
	Status     string `json:"status,omitempty"`
	PrimaryIP4 *int   `json:"primary_ip4,omitempty"`
}

type nbInterface struct {
	ID     int    `json:"id"`
	Device *nbRef `json:"device,omitempty"`
	Name   string `json:"name"`
}

type nbIPAddress struct {
	ID               int    `json:"id"`
	Address          string `json:"address"`
	AssignedObjectID int    `json:"assigned_object_id,omitempty"`
}

type nbOnboardingRecord struct {
	ID         int    `json:"id"`
	Device     *nbRef `json:"device,omitempty"`
	Enabled    bool   `json:"enabled"`
	LastStatus string `json:"last_status,omitempty"`
}
