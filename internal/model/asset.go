package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Asset statuses.
const (
	StatusFree = "free"
	StatusBusy = "busy"
)

// Device types.
const (
	TypeBox           = "box"
	TypeOsmometer     = "osmometr"
	TypeRecirculation = "recirculation"
	TypeUnknown       = "unknown"
)

// AssetID is an asset identifier that may be stored as a JSON string or a
// JSON number. It remembers which form it came in so that rewriting a
// document does not change it.
type AssetID struct {
	value   string
	numeric bool
}

// StringID returns a string-form asset id.
func StringID(s string) AssetID { return AssetID{value: s} }

// NumericID returns a number-form asset id.
func NumericID(n int64) AssetID {
	return AssetID{value: strconv.FormatInt(n, 10), numeric: true}
}

// ParseAssetID builds an id from its string value and form flag.
func ParseAssetID(s string, numeric bool) AssetID {
	return AssetID{value: s, numeric: numeric}
}

func (id AssetID) String() string { return id.value }

// IsNumeric reports whether the id is stored as a JSON number.
func (id AssetID) IsNumeric() bool { return id.numeric }

// MarshalJSON implements json.Marshaler.
func (id AssetID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *AssetID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = AssetID{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = AssetID{value: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("asset id must be a string or a number: %w", err)
	}
	*id = AssetID{value: n.String(), numeric: true}
	return nil
}

// Counts holds warning and alarm tallies.
type Counts struct {
	Warnings int `json:"warnings"`
	Alarms   int `json:"alarms"`
}

// Description holds identifiers from external systems.
type Description struct {
	ERPGUID      string `json:"erpGuid"`
	SerialNumber string `json:"serialNumber"`
	PassportID   string `json:"passportId"`
	ClassName    string `json:"className"`
	Manufacturer string `json:"manufacturer"`
}

// Asset is a trackable device as stored in the asset collection. Optional
// fields stay absent on disk until something sets them.
type Asset struct {
	ID           AssetID      `json:"id"`
	Type         string       `json:"type,omitempty"`
	Name         string       `json:"name,omitempty"`
	Room         string       `json:"room,omitempty"`
	Status       string       `json:"status,omitempty"`
	BusyByUserID *int64       `json:"busyByUserId"`
	Counts       *Counts      `json:"counts,omitempty"`
	Totals       *Counts      `json:"totals,omitempty"`
	Description  *Description `json:"description,omitempty"`
}

// IsBusy reports whether the asset is checked out.
func (a *Asset) IsBusy() bool { return a.Status == StatusBusy }

// OwnedBy reports whether the asset is busy under the given user.
func (a *Asset) OwnedBy(userID int64) bool {
	return a.IsBusy() && a.BusyByUserID != nil && *a.BusyByUserID == userID
}

// FindAsset returns the asset whose id string equals id, or nil.
func FindAsset(assets []Asset, id string) *Asset {
	for i := range assets {
		if assets[i].ID.String() == id {
			return &assets[i]
		}
	}
	return nil
}

// IsDeviceType reports whether t is one of the known device types.
func IsDeviceType(t string) bool {
	switch t {
	case TypeBox, TypeOsmometer, TypeRecirculation, TypeUnknown:
		return true
	}
	return false
}
