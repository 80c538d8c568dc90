package discovery

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Service type and domain.
const (
	ServiceType = "_farmhub._tcp"
	Domain      = "local."
)

// MaxInstanceNameLen is the DNS label limit for instance names.
const MaxInstanceNameLen = 63

// TXT record keys.
const (
	TXTKeyID       = "id"
	TXTKeyInstance = "instance"
	TXTKeyBoot     = "boot"
	TXTKeyFirmware = "fw"
	TXTKeyPrefix   = "prefix"
)

// Errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInvalidBootCount    = errors.New("invalid boot count")
	ErrInvalidInstanceName = errors.New("invalid instance name")
	ErrNotAdvertising      = errors.New("not advertising")
)

// DeviceInfo is what a device advertises about itself.
type DeviceInfo struct {
	ID       string
	Instance string
	Boot     uint32
	Firmware string
	Prefix   string
	Port     uint16
}

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for info.
func EncodeTXT(info *DeviceInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyID:       info.ID,
		TXTKeyInstance: info.Instance,
		TXTKeyBoot:     strconv.FormatUint(uint64(info.Boot), 10),
	}
	if info.Firmware != "" {
		txt[TXTKeyFirmware] = info.Firmware
	}
	if info.Prefix != "" {
		txt[TXTKeyPrefix] = info.Prefix
	}
	return txt
}

// DecodeTXT parses the TXT records of a device.
func DecodeTXT(txt TXTRecordMap) (*DeviceInfo, error) {
	info := &DeviceInfo{}

	var ok bool
	if info.ID, ok = txt[TXTKeyID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyID)
	}
	if info.Instance, ok = txt[TXTKeyInstance]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyInstance)
	}
	bootStr, ok := txt[TXTKeyBoot]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyBoot)
	}
	boot, err := strconv.ParseUint(bootStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBootCount, bootStr)
	}
	info.Boot = uint32(boot)

	info.Firmware = txt[TXTKeyFirmware]
	info.Prefix = txt[TXTKeyPrefix]
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidInstanceName)
	}
	if len(name) > MaxInstanceNameLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidInstanceName, MaxInstanceNameLen)
	}
	return nil
}
