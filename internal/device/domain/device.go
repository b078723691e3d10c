package domain

import "time"

// TrustedDevice is a device fingerprint the user has completed step-up verification from.
type TrustedDevice struct {
	Fingerprint string    `json:"fingerprint"`
	Label       string    `json:"label,omitempty"`
	LastSeen    time.Time `json:"lastSeen"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Find returns the index of the device with fingerprint in devices, or -1.
func Find(devices []TrustedDevice, fingerprint string) int {
	for i := range devices {
		if devices[i].Fingerprint == fingerprint {
			return i
		}
	}
	return -1
}

// IsTrusted reports whether fingerprint is in devices.
func IsTrusted(devices []TrustedDevice, fingerprint string) bool {
	return fingerprint != "" && Find(devices, fingerprint) >= 0
}

// Touch refreshes LastSeen of an already-trusted fingerprint. Returns false if it is not trusted.
func Touch(devices []TrustedDevice, fingerprint string, at time.Time) bool {
	i := Find(devices, fingerprint)
	if i < 0 {
		return false
	}
	devices[i].LastSeen = at
	return true
}

// Upsert adds fingerprint as a trusted device or refreshes LastSeen if present, keeping fingerprints unique.
func Upsert(devices []TrustedDevice, fingerprint, label string, at time.Time) []TrustedDevice {
	if Touch(devices, fingerprint, at) {
		return devices
	}
	return append(devices, TrustedDevice{
		Fingerprint: fingerprint,
		Label:       label,
		LastSeen:    at,
		CreatedAt:   at,
	})
}
