package handler

import (
	"time"

	devicedomain "anomalyguard/backend/internal/device/domain"
	userdomain "anomalyguard/backend/internal/user/domain"
)

// userView is the public JSON shape of a user. The password hash and challenge never leave the service.
type userView struct {
	ID             string                       `json:"id"`
	Email          string                       `json:"email"`
	Name           string                       `json:"name"`
	Company        string                       `json:"company,omitempty"`
	TrustedDevices []devicedomain.TrustedDevice `json:"trustedDevices"`
	LoginHistory   []userdomain.LoginRecord     `json:"loginHistory"`
	CreatedAt      time.Time                    `json:"createdAt"`
}

func toView(u *userdomain.User) *userView {
	if u == nil {
		return nil
	}
	v := &userView{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Company:        u.Company,
		TrustedDevices: u.TrustedDevices,
		LoginHistory:   u.LoginHistory,
		CreatedAt:      u.CreatedAt,
	}
	if v.TrustedDevices == nil {
		v.TrustedDevices = []devicedomain.TrustedDevice{}
	}
	if v.LoginHistory == nil {
		v.LoginHistory = []userdomain.LoginRecord{}
	}
	return v
}
