// Package authz is the single place where role rules are enforced. Every
// mutating and viewing operation funnels through Authorize or one of the
// ownership helpers; nothing else in the codebase inspects roles.
package authz

import (
	"github.com/google/uuid"

	"github.com/cottageplayer/backend/internal/models"
)

type Capability string

const (
	CapView              Capability = "view"
	CapUpload            Capability = "upload"
	CapManageOwnPlaylist Capability = "manage_own_playlist"
	CapManageUsers       Capability = "manage_users"
	CapModerateAnyMedia  Capability = "moderate_any_media"
)

// Decision is the outcome of an authorization check. A denied decision always
// carries a reason suitable for logs and error envelopes.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Authorize decides whether user may exercise capability. The role switch is
// exhaustive: an unknown role is denied, never silently granted.
func Authorize(user *models.User, capability Capability) Decision {
	if user == nil {
		return deny("not authenticated")
	}
	if !user.Active {
		return deny("account is deactivated")
	}

	switch user.Role {
	case models.UserRoleViewer:
		if capability == CapView {
			return allow()
		}
	case models.UserRoleUploader:
		switch capability {
		case CapView, CapUpload, CapManageOwnPlaylist:
			return allow()
		}
	case models.UserRoleAdmin:
		switch capability {
		case CapView, CapUpload, CapManageOwnPlaylist, CapManageUsers, CapModerateAnyMedia:
			return allow()
		}
	}

	return deny("role " + string(user.Role) + " lacks capability " + string(capability))
}

// CanManagePlaylist allows the playlist owner holding manage_own_playlist,
// or anyone holding moderate_any_media.
func CanManagePlaylist(user *models.User, ownerID uuid.UUID) Decision {
	if d := Authorize(user, CapModerateAnyMedia); d.Allowed {
		return d
	}
	d := Authorize(user, CapManageOwnPlaylist)
	if !d.Allowed {
		return d
	}
	if user.ID != ownerID {
		return deny("not the playlist owner")
	}
	return allow()
}

// CanManageMedia allows the original uploader holding upload rights, or
// anyone holding moderate_any_media.
func CanManageMedia(user *models.User, uploaderID uuid.UUID) Decision {
	if d := Authorize(user, CapModerateAnyMedia); d.Allowed {
		return d
	}
	d := Authorize(user, CapUpload)
	if !d.Allowed {
		return d
	}
	if user.ID != uploaderID {
		return deny("not the uploader")
	}
	return allow()
}
