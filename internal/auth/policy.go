package auth

import (
	"slices"

	"picshare-backend/internal/apperrors"
)

// Action names an operation subject to authorization
type Action string

const (
	ActionReadProfile        Action = "read_profile"
	ActionReadImage          Action = "read_image"
	ActionListImages         Action = "list_images"
	ActionCountImages        Action = "count_images"
	ActionListUsers          Action = "list_users"
	ActionUpdateProfile      Action = "update_profile"
	ActionUploadProfilePhoto Action = "upload_profile_photo"
	ActionUpdatePushToken    Action = "update_push_token"
	ActionDeleteProfile      Action = "delete_profile"
	ActionCreateImage        Action = "create_image"
	ActionToggleLike         Action = "toggle_like"
	ActionUpdateImage        Action = "update_image"
	ActionReplaceImage       Action = "replace_image"
	ActionDeleteImage        Action = "delete_image"
)

// Target describes the resource an action applies to. UserID is the
// account being acted on, OwnerID the owner of the image being acted on.
type Target struct {
	UserID  string
	OwnerID string
}

type rule struct {
	actions       []Action
	needsIdentity bool
	allow         func(id *Identity, t Target) bool
}

// rules are evaluated in order and the first rule naming the action decides
var rules = []rule{
	{
		actions: []Action{ActionReadProfile, ActionReadImage, ActionListImages, ActionCountImages},
		allow:   func(*Identity, Target) bool { return true },
	},
	{
		actions:       []Action{ActionListUsers},
		needsIdentity: true,
		allow:         func(id *Identity, _ Target) bool { return id.IsAdmin },
	},
	{
		actions:       []Action{ActionUpdateProfile, ActionUploadProfilePhoto, ActionUpdatePushToken},
		needsIdentity: true,
		allow:         func(id *Identity, t Target) bool { return t.UserID != "" && id.SubjectID == t.UserID },
	},
	{
		actions:       []Action{ActionDeleteProfile},
		needsIdentity: true,
		allow: func(id *Identity, t Target) bool {
			return id.IsAdmin || (t.UserID != "" && id.SubjectID == t.UserID)
		},
	},
	{
		actions:       []Action{ActionCreateImage, ActionToggleLike},
		needsIdentity: true,
		allow:         func(*Identity, Target) bool { return true },
	},
	{
		actions:       []Action{ActionUpdateImage, ActionReplaceImage, ActionDeleteImage},
		needsIdentity: true,
		allow: func(id *Identity, t Target) bool {
			return id.IsAdmin || (t.OwnerID != "" && id.SubjectID == t.OwnerID)
		},
	},
}

// Authorize decides whether id may perform action on target. Unknown
// actions are denied.
func Authorize(id *Identity, action Action, target Target) error {
	for _, r := range rules {
		if !slices.Contains(r.actions, action) {
			continue
		}
		if r.needsIdentity && id == nil {
			return apperrors.Unauthenticated("authentication required")
		}
		if r.allow(id, target) {
			return nil
		}
		return apperrors.Forbidden("access denied")
	}
	return apperrors.Forbidden("access denied")
}
