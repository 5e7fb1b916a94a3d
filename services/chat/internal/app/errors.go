package app

import "errors"

var (
	// ErrNotFound covers unknown accounts, chats, messages, and files.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when registering a username that is taken.
	ErrAlreadyExists = errors.New("user with this username already exists")
	// ErrInvalidInput reports a malformed username, password, or message.
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidPassword       = errors.New("invalid password")
	ErrInvalidCredential     = errors.New("could not validate credentials")
	ErrInactiveOrMissingUser = errors.New("inactive or missing user")
	ErrPermissionDenied      = errors.New("permission denied")

	// ErrNotGuest is returned when a guest-only chat operation names a superuser.
	ErrNotGuest = errors.New("account is not a guest")
	// ErrSuperuserMissing means start-up provisioning did not run.
	ErrSuperuserMissing = errors.New("superuser not provisioned")

	ErrUploadFailed = errors.New("upload failed")
	// ErrDataIntegrity reports a chat with no messages or no counterpart participant.
	ErrDataIntegrity = errors.New("chat data integrity violation")
)
